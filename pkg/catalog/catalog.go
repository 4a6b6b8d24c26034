// Package catalog implements the tool registry and its shape-agnostic
// dispatch. A catalog is built once from a fixed set of providers at
// executor startup and is immutable afterwards.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// Param is a single entry in a tool's parameter signature.
type Param struct {
	Name string
	Type dynamic.ParamType
}

// Handler is the underlying operation of a tool. It receives one value per
// declared parameter, already bound and coerced in signature order.
type Handler func(ctx context.Context, args []any) (any, error)

// Tool is a named, invokable operation with a typed parameter signature.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Provider exposes a set of tools for registration. Providers enumerate
// their tools explicitly; there is no reflective discovery.
type Provider interface {
	Tools() []Tool
}

// ToolNotFoundError reports an invocation of a name absent from the
// catalog, whether never registered or excluded by the allow-list. The
// message enumerates the available names so callers can render an
// actionable error.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("tool %q not found (catalog is empty)", e.Name)
	}
	return fmt.Sprintf("tool %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Catalog owns the name -> Tool mapping. Names are unique; when two
// providers declare the same name the later registration wins.
type Catalog struct {
	tools map[string]Tool
}

// Build scans the providers in order and registers every tool they expose.
// If allow is non-empty, only names in allow are kept. A name collision is
// surprising but acceptable: the later registration wins and a warning is
// logged.
func Build(providers []Provider, allow []string) *Catalog {
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowed[name] = true
	}

	c := &Catalog{tools: make(map[string]Tool)}
	for _, p := range providers {
		for _, t := range p.Tools() {
			if len(allowed) > 0 && !allowed[t.Name] {
				continue
			}
			if _, exists := c.tools[t.Name]; exists {
				log.Warn().Str("tool", t.Name).Msg("duplicate tool registration, later registration wins")
			}
			c.tools[t.Name] = t
		}
	}
	return c
}

// Keys returns the currently available tool names, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.tools))
	for name := range c.tools {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Invoke dispatches a call to the named tool, binding the payload to the
// tool's parameter signature according to its shape. Binding never fails;
// values that do not fit degrade to type defaults via dynamic.Coerce.
func (c *Catalog) Invoke(ctx context.Context, name string, args dynamic.Args) (any, error) {
	t, ok := c.tools[name]
	if !ok {
		return nil, &ToolNotFoundError{Name: name, Available: c.Keys()}
	}
	return t.Handler(ctx, bind(t, args))
}

// bind produces one value per signature parameter.
//
// None binds every parameter to its coerced nil default. Typed binds
// positionally as-is. Positional binds positionally with coercion, except
// that a signature with exactly one list parameter receives the whole
// payload. Named resolves each parameter by name, treating absent names
// as nil. Extra positional values beyond the signature are dropped.
func bind(t Tool, a dynamic.Args) []any {
	out := make([]any, len(t.Params))

	switch a.Shape() {
	case dynamic.ShapeNone:
		for i, p := range t.Params {
			out[i] = dynamic.Coerce(nil, p.Type)
		}

	case dynamic.ShapeTyped:
		pos := a.Positional()
		for i := range t.Params {
			if i < len(pos) {
				out[i] = pos[i]
			}
		}

	case dynamic.ShapePositional:
		pos := a.Positional()
		if len(t.Params) == 1 && t.Params[0].Type == dynamic.TypeList {
			out[0] = pos
			return out
		}
		for i, p := range t.Params {
			var v any
			if i < len(pos) {
				v = pos[i]
			}
			out[i] = dynamic.Coerce(v, p.Type)
		}

	case dynamic.ShapeNamed:
		named := a.Named()
		for i, p := range t.Params {
			out[i] = dynamic.Coerce(named[p.Name], p.Type)
		}
	}

	return out
}
