// Package schema defines the Go struct types for the recipe YAML schema
// and provides strict YAML parsing.
package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Recipe is the top-level document defining a named, versioned workflow
// that combines tool calls with prompt templates. A parsed recipe is
// immutable; per-run state lives in the executor's variable bindings.
type Recipe struct {
	Name         string            `yaml:"name"                   json:"name"                   jsonschema:"required"`
	Version      int               `yaml:"version"                json:"version"                jsonschema:"required"`
	Description  string            `yaml:"description,omitempty"  json:"description,omitempty"`
	AllowedTools []string          `yaml:"allowedTools,omitempty" json:"allowedTools,omitempty"`
	Vars         VarList           `yaml:"vars,omitempty"         json:"vars,omitempty"`
	System       string            `yaml:"system,omitempty"       json:"system,omitempty"`
	UserTemplate string            `yaml:"userTemplate"           json:"userTemplate"           jsonschema:"required"`
	PostActions  []PostAction      `yaml:"postActions,omitempty"  json:"postActions,omitempty"`
	Defaults     map[string]string `yaml:"defaults,omitempty"     json:"defaults,omitempty"`
}

// VarDecl binds a variable name to the tool call that resolves it.
type VarDecl struct {
	Name string   `json:"name" jsonschema:"required"`
	Call ToolCall `json:"call" jsonschema:"required"`
}

// VarList preserves the document order of the vars mapping. Order is
// significant: later variables may reference earlier ones in their
// templated arguments.
type VarList []VarDecl

// UnmarshalYAML decodes the vars mapping while keeping declaration order,
// which plain map decoding would lose.
func (v *VarList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("vars must be a mapping of variable name to tool call (line %d)", node.Line)
	}
	decls := make(VarList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var call ToolCall
		if err := valNode.Decode(&call); err != nil {
			return fmt.Errorf("var %q: %w", keyNode.Value, err)
		}
		decls = append(decls, VarDecl{Name: keyNode.Value, Call: call})
	}
	*v = decls
	return nil
}

// MarshalYAML renders the var list back as an ordered mapping.
func (v VarList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, d := range v {
		var keyNode, valNode yaml.Node
		keyNode.SetString(d.Name)
		if err := valNode.Encode(d.Call); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &keyNode, &valNode)
	}
	return node, nil
}

// ToolCall is a recipe-declared invocation: a tool name plus templated
// arguments rendered against the current variable bindings. When is an
// optional expr-lang condition; a false condition skips resolution and
// binds the empty string.
type ToolCall struct {
	Tool string   `yaml:"tool"           json:"tool" jsonschema:"required"`
	Args ArgsSpec `yaml:"args,omitempty" json:"args,omitempty"`
	When string   `yaml:"when,omitempty" json:"when,omitempty"`
}

// PostAction is a tool call applied after the chat response arrives. The
// response is bound under "response" in the final variable set.
type PostAction struct {
	Tool string   `yaml:"tool"           json:"tool" jsonschema:"required"`
	Args ArgsSpec `yaml:"args,omitempty" json:"args,omitempty"`
	When string   `yaml:"when,omitempty" json:"when,omitempty"`
}

// ArgsSpec is the templated argument list of a tool call. Authors may
// write a single scalar or a sequence; a scalar decodes as a one-element
// list.
type ArgsSpec []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (a *ArgsSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = ArgsSpec{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("args must be strings (line %d): %w", node.Line, err)
		}
		*a = ArgsSpec(list)
		return nil
	default:
		return fmt.Errorf("args must be a string or a list of strings (line %d)", node.Line)
	}
}

// LoadFile reads and parses a recipe YAML file with strict unknown-field
// rejection (yaml.v3 KnownFields). Returns the parsed Recipe or an error.
func LoadFile(path string) (*Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipe: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a recipe from an io.Reader with strict unknown-field rejection.
func Load(r io.Reader) (*Recipe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rec Recipe
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode recipe: %w", err)
	}
	return &rec, nil
}
