package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// staticProvider exposes a fixed tool list.
type staticProvider struct {
	tools []Tool
}

func (p *staticProvider) Tools() []Tool { return p.tools }

// greetTool records how it was called: (name string, count int, enabled bool).
func greetTool(calls *[][]any) Tool {
	return Tool{
		Name: "greet",
		Params: []Param{
			{Name: "name", Type: dynamic.TypeString},
			{Name: "count", Type: dynamic.TypeInt},
			{Name: "enabled", Type: dynamic.TypeBool},
		},
		Handler: func(ctx context.Context, args []any) (any, error) {
			*calls = append(*calls, args)
			return fmt.Sprintf("%v/%v/%v", args[0], args[1], args[2]), nil
		},
	}
}

func buildWith(tools ...Tool) *Catalog {
	return Build([]Provider{&staticProvider{tools: tools}}, nil)
}

func TestInvokeCoercionIsShapeTransparent(t *testing.T) {
	var calls [][]any
	c := buildWith(greetTool(&calls))

	asStrings, err := c.Invoke(context.Background(), "greet", dynamic.Positional("Bob", "99", "true"))
	if err != nil {
		t.Fatalf("Invoke strings: %v", err)
	}
	asTyped, err := c.Invoke(context.Background(), "greet", dynamic.Typed("Bob", 99, true))
	if err != nil {
		t.Fatalf("Invoke typed: %v", err)
	}
	if asStrings != asTyped {
		t.Errorf("string-shaped call %v != typed call %v", asStrings, asTyped)
	}
}

func TestInvokeNamedMissingParamsGetDefaults(t *testing.T) {
	var calls [][]any
	c := buildWith(greetTool(&calls))

	_, err := c.Invoke(context.Background(), "greet", dynamic.Named(map[string]any{"name": "Ada"}))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	got := calls[0]
	if got[0] != "Ada" {
		t.Errorf("name = %v, want Ada", got[0])
	}
	if got[1] != 0 {
		t.Errorf("count = %v, want 0", got[1])
	}
	if got[2] != false {
		t.Errorf("enabled = %v, want false", got[2])
	}
}

func TestInvokeNilArgs(t *testing.T) {
	called := false
	c := buildWith(Tool{
		Name: "ping",
		Handler: func(ctx context.Context, args []any) (any, error) {
			called = true
			if len(args) != 0 {
				t.Errorf("zero-param tool got %d args", len(args))
			}
			return "pong", nil
		},
	})
	if _, err := c.Invoke(context.Background(), "ping", dynamic.NoArgs()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestInvokeMissingTrailingPositional(t *testing.T) {
	var calls [][]any
	c := buildWith(greetTool(&calls))

	_, err := c.Invoke(context.Background(), "greet", dynamic.Positional("Bob"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	got := calls[0]
	if got[1] != 0 || got[2] != false {
		t.Errorf("missing trailing args = %v, %v; want 0, false", got[1], got[2])
	}
}

func TestInvokeSingleListParamReceivesWholePayload(t *testing.T) {
	var received []any
	c := buildWith(Tool{
		Name:   "run",
		Params: []Param{{Name: "argv", Type: dynamic.TypeList}},
		Handler: func(ctx context.Context, args []any) (any, error) {
			received = args[0].([]any)
			return "", nil
		},
	})
	_, err := c.Invoke(context.Background(), "run", dynamic.Positional("git", "status", "--short"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(received) != 3 || received[0] != "git" || received[2] != "--short" {
		t.Errorf("list param = %v, want whole payload", received)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	c := buildWith(
		Tool{Name: "writeFile", Handler: nopHandler},
		Tool{Name: "readFile", Handler: nopHandler},
	)

	_, err := c.Invoke(context.Background(), "missing", dynamic.NoArgs())
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	var nf *ToolNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error type = %T, want *ToolNotFoundError", err)
	}
	// Message must contain the full sorted list of registered names.
	if !strings.Contains(err.Error(), "readFile, writeFile") {
		t.Errorf("error %q should enumerate sorted available names", err.Error())
	}
}

func TestBuildAllowListFiltersExactly(t *testing.T) {
	providers := []Provider{
		&staticProvider{tools: []Tool{
			{Name: "readFile", Handler: nopHandler},
			{Name: "writeFile", Handler: nopHandler},
		}},
		&staticProvider{tools: []Tool{
			{Name: "run", Handler: nopHandler},
		}},
	}

	c := Build(providers, []string{"writeFile"})
	keys := c.Keys()
	if len(keys) != 1 || keys[0] != "writeFile" {
		t.Errorf("Keys() = %v, want exactly [writeFile]", keys)
	}

	// Filtered-out names fail with ToolNotFound.
	_, err := c.Invoke(context.Background(), "readFile", dynamic.NoArgs())
	var nf *ToolNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("filtered tool should be ToolNotFound, got %v", err)
	}
}

func TestBuildLastRegistrationWins(t *testing.T) {
	first := Tool{Name: "dup", Handler: func(ctx context.Context, args []any) (any, error) { return "first", nil }}
	second := Tool{Name: "dup", Handler: func(ctx context.Context, args []any) (any, error) { return "second", nil }}

	c := Build([]Provider{
		&staticProvider{tools: []Tool{first}},
		&staticProvider{tools: []Tool{second}},
	}, nil)

	got, err := c.Invoke(context.Background(), "dup", dynamic.NoArgs())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "second" {
		t.Errorf("collision winner = %v, want second (later registration)", got)
	}
}

func nopHandler(ctx context.Context, args []any) (any, error) { return "", nil }
