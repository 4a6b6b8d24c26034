package dynamic

// Shape identifies how an argument payload addresses a tool's parameters.
// An LLM-driven caller may emit any of these depending on how it was
// prompted, so the dispatch layer must accept all of them.
type Shape int

const (
	// ShapeNone is an empty payload: every parameter binds to nil.
	ShapeNone Shape = iota
	// ShapePositional binds values to parameters in signature order,
	// coercing each to its declared type.
	ShapePositional
	// ShapeTyped binds values positionally without coercion; the caller
	// guarantees the values already match the signature.
	ShapeTyped
	// ShapeNamed resolves each parameter by name from a map; names absent
	// from the map bind to nil before coercion.
	ShapeNamed
)

// Args is the tagged union of argument payload shapes accepted by
// Catalog.Invoke.
type Args struct {
	shape Shape
	pos   []any
	named map[string]any
}

// NoArgs is the empty payload.
func NoArgs() Args {
	return Args{shape: ShapeNone}
}

// Positional wraps an ordered list of values bound positionally with
// coercion.
func Positional(values ...any) Args {
	return Args{shape: ShapePositional, pos: values}
}

// PositionalStrings wraps rendered template arguments, the shape the recipe
// executor produces.
func PositionalStrings(values []string) Args {
	pos := make([]any, len(values))
	for i, v := range values {
		pos[i] = v
	}
	return Args{shape: ShapePositional, pos: pos}
}

// Typed wraps pre-typed values bound positionally without coercion.
func Typed(values ...any) Args {
	return Args{shape: ShapeTyped, pos: values}
}

// Named wraps a map payload resolved by parameter name.
func Named(values map[string]any) Args {
	return Args{shape: ShapeNamed, named: values}
}

// Shape returns the payload shape.
func (a Args) Shape() Shape { return a.shape }

// Positional returns the ordered values for positional shapes.
func (a Args) Positional() []any { return a.pos }

// Named returns the name-addressed values for the named shape.
func (a Args) Named() map[string]any { return a.named }
