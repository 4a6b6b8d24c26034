package template

import "testing"

func TestRender(t *testing.T) {
	cases := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{"plain text", "no placeholders here", nil, "no placeholders here"},
		{"simple substitution", "Hello {{name}}", map[string]string{"name": "Bob"}, "Hello Bob"},
		{"missing key empty", "{{missing}}", map[string]string{}, ""},
		{"fallback used", "Hello {{x|World}}", map[string]string{}, "Hello World"},
		{"bound value wins over fallback", "Hello {{x|World}}", map[string]string{"x": "Mars"}, "Hello Mars"},
		{"whitespace trimmed", "Hello {{ x | World }}", map[string]string{}, "Hello World"},
		{"bound empty string wins over fallback", "[{{x|fb}}]", map[string]string{"x": ""}, "[]"},
		{"empty fallback", "[{{x|}}]", map[string]string{}, "[]"},
		{"multiple placeholders", "{{a}}-{{b}}", map[string]string{"a": "1", "b": "2"}, "1-2"},
		{"fallback with single brace", "{{x|a}b}}", map[string]string{}, "a}b"},
		{"bound value wins over braced fallback", "{{x|a}b}}", map[string]string{"x": "v"}, "v"},
		{"fallback ends at nearest closing braces", "{{x|a}}b}}", map[string]string{}, "ab}}"},
		{"surrounding text preserved", "File: {{f}}!", map[string]string{"f": "x.txt"}, "File: x.txt!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Render(tc.tmpl, tc.vars)
			if got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.tmpl, got, tc.want)
			}
		})
	}
}

// Inserted values must never be re-scanned: a value containing placeholder
// syntax is emitted literally instead of expanding again.
func TestRenderNotRecursive(t *testing.T) {
	vars := map[string]string{
		"a": "{{b}}",
		"b": "boom",
	}
	if got := Render("{{a}}", vars); got != "{{b}}" {
		t.Errorf("Render = %q, want literal {{b}}", got)
	}
}

func TestRenderSelfReference(t *testing.T) {
	// A value referencing its own key must not loop.
	vars := map[string]string{"x": "{{x}}"}
	if got := Render("{{x}}", vars); got != "{{x}}" {
		t.Errorf("Render = %q, want {{x}}", got)
	}
}
