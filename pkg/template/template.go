// Package template implements the minimal substitution grammar used in
// recipe documents: {{key}} and {{key|fallback}}.
//
// This is deliberately not text/template. Recipe templates are authored
// alongside LLM prompts, so the engine must be single-pass: a resolved
// value or fallback is inserted literally and never re-scanned, which
// rules out recursive expansion and injection via chained placeholders.
package template

import "regexp"

// pattern matches {{ key }} and {{ key | fallback }}. The key runs up to
// an optional pipe and may not contain braces; the fallback runs from the
// pipe to the nearest closing braces and may contain single braces.
var pattern = regexp.MustCompile(`\{\{([^|{}]*)(\|((?s:.*?)))?\}\}`)

// Render substitutes every {{key}} / {{key|fallback}} occurrence in tmpl.
// Resolution order per match: the bound value if the key is present in
// vars, else the fallback if the pattern declared one, else the empty
// string. Key and fallback are trimmed of surrounding whitespace. Text
// outside placeholders passes through unchanged.
func Render(tmpl string, vars map[string]string) string {
	matches := pattern.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl
	}

	var out []byte
	last := 0
	for _, m := range matches {
		out = append(out, tmpl[last:m[0]]...)
		key := trim(tmpl[m[2]:m[3]])
		if val, ok := vars[key]; ok {
			out = append(out, val...)
		} else if m[4] >= 0 { // pipe present, use fallback
			out = append(out, trim(tmpl[m[6]:m[7]])...)
		}
		last = m[1]
	}
	out = append(out, tmpl[last:]...)
	return string(out)
}

func trim(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
