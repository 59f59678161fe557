package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/locus/internal/fault"
)

// placeholderRe matches {key} and {key?}. Braces around anything else, such
// as JSON examples in a prompt, are left alone.
var placeholderRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)(\?)?\}`)

// Placeholder is a named slot in a stage template.
type Placeholder struct {
	Key      string
	Optional bool
}

// Template is a stage prompt with named placeholders. A required
// placeholder with no value is a missing dependency; an optional one
// renders as "".
type Template struct {
	text         string
	placeholders []Placeholder
}

// NewTemplate parses text. Each key is listed once, in first-use order; a
// key used both ways is required.
func NewTemplate(text string) *Template {
	t := &Template{text: text}
	seen := make(map[string]int)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		p := Placeholder{Key: m[1], Optional: m[2] == "?"}
		if i, ok := seen[p.Key]; ok {
			t.placeholders[i].Optional = t.placeholders[i].Optional && p.Optional
			continue
		}
		seen[p.Key] = len(t.placeholders)
		t.placeholders = append(t.placeholders, p)
	}
	return t
}

// Placeholders returns the parsed placeholders.
func (t *Template) Placeholders() []Placeholder {
	out := make([]Placeholder, len(t.placeholders))
	copy(out, t.placeholders)
	return out
}

// Required returns the keys that must have a value.
func (t *Template) Required() []string {
	var out []string
	for _, p := range t.placeholders {
		if !p.Optional {
			out = append(out, p.Key)
		}
	}
	return out
}

// Missing returns required keys for which has reports false.
func (t *Template) Missing(has func(key string) bool) []string {
	var out []string
	for _, key := range t.Required() {
		if !has(key) {
			out = append(out, key)
		}
	}
	return out
}

// Render substitutes every placeholder using lookup. It fails with a
// missing dependency error before substituting anything if a required key
// has no value.
func (t *Template) Render(op string, lookup func(key string) (any, bool)) (string, error) {
	if missing := t.Missing(func(key string) bool {
		_, ok := lookup(key)
		return ok
	}); len(missing) > 0 {
		return "", fault.MissingDependency(op, missing...)
	}

	return placeholderRe.ReplaceAllStringFunc(t.text, func(m string) string {
		key := strings.TrimSuffix(strings.Trim(m, "{}"), "?")
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return formatValue(v)
	}), nil
}

// String returns the raw template text.
func (t *Template) String() string {
	return t.text
}

// formatValue renders a state value for a prompt. Strings and Stringers are
// used as-is; anything else is indented JSON.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case []byte:
		return string(x)
	case int, int64, float64, bool:
		return fmt.Sprint(x)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
