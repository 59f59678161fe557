package schema

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractJSON strips Markdown code fences and surrounding prose, returning
// the outermost JSON object in text.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// Decode parses text as JSON and validates it against d. The decoded value
// is returned even when validation fails.
func (d *Descriptor) Decode(text string) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &v); err != nil {
		return nil, &ValidationError{Schema: d.Name, Violations: []string{"response is not a JSON object: " + err.Error()}}
	}
	return v, d.Validate(v)
}

// Bind converts a decoded value into a typed struct via its JSON tags.
func Bind(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "schema: marshal value")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "schema: bind value")
	}
	return nil
}
