// Package schema describes the structured shape a reasoner response must
// have and validates decoded JSON against it.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rotisserie/eris"
)

// Type is a JSON value type.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Field describes one named property. Object fields carry Fields, array
// fields carry Items.
type Field struct {
	Name        string
	Type        Type
	Description string
	Optional    bool
	Min         *float64
	Max         *float64
	MinItems    int
	MaxItems    int
	Fields      []Field
	Items       *Field
}

// Descriptor is a named top-level object schema. It is the single source
// for validation (JSON Schema), the Gemini response schema and the prompt
// outline used with providers that lack native structured output.
type Descriptor struct {
	Name        string
	Description string
	Fields      []Field

	once       sync.Once
	resolved   *jsonschema.Resolved
	resolveErr error
}

// String declares a string field.
func String(name, desc string) Field {
	return Field{Name: name, Type: TypeString, Description: desc}
}

// Number declares a number field.
func Number(name, desc string) Field {
	return Field{Name: name, Type: TypeNumber, Description: desc}
}

// Integer declares an integer field.
func Integer(name, desc string) Field {
	return Field{Name: name, Type: TypeInteger, Description: desc}
}

// Boolean declares a boolean field.
func Boolean(name, desc string) Field {
	return Field{Name: name, Type: TypeBoolean, Description: desc}
}

// Object declares a nested object field.
func Object(name, desc string, fields ...Field) Field {
	return Field{Name: name, Type: TypeObject, Description: desc, Fields: fields}
}

// Array declares an array field whose elements match items.
func Array(name, desc string, items Field) Field {
	return Field{Name: name, Type: TypeArray, Description: desc, Items: &items}
}

// Opt marks the field optional.
func (f Field) Opt() Field {
	f.Optional = true
	return f
}

// Range bounds a numeric field to [lo, hi].
func (f Field) Range(lo, hi float64) Field {
	f.Min = &lo
	f.Max = &hi
	return f
}

// Len bounds the number of array elements. Zero means unbounded.
func (f Field) Len(lo, hi int) Field {
	f.MinItems = lo
	f.MaxItems = hi
	return f
}

// AsField returns the descriptor as an object field.
func (d *Descriptor) AsField() Field {
	return Field{Name: d.Name, Type: TypeObject, Description: d.Description, Fields: d.Fields}
}

// ValidationError reports why a value does not match a descriptor.
type ValidationError struct {
	Schema     string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Schema, strings.Join(e.Violations, "; "))
}

// JSONSchema converts the descriptor to a JSON Schema document. Optional
// fields also accept null; unknown properties are allowed.
func (d *Descriptor) JSONSchema() *jsonschema.Schema {
	return fieldJSONSchema(d.AsField(), false)
}

func fieldJSONSchema(f Field, nullable bool) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: f.Description, Minimum: f.Min, Maximum: f.Max}
	if nullable {
		s.Types = []string{"null", string(f.Type)}
	} else {
		s.Type = string(f.Type)
	}

	switch f.Type {
	case TypeArray:
		if f.Items != nil {
			s.Items = fieldJSONSchema(*f.Items, false)
		}
		if f.MinItems > 0 {
			n := f.MinItems
			s.MinItems = &n
		}
		if f.MaxItems > 0 {
			n := f.MaxItems
			s.MaxItems = &n
		}
	case TypeObject:
		s.Properties = make(map[string]*jsonschema.Schema, len(f.Fields))
		for _, child := range f.Fields {
			s.Properties[child.Name] = fieldJSONSchema(child, child.Optional)
		}
		s.Required = Required(f.Fields)
	}
	return s
}

func (d *Descriptor) resolve() (*jsonschema.Resolved, error) {
	d.once.Do(func() {
		d.resolved, d.resolveErr = d.JSONSchema().Resolve(nil)
	})
	return d.resolved, d.resolveErr
}

// Validate checks a decoded JSON value (maps, slices, float64, string,
// bool) against the descriptor.
func (d *Descriptor) Validate(v any) error {
	rs, err := d.resolve()
	if err != nil {
		return eris.Wrapf(err, "schema: resolve %s", d.Name)
	}
	if err := rs.Validate(v); err != nil {
		return &ValidationError{Schema: d.Name, Violations: []string{err.Error()}}
	}
	return nil
}

// Describe renders the descriptor as an indented outline suitable for
// inclusion in a prompt.
func (d *Descriptor) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (object)", d.Name)
	if d.Description != "" {
		fmt.Fprintf(&b, ": %s", d.Description)
	}
	b.WriteByte('\n')
	describeFields(&b, d.Fields, 1)
	return b.String()
}

func describeFields(b *strings.Builder, fields []Field, depth int) {
	for _, f := range fields {
		describeField(b, f, depth)
	}
}

func describeField(b *strings.Builder, f Field, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "- %s (%s", f.Name, typeLabel(f))
	if f.Optional {
		b.WriteString(", optional")
	}
	if f.Min != nil && f.Max != nil {
		fmt.Fprintf(b, ", %g-%g", *f.Min, *f.Max)
	}
	if f.MinItems > 0 || f.MaxItems > 0 {
		fmt.Fprintf(b, ", %d-%d items", f.MinItems, f.MaxItems)
	}
	b.WriteByte(')')
	if f.Description != "" {
		fmt.Fprintf(b, ": %s", f.Description)
	}
	b.WriteByte('\n')

	switch {
	case f.Type == TypeObject:
		describeFields(b, f.Fields, depth+1)
	case f.Type == TypeArray && f.Items != nil && f.Items.Type == TypeObject:
		describeFields(b, f.Items.Fields, depth+1)
	}
}

func typeLabel(f Field) string {
	if f.Type == TypeArray && f.Items != nil {
		return "array of " + string(f.Items.Type)
	}
	return string(f.Type)
}

// Required returns the names of required fields, sorted.
func Required(fields []Field) []string {
	var out []string
	for _, f := range fields {
		if !f.Optional {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}
