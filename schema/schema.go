// Package schema builds and validates JSON Schemas for structured tool
// arguments.
//
// A ReAct Action carries a single argument string. Tools that need more
// than one value declare an object schema and receive the argument as a
// JSON object (YAML flow style is also accepted):
//
//	Action: convert | {"amount": 10, "from": "USD", "to": "EUR"}
//
//	s := schema.MustCompile(schema.Object(map[string]*schema.Property{
//	    "amount": schema.Number("Amount to convert").Min(0),
//	    "from":   schema.String("Source currency"),
//	    "to":     schema.String("Target currency"),
//	}, "amount", "from", "to"))
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Schema pairs a raw schema map with its compiled validator.
type Schema struct {
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Raw returns the schema as a map.
func (s *Schema) Raw() map[string]any {
	if s == nil {
		return nil
	}
	return s.raw
}

// String renders the schema as compact JSON for use in tool descriptions.
func (s *Schema) String() string {
	if s == nil {
		return ""
	}
	b, err := json.Marshal(s.raw)
	if err != nil {
		return ""
	}
	return string(b)
}

// Validate checks data against the schema. A nil schema accepts anything.
func (s *Schema) Validate(data map[string]any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if err := s.compiled.Validate(data); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ParseArgument decodes an Action argument into an object and validates
// it. JSON is tried first, then YAML, so `{symbol: BTC}` is accepted too.
func (s *Schema) ParseArgument(arg string) (map[string]any, error) {
	data, err := DecodeObject(arg)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ErrNotObject is returned when an argument does not decode to an object.
var ErrNotObject = errors.New("argument is not an object")

// DecodeObject decodes text as a JSON or YAML object.
func DecodeObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}, nil
	}

	var data map[string]any
	jsonErr := json.Unmarshal([]byte(text), &data)
	if jsonErr == nil {
		return data, nil
	}

	var node any
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, fmt.Errorf("decode argument: %w", jsonErr)
	}
	if _, ok := node.(map[string]any); !ok {
		return nil, ErrNotObject
	}

	// Round-trip through JSON so numbers are float64 as with JSON input.
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}
	return data, nil
}

// ValidationError wraps a JSON Schema validation failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Compile compiles a raw schema map. A nil map yields a nil Schema.
func Compile(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, nil
	}

	schemaJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaData, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{raw: raw, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(raw map[string]any) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Object creates an object schema. Trailing names mark required properties.
func Object(properties map[string]*Property, required ...string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, prop := range properties {
		props[name] = prop.build()
	}
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Property is one property of an object schema.
type Property struct {
	typ         string
	description string
	enum        []any
	minimum     *float64
	maximum     *float64
	pattern     string
}

func (p *Property) build() map[string]any {
	m := map[string]any{"type": p.typ}
	if p.description != "" {
		m["description"] = p.description
	}
	if len(p.enum) > 0 {
		m["enum"] = p.enum
	}
	if p.minimum != nil {
		m["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		m["maximum"] = *p.maximum
	}
	if p.pattern != "" {
		m["pattern"] = p.pattern
	}
	return m
}

func String(description string) *Property {
	return &Property{typ: "string", description: description}
}

func Integer(description string) *Property {
	return &Property{typ: "integer", description: description}
}

func Number(description string) *Property {
	return &Property{typ: "number", description: description}
}

func Boolean(description string) *Property {
	return &Property{typ: "boolean", description: description}
}

// Enum restricts the property to values.
func (p *Property) Enum(values ...any) *Property {
	p.enum = values
	return p
}

// Min sets the inclusive minimum of a numeric property.
func (p *Property) Min(v float64) *Property {
	p.minimum = &v
	return p
}

// Max sets the inclusive maximum of a numeric property.
func (p *Property) Max(v float64) *Property {
	p.maximum = &v
	return p
}

// Pattern sets a regular expression a string property must match.
func (p *Property) Pattern(re string) *Property {
	p.pattern = re
	return p
}
