// Package schema validates provider output against caller-declared response
// shapes and normalizes explicit JSON nulls to absent members.
package schema

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Schema describes the expected shape of a JSON document. It covers the
// subset of JSON Schema the documentation pipeline uses: typed objects with
// required member lists, arrays with a single item schema, and scalars.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
}

var validTypes = map[string]bool{
	"object":  true,
	"array":   true,
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
}

// Parse decodes a schema document and rejects malformed or unsupported
// shapes up front, before any provider work happens.
func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.wellFormed(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) wellFormed() error {
	if s == nil {
		return nil
	}
	if s.Type != "" && !validTypes[s.Type] {
		return fmt.Errorf("unsupported schema type %q", s.Type)
	}
	for name, ps := range s.Properties {
		if err := ps.wellFormed(); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	if s.Items != nil {
		if err := s.Items.wellFormed(); err != nil {
			return fmt.Errorf("items: %w", err)
		}
	}
	return nil
}

// Normalize recursively rewrites explicit null object members to absent.
// Models frequently emit `"field": null` for optional members they chose to
// skip; consumers treat null and absent identically, so the canonical form
// drops them. Null array elements are positional and stay.
func Normalize(raw []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return json.Marshal(normalizeValue(doc))
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, member := range val {
			if member == nil {
				delete(val, k)
				continue
			}
			val[k] = normalizeValue(member)
		}
		return val
	case []any:
		for i, item := range val {
			if item == nil {
				continue
			}
			val[i] = normalizeValue(item)
		}
		return val
	default:
		return v
	}
}

// Validate normalizes raw and checks the result against the schema. The
// normalized payload is returned so callers hand consumers canonical output.
func (s *Schema) Validate(raw []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	doc = normalizeValue(doc)
	if err := s.check(doc, "$"); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (s *Schema) check(v any, path string) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %s", path, typeName(v))
		}
		for _, name := range s.Required {
			if _, present := obj[name]; !present {
				return fmt.Errorf("%s: missing required member %q", path, name)
			}
		}
		// Subset matching: undeclared members pass through untouched.
		for name, member := range obj {
			ps, declared := s.Properties[name]
			if !declared {
				continue
			}
			if err := ps.check(member, path+"."+name); err != nil {
				return err
			}
		}
		return nil
	case "array":
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %s", path, typeName(v))
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range arr {
			if err := s.Items.check(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s: expected string, got %s", path, typeName(v))
		}
		return nil
	case "number":
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %s", path, typeName(v))
		}
		return nil
	case "integer":
		f, ok := v.(float64)
		if !ok || math.Trunc(f) != f {
			return fmt.Errorf("%s: expected integer, got %s", path, typeName(v))
		}
		return nil
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %s", path, typeName(v))
		}
		return nil
	case "":
		return nil
	default:
		return fmt.Errorf("%s: unsupported schema type %q", path, s.Type)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
