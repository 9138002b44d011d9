package schema

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNormalize_DropsNullMembers(t *testing.T) {
	raw := []byte(`{"summary":"ok","mood":null,"client":{"name":"A","pronouns":null},"sessions":[{"id":1,"notes":null}]}`)

	normalized, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		t.Fatalf("unmarshal normalized: %v", err)
	}
	if _, present := doc["mood"]; present {
		t.Error("expected null member mood to be dropped")
	}
	client := doc["client"].(map[string]any)
	if _, present := client["pronouns"]; present {
		t.Error("expected nested null member to be dropped")
	}
	session := doc["sessions"].([]any)[0].(map[string]any)
	if _, present := session["notes"]; present {
		t.Error("expected null member inside array element to be dropped")
	}
	if doc["summary"] != "ok" {
		t.Errorf("expected non-null members preserved, got %v", doc["summary"])
	}
}

func TestNormalize_KeepsNullArrayElements(t *testing.T) {
	normalized, err := Normalize([]byte(`{"values":[null,1,null]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		t.Fatalf("unmarshal normalized: %v", err)
	}
	if values := doc["values"].([]any); len(values) != 3 {
		t.Errorf("expected array positions preserved, got %v", values)
	}
}

func TestNormalize_RejectsMalformedPayload(t *testing.T) {
	if _, err := Normalize([]byte(`{"summary":`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func noteSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"summary": {Type: "string"},
			"tags":    {Type: "array", Items: &Schema{Type: "string"}},
			"risk":    {Type: "object", Properties: map[string]*Schema{"level": {Type: "integer"}}},
		},
		Required: []string{"summary"},
	}
}

func TestValidate_NullOptionalMemberPasses(t *testing.T) {
	normalized, err := noteSchema().Validate([]byte(`{"summary":"stable affect","tags":null}`))
	if err != nil {
		t.Fatalf("expected null optional member to validate, got %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		t.Fatalf("unmarshal normalized: %v", err)
	}
	if _, present := doc["tags"]; present {
		t.Error("expected tags absent after normalization")
	}
}

func TestValidate_MissingRequiredMember(t *testing.T) {
	_, err := noteSchema().Validate([]byte(`{"tags":["anxiety"]}`))
	if err == nil {
		t.Fatal("expected error for missing required member")
	}
	if !strings.Contains(err.Error(), "summary") {
		t.Errorf("expected error to name the member, got %v", err)
	}
}

func TestValidate_NullRequiredMemberFails(t *testing.T) {
	// Null normalizes to absent, and absent required members fail.
	if _, err := noteSchema().Validate([]byte(`{"summary":null}`)); err == nil {
		t.Error("expected error for null required member")
	}
}

func TestValidate_TypeMismatches(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		payload string
		wantAt  string
	}{
		{
			name:    "string where number expected",
			schema:  &Schema{Type: "object", Properties: map[string]*Schema{"score": {Type: "number"}}},
			payload: `{"score":"high"}`,
			wantAt:  "$.score",
		},
		{
			name:    "object where array expected",
			schema:  &Schema{Type: "object", Properties: map[string]*Schema{"tags": {Type: "array"}}},
			payload: `{"tags":{}}`,
			wantAt:  "$.tags",
		},
		{
			name:    "array element type",
			schema:  &Schema{Type: "object", Properties: map[string]*Schema{"tags": {Type: "array", Items: &Schema{Type: "string"}}}},
			payload: `{"tags":["a",3]}`,
			wantAt:  "$.tags[1]",
		},
		{
			name:    "top level not an object",
			schema:  &Schema{Type: "object"},
			payload: `[1,2]`,
			wantAt:  "$",
		},
		{
			name:    "boolean",
			schema:  &Schema{Type: "object", Properties: map[string]*Schema{"flag": {Type: "boolean"}}},
			payload: `{"flag":"yes"}`,
			wantAt:  "$.flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.schema.Validate([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantAt) {
				t.Errorf("expected error at %s, got %v", tt.wantAt, err)
			}
		})
	}
}

func TestValidate_IntegerRejectsFractions(t *testing.T) {
	s := &Schema{Type: "object", Properties: map[string]*Schema{"level": {Type: "integer"}}}

	if _, err := s.Validate([]byte(`{"level":3}`)); err != nil {
		t.Errorf("expected whole number to pass, got %v", err)
	}
	if _, err := s.Validate([]byte(`{"level":3.5}`)); err == nil {
		t.Error("expected fractional value to fail integer check")
	}
}

func TestValidate_UndeclaredMembersPassThrough(t *testing.T) {
	s := &Schema{Type: "object", Required: []string{"summary"}, Properties: map[string]*Schema{"summary": {Type: "string"}}}

	normalized, err := s.Validate([]byte(`{"summary":"ok","extra":{"anything":true}}`))
	if err != nil {
		t.Fatalf("expected undeclared members to pass, got %v", err)
	}
	if !strings.Contains(string(normalized), "extra") {
		t.Error("expected undeclared members preserved in output")
	}
}

func TestParse_RejectsUnsupportedType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"object","properties":{"when":{"type":"datetime"}}}`))
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if !strings.Contains(err.Error(), "datetime") {
		t.Errorf("expected offending type in error, got %v", err)
	}
}

func TestParse_AcceptsNestedShapes(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"required": ["summary"],
		"properties": {
			"summary": {"type": "string"},
			"interventions": {"type": "array", "items": {"type": "object", "properties": {"name": {"type": "string"}}}}
		}
	}`)
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Properties["interventions"].Items.Properties["name"].Type != "string" {
		t.Error("expected nested schema decoded")
	}
}
