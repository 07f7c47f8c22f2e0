package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func questionSetSchema() *Schema {
	return &Schema{
		Name:        "test-question-set",
		Description: "A set of quiz questions",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"questions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"question":      map[string]any{"type": "string"},
							"options":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"correctAnswer": map[string]any{"type": "integer", "minimum": 0},
							"difficulty":    map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
						},
						"required": []any{"question", "options", "correctAnswer"},
					},
				},
			},
			"required": []any{"questions"},
		},
	}
}

func TestValidateResponse_Valid(t *testing.T) {
	raw := json.RawMessage(`{"questions":[{"question":"2+2?","options":["3","4"],"correctAnswer":1,"difficulty":"easy"}]}`)
	if err := validateResponse(questionSetSchema(), raw); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateResponse_ValidWithoutOptional(t *testing.T) {
	raw := json.RawMessage(`{"questions":[{"question":"2+2?","options":["3","4"],"correctAnswer":1}]}`)
	if err := validateResponse(questionSetSchema(), raw); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateResponse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing questions", `{"items":[]}`},
		{"missing correct answer", `{"questions":[{"question":"Q","options":["a"]}]}`},
		{"wrong type", `{"questions":[{"question":"Q","options":["a"],"correctAnswer":"zero"}]}`},
		{"negative index", `{"questions":[{"question":"Q","options":["a"],"correctAnswer":-1}]}`},
		{"invalid enum", `{"questions":[{"question":"Q","options":["a"],"correctAnswer":0,"difficulty":"extreme"}]}`},
		{"malformed JSON", `{"questions": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(questionSetSchema(), json.RawMessage(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			var invErr *ErrInvalidResponse
			if !errors.As(err, &invErr) {
				t.Fatalf("expected ErrInvalidResponse, got: %T", err)
			}
			if string(invErr.Content) != tt.raw {
				t.Fatalf("expected content to be preserved, got %q", invErr.Content)
			}
		})
	}
}

func TestValidateResponse_EmptyResponse(t *testing.T) {
	if err := validateResponse(questionSetSchema(), json.RawMessage(``)); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := ValidateJSON(nil, json.RawMessage(`{"anything":"goes"}`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidateJSON_UsesCache(t *testing.T) {
	s := questionSetSchema()
	raw := json.RawMessage(`{"questions":[]}`)
	if err := ValidateJSON(s, raw); err != nil {
		t.Fatalf("first validation: %v", err)
	}
	if _, ok := schemaCache.Load(s.Name); !ok {
		t.Fatal("expected compiled schema to be cached")
	}
	if err := ValidateJSON(s, raw); err != nil {
		t.Fatalf("cached validation: %v", err)
	}
}

func TestValidateJSON_ReportsFailingPath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{"wrong answer type", `{"questions":[{"question":"Q","options":["a"],"correctAnswer":0},{"question":"Q","options":["a"],"correctAnswer":"zero"}]}`, "/questions/1/correctAnswer"},
		{"missing answer", `{"questions":[{"question":"Q","options":["a"]}]}`, "/questions/0"},
		{"missing questions", `{"items":[]}`, "/"},
		{"malformed JSON", `{"questions": [`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSON(questionSetSchema(), json.RawMessage(tt.raw))
			var invErr *ErrInvalidResponse
			if !errors.As(err, &invErr) {
				t.Fatalf("expected ErrInvalidResponse, got: %v", err)
			}
			if invErr.Path != tt.path {
				t.Errorf("path = %q, want %q", invErr.Path, tt.path)
			}
			if tt.path != "" && !strings.Contains(err.Error(), "at "+tt.path) {
				t.Errorf("error %q does not name path %q", err, tt.path)
			}
		})
	}
}
