package llm

import (
	"testing"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.5-flash"},
		{"gemini-pro", "gemini-2.5-pro"},
		{"gemini-2.0-flash", "gemini-2.0-flash"}, // Pass-through
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":      map[string]any{"type": "string"},
						"options":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"correctAnswer": map[string]any{"type": "integer"},
						"difficulty":    map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
					},
					"required": []any{"question", "options", "correctAnswer"},
				},
			},
		},
		"required": []any{"questions"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	questions := schema.Properties["questions"]
	if questions == nil || questions.Type != "ARRAY" {
		t.Fatalf("expected ARRAY for questions, got %+v", questions)
	}
	item := questions.Items
	if item.Type != "OBJECT" {
		t.Fatalf("expected OBJECT items, got %s", item.Type)
	}
	if len(item.Properties) != 4 {
		t.Fatalf("expected 4 item properties, got %d", len(item.Properties))
	}
	if item.Properties["correctAnswer"].Type != "INTEGER" {
		t.Fatalf("expected INTEGER for correctAnswer, got %s", item.Properties["correctAnswer"].Type)
	}
	if item.Properties["options"].Items.Type != "STRING" {
		t.Fatalf("expected STRING option items, got %s", item.Properties["options"].Items.Type)
	}
	if len(item.Properties["difficulty"].Enum) != 3 {
		t.Fatalf("expected 3 enum values, got %d", len(item.Properties["difficulty"].Enum))
	}
	if len(item.Required) != 3 {
		t.Fatalf("expected 3 required item fields, got %d", len(item.Required))
	}
	if len(schema.Required) != 1 {
		t.Fatalf("expected 1 required field, got %d", len(schema.Required))
	}
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	if _, err := NewGeminiProvider(t.Context(), GeminiConfig{Model: "gemini-flash"}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
