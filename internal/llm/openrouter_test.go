package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNewOpenRouterProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpenRouterConfig
		wantErr bool
		model   string
	}{
		{
			name:  "valid config",
			cfg:   OpenRouterConfig{APIKey: "sk-or-test", Model: "google/gemini-2.0-flash-exp"},
			model: "google/gemini-2.0-flash-exp",
		},
		{
			name:    "empty API key",
			cfg:     OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"},
			wantErr: true,
		},
		{
			// Model IDs are used as-is (no friendly-name mapping).
			name:  "custom model pass-through",
			cfg:   OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-3-haiku"},
			model: "anthropic/claude-3-haiku",
		},
		{
			name:  "custom base URL",
			cfg:   OpenRouterConfig{APIKey: "sk-or-test", Model: "meta-llama/llama-3-8b", BaseURL: "https://custom.openrouter.example/v1"},
			model: "meta-llama/llama-3-8b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOpenRouterProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.ModelID() != tt.model {
				t.Errorf("model = %q, want %q", p.ModelID(), tt.model)
			}
		})
	}
}

func TestOpenRouterProvider_StreamsThroughCompatibleAPI(t *testing.T) {
	var gotPath, gotTitle, gotReferer string
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("X-Title")
		gotReferer = r.Header.Get("HTTP-Referer")
		for _, text := range []string{`{"question":"Q1",`, `"options":["a"],"correctAnswer":0}` + "\n"} {
			fmt.Fprintf(w, "data: %s\n\n", openAIChunkJSON(text, ""))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	p, err := NewOpenRouterProvider(OpenRouterConfig{
		APIKey:  "sk-or-test",
		Model:   "google/gemini-2.0-flash-exp",
		BaseURL: server.URL + "/api/v1",
		SiteURL: "https://quiz.example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var b strings.Builder
	for d, err := range p.Stream(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "go"}},
	}) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		b.WriteString(d.Text)
	}

	if gotPath != "/api/v1/chat/completions" {
		t.Errorf("path = %q, want /api/v1/chat/completions", gotPath)
	}
	if gotTitle != "mcqgen" {
		t.Errorf("X-Title = %q, want mcqgen", gotTitle)
	}
	if gotReferer != "https://quiz.example.com" {
		t.Errorf("HTTP-Referer = %q, want https://quiz.example.com", gotReferer)
	}
	if want := `{"question":"Q1","options":["a"],"correctAnswer":0}` + "\n"; b.String() != want {
		t.Errorf("streamed text = %q, want %q", b.String(), want)
	}
}
