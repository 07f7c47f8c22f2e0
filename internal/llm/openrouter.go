package llm

import (
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterAppName = "mcqgen"
)

// OpenRouterProvider wraps OpenAIProvider with OpenRouter-specific defaults.
// OpenRouter exposes an OpenAI-compatible API, so the underlying SDK and its
// streaming support are reused. Every request carries the app attribution
// headers OpenRouter reads.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	app := cfg.AppName
	if app == "" {
		app = defaultOpenRouterAppName
	}

	inner, err := newOpenAIProviderRaw(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: baseURL,
	}, func(c *openai.ClientConfig) {
		c.HTTPClient = &http.Client{Transport: &attributionTransport{
			base:    http.DefaultTransport,
			title:   app,
			referer: cfg.SiteURL,
		}}
	})
	if err != nil {
		return nil, err
	}

	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// attributionTransport adds OpenRouter's X-Title and HTTP-Referer headers.
type attributionTransport struct {
	base    http.RoundTripper
	title   string
	referer string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Title", t.title)
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	return t.base.RoundTrip(req)
}
