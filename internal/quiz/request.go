package quiz

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/abhisek/mcqgen/internal/llm"
)

// GenerateRequest is the inbound body of both generation endpoints.
type GenerateRequest struct {
	Prompt        string     `json:"prompt"`
	QuestionCount int        `json:"questionCount"`
	AIModel       Model      `json:"aiModel"`
	Difficulty    Difficulty `json:"difficulty"`

	// APIKey authenticates every model except claude.
	APIKey string `json:"apiKey,omitempty"`

	// AWS credentials for claude on Bedrock.
	AWSAccessKeyID     string `json:"awsAccessKeyId,omitempty"`
	AWSSecretAccessKey string `json:"awsSecretAccessKey,omitempty"`
	AWSRegion          string `json:"awsRegion,omitempty"`

	// countSet records that the body carried questionCount, even as 0 or
	// null, so an explicit value is validated instead of defaulted.
	countSet bool
}

// UnmarshalJSON decodes the body and notes whether questionCount was sent.
func (r *GenerateRequest) UnmarshalJSON(data []byte) error {
	type plain GenerateRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*r = GenerateRequest(p)
	_, r.countSet = keys["questionCount"]
	return nil
}

// Defaults for omitted request fields.
const (
	DefaultQuestionCount = 10
	DefaultModel         = ModelOpenAI
	DefaultDifficulty    = DifficultyMedium
)

// ApplyDefaults fills omitted optional fields. A questionCount present in
// the decoded body is kept as sent.
func (r *GenerateRequest) ApplyDefaults() {
	if r.QuestionCount == 0 && !r.countSet {
		r.QuestionCount = DefaultQuestionCount
	}
	if r.AIModel == "" {
		r.AIModel = DefaultModel
	}
	if r.Difficulty == "" {
		r.Difficulty = DefaultDifficulty
	}
}

// ValidationError reports an invalid request field. Message is shown to the
// client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var credentialMessages = map[Model]string{
	ModelOpenAI:     "OpenAI API key is required",
	ModelGemini:     "Google Gemini API key is required",
	ModelAnthropic:  "Anthropic API key is required",
	ModelOpenRouter: "OpenRouter API key is required",
}

// Validate checks the request in a fixed order (prompt, credentials, count,
// model, difficulty) and returns the first failure as *ValidationError.
// Call ApplyDefaults first.
func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "Prompt is required"}
	}

	if msg, ok := credentialMessages[r.AIModel]; ok && r.APIKey == "" {
		return &ValidationError{Field: "apiKey", Message: msg}
	}
	if r.AIModel == ModelClaude && (r.AWSAccessKeyID == "" || r.AWSSecretAccessKey == "" || r.AWSRegion == "") {
		return &ValidationError{
			Field:   "awsAccessKeyId",
			Message: "AWS credentials (Access Key ID, Secret Access Key, and Region) are required for Claude",
		}
	}

	if !slices.Contains(QuestionCounts, r.QuestionCount) {
		counts := make([]string, len(QuestionCounts))
		for i, c := range QuestionCounts {
			counts[i] = strconv.Itoa(c)
		}
		return &ValidationError{
			Field:   "questionCount",
			Message: "Question count must be " + joinOr(counts),
		}
	}

	if !slices.Contains(Models, r.AIModel) {
		return &ValidationError{
			Field:   "aiModel",
			Message: "AI model must be " + quoteList(Models),
		}
	}

	if !slices.Contains(Difficulties, r.Difficulty) {
		return &ValidationError{
			Field:   "difficulty",
			Message: "Difficulty must be " + quoteList(Difficulties),
		}
	}

	return nil
}

// ModelIDs holds the vendor model used for each client-facing model.
type ModelIDs struct {
	OpenAI     string `yaml:"openai" env:"MCQGEN_MODEL_OPENAI" default:"gpt-4o"`
	Gemini     string `yaml:"gemini" env:"MCQGEN_MODEL_GEMINI" default:"gemini-2.5-flash"`
	Claude     string `yaml:"claude" env:"MCQGEN_MODEL_CLAUDE" default:"apac.anthropic.claude-sonnet-4-20250514-v1:0"`
	Anthropic  string `yaml:"anthropic" env:"MCQGEN_MODEL_ANTHROPIC" default:"claude-sonnet"`
	OpenRouter string `yaml:"openrouter" env:"MCQGEN_MODEL_OPENROUTER" default:"google/gemini-2.0-flash-exp"`
}

// ProviderConfig builds the llm configuration for the request's model and
// per-request credentials. Retry settings are left zero for the caller.
func (r *GenerateRequest) ProviderConfig(models ModelIDs) (llm.Config, error) {
	cfg := llm.Config{}
	switch r.AIModel {
	case ModelOpenAI:
		cfg.Provider = llm.ProviderOpenAI
		cfg.OpenAI = llm.OpenAIConfig{APIKey: r.APIKey, Model: models.OpenAI}
	case ModelGemini:
		cfg.Provider = llm.ProviderGemini
		cfg.Gemini = llm.GeminiConfig{APIKey: r.APIKey, Model: models.Gemini}
	case ModelClaude:
		cfg.Provider = llm.ProviderBedrock
		cfg.Bedrock = llm.BedrockConfig{
			AccessKeyID:     r.AWSAccessKeyID,
			SecretAccessKey: r.AWSSecretAccessKey,
			Region:          r.AWSRegion,
			Model:           models.Claude,
		}
	case ModelAnthropic:
		cfg.Provider = llm.ProviderAnthropic
		cfg.Anthropic = llm.AnthropicConfig{APIKey: r.APIKey, Model: models.Anthropic}
	case ModelOpenRouter:
		cfg.Provider = llm.ProviderOpenRouter
		cfg.OpenRouter = llm.OpenRouterConfig{APIKey: r.APIKey, Model: models.OpenRouter}
	default:
		return cfg, fmt.Errorf("unsupported model %q", r.AIModel)
	}
	return cfg, nil
}
