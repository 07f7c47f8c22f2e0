package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderBedrock    = "bedrock"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "anthropic", "bedrock", "openai", "gemini", "openrouter", "mock"
	Provider string

	Anthropic  AnthropicConfig
	Bedrock    BedrockConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-sonnet"
}

// BedrockConfig holds configuration for Claude served by AWS Bedrock.
type BedrockConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string // Optional.
	Region          string
	Model           string // Default: "claude-sonnet"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o"
	BaseURL string // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-exp"
	BaseURL string // Default: "https://openrouter.ai/api/v1"

	// AppName and SiteURL are sent as X-Title and HTTP-Referer so calls are
	// attributed on openrouter.ai. AppName defaults to "mcqgen".
	AppName string
	SiteURL string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"MCQGEN_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialWait time.Duration `yaml:"initial_wait" env:"MCQGEN_RETRY_INITIAL_WAIT" default:"1s"`
	MaxWait     time.Duration `yaml:"max_wait" env:"MCQGEN_RETRY_MAX_WAIT" default:"10s"`
	Multiplier  float64       `yaml:"multiplier" env:"MCQGEN_RETRY_MULTIPLIER" default:"2"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderOpenAI,
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet",
		},
		Bedrock: BedrockConfig{
			Model: "claude-sonnet",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.0-flash-exp",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("MCQGEN_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}

	setFromEnv(&cfg.Anthropic.APIKey, "MCQGEN_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setFromEnv(&cfg.Anthropic.Model, "MCQGEN_ANTHROPIC_MODEL")

	setFromEnv(&cfg.Bedrock.AccessKeyID, "MCQGEN_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	setFromEnv(&cfg.Bedrock.SecretAccessKey, "MCQGEN_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	setFromEnv(&cfg.Bedrock.SessionToken, "MCQGEN_AWS_SESSION_TOKEN", "AWS_SESSION_TOKEN")
	setFromEnv(&cfg.Bedrock.Region, "MCQGEN_AWS_REGION", "AWS_REGION")
	setFromEnv(&cfg.Bedrock.Model, "MCQGEN_BEDROCK_MODEL")

	setFromEnv(&cfg.OpenAI.APIKey, "MCQGEN_OPENAI_API_KEY", "OPENAI_API_KEY")
	setFromEnv(&cfg.OpenAI.Model, "MCQGEN_OPENAI_MODEL")
	setFromEnv(&cfg.OpenAI.BaseURL, "MCQGEN_OPENAI_BASE_URL")

	setFromEnv(&cfg.Gemini.APIKey, "MCQGEN_GEMINI_API_KEY", "GEMINI_API_KEY")
	setFromEnv(&cfg.Gemini.Model, "MCQGEN_GEMINI_MODEL")

	setFromEnv(&cfg.OpenRouter.APIKey, "MCQGEN_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	setFromEnv(&cfg.OpenRouter.Model, "MCQGEN_OPENROUTER_MODEL")

	return cfg
}

// setFromEnv assigns the first non-empty variable among keys to dst.
func setFromEnv(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

// Validate checks that the selected provider has its required credentials.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("MCQGEN_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderBedrock:
		if c.Bedrock.AccessKeyID == "" || c.Bedrock.SecretAccessKey == "" || c.Bedrock.Region == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_REGION are required for the bedrock provider")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("MCQGEN_OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("MCQGEN_GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("MCQGEN_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case ProviderMock:
		// No credentials needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
