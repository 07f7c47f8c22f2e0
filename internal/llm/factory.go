package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/store"
)

// Deps are the collaborators wired around every provider built by NewProvider.
// All fields are optional.
type Deps struct {
	EventRepo store.EventRepo
	Logger    logger.Logger
	Observer  CallObserver
}

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, deps Deps) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderBedrock:
		base, err = NewBedrockProvider(cfg.Bedrock)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → retry → logging → base
	logged := WithLogging(base, cfg.Provider, deps)
	return WithRetry(logged, cfg.Retry), nil
}
