package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
)

// ErrNoQuestions is returned when a batch response holds no usable question.
var ErrNoQuestions = errors.New("no valid questions were generated")

// GenerationConfig holds the LLM request knobs shared by both paths.
type GenerationConfig struct {
	MaxTokens   int     `yaml:"max_tokens" env:"MCQGEN_MAX_TOKENS" default:"8192"`
	Temperature float64 `yaml:"temperature" env:"MCQGEN_TEMPERATURE" default:"0.7"`
}

// StreamRequest builds the LLM request for the streaming path.
func StreamRequest(req GenerateRequest, cfg GenerationConfig) llm.Request {
	return llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: StreamPrompt(req)}},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// BatchResult is the outcome of a batch generation.
type BatchResult struct {
	Questions []Question
	// Rejected counts items dropped by shape validation.
	Rejected int
	// Truncated counts valid items dropped to honor the requested count.
	Truncated int
}

// BatchGenerator produces a whole question set from one provider call.
type BatchGenerator struct {
	provider llm.Provider
	config   GenerationConfig
	log      logger.Logger
}

// NewBatchGenerator creates a BatchGenerator. A nil log uses the context
// logger at call time.
func NewBatchGenerator(provider llm.Provider, cfg GenerationConfig, log logger.Logger) *BatchGenerator {
	return &BatchGenerator{provider: provider, config: cfg, log: log}
}

// Generate requests req.QuestionCount questions and returns at most that
// many. Fewer are returned, with a warning logged, when the model
// under-delivers.
func (g *BatchGenerator) Generate(ctx context.Context, req GenerateRequest) (*BatchResult, error) {
	log := g.log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeBatch)

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BatchPrompt(req)}},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	doc := StripCodeFence(string(resp.Content))
	if err := llm.ValidateJSON(QuestionSetSchema, json.RawMessage(doc)); err != nil {
		return nil, fmt.Errorf("invalid response format: %w", err)
	}

	var parsed struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	out := &BatchResult{}
	for i, item := range parsed.Questions {
		res := ValidateShape(item)
		if !res.Valid() {
			out.Rejected++
			log.Debug("skipping batch item",
				logger.Int("item", i),
				logger.String("reason", string(res.Reason)),
				logger.String("detail", res.Detail),
			)
			continue
		}
		if loose := res.Question.Loose(); len(loose) > 0 {
			log.Warn("batch item has untyped fields",
				logger.Int("item", i),
				logger.Strings("fields", loose),
			)
		}
		out.Questions = append(out.Questions, res.Question)
	}

	if n := len(out.Questions); n > req.QuestionCount {
		log.Warn("model returned more questions than requested, trimming",
			logger.Int("generated", n), logger.Int("requested", req.QuestionCount))
		out.Truncated = n - req.QuestionCount
		out.Questions = out.Questions[:req.QuestionCount]
	} else if n < req.QuestionCount {
		log.Warn("model returned fewer questions than requested",
			logger.Int("generated", n), logger.Int("requested", req.QuestionCount))
	}

	if len(out.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return out, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
