package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/mcqgen/internal/config"
	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/quiz"
	"github.com/abhisek/mcqgen/internal/render"
	"github.com/abhisek/mcqgen/internal/sse"
	"github.com/abhisek/mcqgen/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Generate questions in the terminal",
	Long: `Generate multiple-choice questions about a topic and print each one as
soon as the model finishes writing it.

Credentials come from the environment: OPENAI_API_KEY, GEMINI_API_KEY,
ANTHROPIC_API_KEY, OPENROUTER_API_KEY (or their MCQGEN_ prefixed forms), and
AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_REGION for claude.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.IntP("count", "n", quiz.DefaultQuestionCount, "Number of questions: 2, 5, 10, 15 or 20")
	f.StringP("model", "m", string(quiz.DefaultModel), "Model: openai, gemini, claude, anthropic or openrouter")
	f.StringP("difficulty", "d", string(quiz.DefaultDifficulty), "Difficulty: easy, medium or hard")
	f.Bool("batch", false, "Generate the whole set in one call instead of streaming")
	f.Bool("sse", false, "Write raw server-sent event frames to stdout")
	f.Bool("json", false, "With --batch, print the question set as JSON")
	f.BoolP("answers", "a", false, "Show correct answers and explanations")
	f.Bool("plain", false, "Disable markdown rendering and colors")
	f.Bool("no-save", false, "Do not record the session in the database")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	count, _ := cmd.Flags().GetInt("count")
	model, _ := cmd.Flags().GetString("model")
	difficulty, _ := cmd.Flags().GetString("difficulty")
	batch, _ := cmd.Flags().GetBool("batch")
	rawSSE, _ := cmd.Flags().GetBool("sse")
	asJSON, _ := cmd.Flags().GetBool("json")
	noSave, _ := cmd.Flags().GetBool("no-save")
	if batch && rawSSE {
		return fmt.Errorf("use --batch or --sse, not both")
	}

	req := quiz.GenerateRequest{
		Prompt:        strings.Join(args, " "),
		QuestionCount: count,
		AIModel:       quiz.Model(strings.ToLower(model)),
		Difficulty:    quiz.Difficulty(strings.ToLower(difficulty)),
	}
	env := llm.ConfigFromEnv()
	applyEnvCredentials(&req, env)
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return err
	}

	var st *store.Store
	if !noSave && !cfg.DB.Disabled {
		dbPath, err := resolveDBPath(cmd, cfg)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		if st, err = store.Open(dbPath); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	id := uuid.NewString()
	purpose := llm.PurposeStream
	if batch {
		purpose = llm.PurposeBatch
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log = log.With(logger.String("session_id", id))
	ctx = logger.WithContext(ctx, log)
	ctx = llm.WithPurpose(ctx, purpose)
	ctx = llm.WithSessionID(ctx, id)

	provider, err := newRequestProvider(ctx, cfg, req, env, st, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	plain, _ := cmd.Flags().GetBool("plain")
	answers, _ := cmd.Flags().GetBool("answers")
	term := render.NewTerminal(out, render.Options{Plain: plain, ShowAnswers: answers})
	started := time.Now()

	if batch {
		gen := quiz.NewBatchGenerator(provider, cfg.Generation.GenerationConfig, log)
		result, genErr := gen.Generate(ctx, req)
		saveRecord(st, log, quiz.BatchRecord(id, req, started, result, genErr))
		if genErr != nil {
			return genErr
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"questions": result.Questions})
		}
		if err := term.Header(req); err != nil {
			return err
		}
		for i, q := range result.Questions {
			if err := term.Question(q, i); err != nil {
				return err
			}
		}
		return term.Complete(len(result.Questions))
	}

	var emitter quiz.Emitter = term
	if rawSSE {
		emitter = sse.NewWriter(out)
	} else if err := term.Header(req); err != nil {
		return err
	}

	session := &quiz.Session{Config: cfg.Generation.SessionConfig, Logger: log}
	src := quiz.StreamSource(provider, quiz.StreamRequest(req, cfg.Generation.GenerationConfig))
	res := session.Run(ctx, src, emitter)
	saveRecord(st, log, quiz.StreamRecord(id, req, started, res))

	if res.Outcome != quiz.OutcomeComplete {
		return fmt.Errorf("generation %s: %w", res.Outcome, res.Err)
	}
	return nil
}

// applyEnvCredentials copies the credentials for req's model from env.
func applyEnvCredentials(req *quiz.GenerateRequest, env llm.Config) {
	model := req.AIModel
	if model == "" {
		model = quiz.DefaultModel
	}
	switch model {
	case quiz.ModelOpenAI:
		req.APIKey = env.OpenAI.APIKey
	case quiz.ModelGemini:
		req.APIKey = env.Gemini.APIKey
	case quiz.ModelAnthropic:
		req.APIKey = env.Anthropic.APIKey
	case quiz.ModelOpenRouter:
		req.APIKey = env.OpenRouter.APIKey
	case quiz.ModelClaude:
		req.AWSAccessKeyID = env.Bedrock.AccessKeyID
		req.AWSSecretAccessKey = env.Bedrock.SecretAccessKey
		req.AWSRegion = env.Bedrock.Region
	}
}

func newRequestProvider(ctx context.Context, cfg *config.Config, req quiz.GenerateRequest, env llm.Config, st *store.Store, log logger.Logger) (llm.Provider, error) {
	pc, err := req.ProviderConfig(cfg.Models)
	if err != nil {
		return nil, err
	}
	pc.Retry = cfg.Retry
	pc.Bedrock.SessionToken = env.Bedrock.SessionToken
	pc.OpenAI.BaseURL = env.OpenAI.BaseURL

	deps := llm.Deps{Logger: log}
	if st != nil {
		deps.EventRepo = st.EventRepo()
	}
	provider, err := llm.NewProvider(ctx, pc, deps)
	if err != nil {
		return nil, fmt.Errorf("LLM provider: %w", err)
	}
	return provider, nil
}

func saveRecord(st *store.Store, log logger.Logger, rec *store.SessionRecord) {
	if st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.SessionRepo().SaveSession(ctx, rec); err != nil {
		log.Warn("Failed to save session", logger.Error(err))
	}
}
