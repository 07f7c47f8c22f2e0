package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/quiz"
	"github.com/abhisek/mcqgen/internal/sse"
	"github.com/abhisek/mcqgen/internal/store"
)

const (
	headerSessionID = "X-Session-ID"

	msgInvalidBody    = "Invalid request body"
	msgInternal       = "Internal server error"
	msgBatchFailed    = "Failed to generate MCQs"
	saveSessionBudget = 5 * time.Second
)

// handleGenerateStream handles POST /api/generate-mcq-stream.
// Validation failures are plain-text 400s; once the request is accepted the
// response is an event stream ending in exactly one complete or error event.
func (s *Server) handleGenerateStream(c *gin.Context) {
	var req quiz.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, msgInvalidBody)
		return
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	ctx, log := s.sessionContext(c, id, llm.PurposeStream)

	provider, err := s.provider(ctx, req, log)
	if err != nil {
		log.Error("Failed to create provider", logger.Error(err))
		c.String(http.StatusInternalServerError, msgInternal)
		return
	}

	c.Header(headerSessionID, id)
	sse.SetHeaders(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	session := &quiz.Session{Config: s.cfg.Generation.SessionConfig, Logger: log}
	if s.metrics != nil {
		session.Observer = s.metrics
		s.metrics.SessionStarted()
	}

	started := time.Now()
	src := quiz.StreamSource(provider, quiz.StreamRequest(req, s.cfg.Generation.GenerationConfig))
	res := session.Run(ctx, src, sse.NewWriter(c.Writer))

	s.saveSession(ctx, log, quiz.StreamRecord(id, req, started, res))
}

// handleGenerateBatch handles POST /api/generate-mcq.
func (s *Server) handleGenerateBatch(c *gin.Context) {
	var req quiz.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	ctx, log := s.sessionContext(c, id, llm.PurposeBatch)
	c.Header(headerSessionID, id)

	provider, err := s.provider(ctx, req, log)
	if err != nil {
		log.Error("Failed to create provider", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgBatchFailed})
		return
	}

	started := time.Now()
	gen := quiz.NewBatchGenerator(provider, s.cfg.Generation.GenerationConfig, log)
	result, err := gen.Generate(ctx, req)
	s.saveSession(ctx, log, quiz.BatchRecord(id, req, started, result, err))

	if err != nil {
		log.Error("Batch generation failed", logger.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgBatchFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": result.Questions})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "version": s.version}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.DB().PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["store"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["store"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}

// sessionContext derives the per-session context and logger from the
// request.
func (s *Server) sessionContext(c *gin.Context, id, purpose string) (context.Context, logger.Logger) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx).With(logger.String("session_id", id))
	ctx = logger.WithContext(ctx, log)
	ctx = llm.WithPurpose(ctx, purpose)
	ctx = llm.WithSessionID(ctx, id)
	return ctx, log
}

func (s *Server) provider(ctx context.Context, req quiz.GenerateRequest, log logger.Logger) (llm.Provider, error) {
	cfg, err := req.ProviderConfig(s.cfg.Models)
	if err != nil {
		return nil, err
	}
	cfg.Retry = s.cfg.Retry

	deps := llm.Deps{Logger: log}
	if s.store != nil {
		deps.EventRepo = s.store.EventRepo()
	}
	if s.metrics != nil {
		deps.Observer = s.metrics
	}
	return s.newProvider(ctx, cfg, deps)
}

// saveSession persists rec. The write outlives a canceled request so
// aborted sessions are still recorded.
func (s *Server) saveSession(ctx context.Context, log logger.Logger, rec *store.SessionRecord) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveSessionBudget)
	defer cancel()

	if err := s.store.SessionRepo().SaveSession(ctx, rec); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Timed out saving session", logger.String("session_id", rec.ID))
			return
		}
		log.Warn("Failed to save session", logger.Error(err))
	}
}
