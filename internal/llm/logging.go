package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/store"
)

// CallObserver receives one notification per completed LLM call.
type CallObserver interface {
	ObserveLLMCall(provider, purpose string, streamed bool, latency time.Duration, usage Usage, err error)
}

// LoggingProvider is a decorator that records every LLM request as an event.
type LoggingProvider struct {
	inner     Provider
	provider  string
	eventRepo store.EventRepo
	log       logger.Logger
	observer  CallObserver
}

// WithLogging wraps a Provider with event logging. Nil collaborators in deps
// are skipped.
func WithLogging(p Provider, providerName string, deps Deps) Provider {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &LoggingProvider{
		inner:     p,
		provider:  providerName,
		eventRepo: deps.EventRepo,
		log:       log,
		observer:  deps.Observer,
	}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	data := l.eventData(ctx, req, time.Since(start), err)
	var usage Usage
	if resp != nil {
		usage = resp.Usage
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = string(resp.Content)
	}

	l.record(ctx, data, usage, err)
	return resp, err
}

// Stream passes deltas through unchanged and records one event when the
// stream ends, fails, or is abandoned by the caller.
func (l *LoggingProvider) Stream(ctx context.Context, req Request) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		start := time.Now()
		var text strings.Builder
		var usage Usage
		var streamErr error

		defer func() {
			data := l.eventData(ctx, req, time.Since(start), streamErr)
			data.Streamed = true
			data.InputTokens = usage.InputTokens
			data.OutputTokens = usage.OutputTokens
			data.ResponseBody = text.String()
			l.record(ctx, data, usage, streamErr)
		}()

		for d, err := range l.inner.Stream(ctx, req) {
			if err != nil {
				streamErr = err
				yield(Delta{}, err)
				return
			}
			text.WriteString(d.Text)
			if d.Usage != nil {
				usage = *d.Usage
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) eventData(ctx context.Context, req Request, latency time.Duration, err error) store.LLMRequestEventData {
	data := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		SessionID:   SessionIDFrom(ctx),
		LatencyMs:   latency.Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	return data
}

func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData, usage Usage, err error) {
	latency := time.Duration(data.LatencyMs) * time.Millisecond

	fields := []logger.Field{
		logger.String("provider", data.Provider),
		logger.String("model", data.Model),
		logger.String("purpose", data.Purpose),
		logger.Bool("streamed", data.Streamed),
		logger.Int64("latency_ms", data.LatencyMs),
		logger.Int("input_tokens", data.InputTokens),
		logger.Int("output_tokens", data.OutputTokens),
	}
	if err != nil {
		l.log.Warn("LLM call failed", append(fields, logger.Error(err))...)
	} else {
		l.log.Debug("LLM call completed", fields...)
	}

	if l.observer != nil {
		l.observer.ObserveLLMCall(data.Provider, data.Purpose, data.Streamed, latency, usage, err)
	}

	if l.eventRepo == nil {
		return
	}
	// Recording must not fail the request; the event context may already be
	// canceled when a client disconnects, so detach from it.
	if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
		l.log.Warn("failed to record LLM request event", logger.Error(logErr))
	}
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(schemaDef)
			b.WriteString("\n")
		}
	}

	return b.String()
}
