package quiz

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
)

// Session-terminating causes.
var (
	ErrIdleTimeout    = errors.New("no output from model within idle timeout")
	ErrSessionTimeout = errors.New("generation exceeded session timeout")
	ErrConsumerGone   = errors.New("consumer stopped accepting events")
	ErrInternal       = errors.New("internal error during extraction")
)

// Client-facing error messages.
const (
	MsgStreamFailed = "Stream processing failed"
	MsgTimedOut     = "Generation timed out"
	MsgCanceled     = "Generation canceled"
)

// Emitter delivers session events to the single downstream consumer.
// A non-nil error means the consumer is gone; the session stops without
// sending further events.
type Emitter interface {
	Question(q Question, index int) error
	Complete(total int) error
	Error(message string) error
}

// Source opens a fragment stream. It is called once per Run with the
// session's context; canceling that context must end the stream and
// release the underlying connection.
type Source func(ctx context.Context) iter.Seq2[string, error]

// Fragments adapts a provider delta stream to text fragments. Deltas
// without text (usage reports, stop markers) are dropped.
func Fragments(seq iter.Seq2[llm.Delta, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for d, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			if d.Text == "" {
				continue
			}
			if !yield(d.Text, nil) {
				return
			}
		}
	}
}

// StreamSource opens req on p as a Source.
func StreamSource(p llm.Provider, req llm.Request) Source {
	return func(ctx context.Context) iter.Seq2[string, error] {
		return Fragments(p.Stream(ctx, req))
	}
}

// Observer receives session progress. Implementations must be safe for
// concurrent use across sessions.
type Observer interface {
	FragmentReceived(bytes int)
	QuestionEmitted()
	LineRejected(reason RejectReason)
	SessionFinished(outcome Outcome, questions int, elapsed time.Duration)
}

// SessionConfig bounds a session.
type SessionConfig struct {
	// IdleTimeout ends the session when no fragment arrives for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"MCQGEN_IDLE_TIMEOUT" default:"30s"`
	// Timeout ends the session after this long overall.
	Timeout time.Duration `yaml:"session_timeout" env:"MCQGEN_SESSION_TIMEOUT" default:"3m"`
	// MaxLineAttempts is passed to Extractor.MaxAttempts.
	MaxLineAttempts int `yaml:"max_line_attempts" env:"MCQGEN_MAX_LINE_ATTEMPTS" default:"0"`
}

// Result summarizes a finished session.
type Result struct {
	Outcome   Outcome
	Questions []Emission
	Rejected  int
	Fragments int
	Bytes     int
	// Err is the terminating cause for OutcomeError and OutcomeAborted.
	Err error
	// Message is the error text sent to the consumer, if any.
	Message  string
	Duration time.Duration
}

// Count returns the number of questions emitted.
func (r Result) Count() int {
	return len(r.Questions)
}

// Session runs one extraction from a Source to an Emitter.
type Session struct {
	Config   SessionConfig
	Logger   logger.Logger // defaults to logger.FromContext
	Observer Observer      // optional
}

// run holds the per-call state of Session.Run.
type run struct {
	s        *Session
	log      logger.Logger
	emitter  Emitter
	res      Result
	terminal bool // a terminal event was sent or the consumer is gone
}

// Run consumes src until it ends, fails, or times out, emitting every
// extracted Question and exactly one terminal event, unless the emitter
// itself fails.
func (s *Session) Run(ctx context.Context, src Source, emitter Emitter) (res Result) {
	start := time.Now()
	r := &run{s: s, emitter: emitter, log: s.Logger}
	if r.log == nil {
		r.log = logger.FromContext(ctx)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if s.Config.Timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, s.Config.Timeout, ErrSessionTimeout)
		defer stop()
	}

	var idle *time.Timer
	if d := s.Config.IdleTimeout; d > 0 {
		idle = time.AfterFunc(d, func() { cancel(ErrIdleTimeout) })
		defer idle.Stop()
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic during extraction",
				logger.Any("panic", p),
				logger.String("stack", string(debug.Stack())),
			)
			r.fail(OutcomeError, fmt.Errorf("%w: %v", ErrInternal, p), MsgStreamFailed)
		}
		r.res.Duration = time.Since(start)
		if s.Observer != nil {
			s.Observer.SessionFinished(r.res.Outcome, r.res.Count(), r.res.Duration)
		}
		r.log.Info("generation session finished",
			logger.String("outcome", string(r.res.Outcome)),
			logger.Int("questions", r.res.Count()),
			logger.Int("rejected_lines", r.res.Rejected),
			logger.Int("fragments", r.res.Fragments),
			logger.Duration("duration", r.res.Duration),
		)
		res = r.res
	}()

	ex := NewExtractor()
	ex.MaxAttempts = s.Config.MaxLineAttempts
	ex.OnReject = r.onReject

	for text, err := range src(ctx) {
		if err != nil {
			r.sourceFailed(ctx, err)
			return
		}
		if idle != nil {
			idle.Reset(s.Config.IdleTimeout)
		}
		r.res.Fragments++
		r.res.Bytes += len(text)
		if s.Observer != nil {
			s.Observer.FragmentReceived(len(text))
		}
		if !r.emitAll(ex.Push(text)) {
			return
		}
	}

	// A source may end quietly when its context is canceled.
	if ctx.Err() != nil {
		r.sourceFailed(ctx, ctx.Err())
		return
	}

	if !r.emitAll(ex.Finish()) {
		return
	}

	r.terminal = true
	if err := emitter.Complete(r.res.Count()); err != nil {
		r.consumerGone(err)
		return
	}
	r.res.Outcome = OutcomeComplete
	return
}

func (r *run) emitAll(emissions []Emission) bool {
	for _, e := range emissions {
		if err := r.emitter.Question(e.Question, e.Index); err != nil {
			r.consumerGone(err)
			return false
		}
		r.res.Questions = append(r.res.Questions, e)
		if loose := e.Question.Loose(); len(loose) > 0 {
			r.log.Warn("question emitted with untyped fields",
				logger.Int("index", e.Index),
				logger.Strings("fields", loose),
			)
		}
		if r.s.Observer != nil {
			r.s.Observer.QuestionEmitted()
		}
	}
	return true
}

func (r *run) onReject(rej Rejection) {
	r.res.Rejected++
	if r.s.Observer != nil {
		r.s.Observer.LineRejected(rej.Reason)
	}
	r.log.Debug("skipping line",
		logger.Int("line", rej.Line),
		logger.String("reason", string(rej.Reason)),
		logger.String("detail", rej.Detail),
		logger.String("text", truncate(rej.Text, 120)),
	)
}

// sourceFailed classifies a source error by the session context's cause.
func (r *run) sourceFailed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, ErrIdleTimeout), errors.Is(cause, ErrSessionTimeout),
			errors.Is(cause, context.DeadlineExceeded):
			r.log.Warn("generation timed out", logger.Error(cause))
			r.fail(OutcomeError, cause, MsgTimedOut)
		default:
			r.log.Info("generation canceled", logger.Error(cause))
			r.fail(OutcomeAborted, cause, MsgCanceled)
		}
		return
	}

	var interrupted *llm.ErrStreamInterrupted
	if errors.As(err, &interrupted) {
		r.log.Error("model stream interrupted",
			logger.Int("deltas", interrupted.Delivered),
			logger.Int("questions", r.res.Count()),
			logger.Error(err),
		)
	} else {
		r.log.Error("generation source failed", logger.Error(err))
	}
	r.fail(OutcomeError, err, MsgStreamFailed)
}

// fail records the outcome and sends the error event if no terminal event
// has been attempted yet.
func (r *run) fail(outcome Outcome, cause error, message string) {
	r.res.Outcome = outcome
	r.res.Err = cause
	if r.terminal {
		return
	}
	r.terminal = true
	r.res.Message = message
	if err := r.emitter.Error(message); err != nil {
		r.log.Debug("error event not delivered", logger.Error(err))
	}
}

func (r *run) consumerGone(err error) {
	r.terminal = true
	r.res.Outcome = OutcomeAborted
	r.res.Err = fmt.Errorf("%w: %w", ErrConsumerGone, err)
	r.log.Warn("consumer gone", logger.Error(err))
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
