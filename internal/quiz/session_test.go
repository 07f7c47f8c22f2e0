package quiz

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
)

type event struct {
	kind     string // "question", "complete", "error"
	question string
	index    int
	total    int
	message  string
}

type recordingEmitter struct {
	events []event
	// failOn makes the named event kind return an error.
	failOn string
}

var errBrokenPipe = errors.New("write: broken pipe")

func (r *recordingEmitter) Question(q Question, index int) error {
	if r.failOn == "question" {
		return errBrokenPipe
	}
	r.events = append(r.events, event{kind: "question", question: q.Question, index: index})
	return nil
}

func (r *recordingEmitter) Complete(total int) error {
	if r.failOn == "complete" {
		return errBrokenPipe
	}
	r.events = append(r.events, event{kind: "complete", total: total})
	return nil
}

func (r *recordingEmitter) Error(message string) error {
	r.events = append(r.events, event{kind: "error", message: message})
	return nil
}

func (r *recordingEmitter) terminals() []event {
	var out []event
	for _, e := range r.events {
		if e.kind != "question" {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingEmitter) questions() int {
	return len(r.events) - len(r.terminals())
}

func fromSlice(fragments ...string) Source {
	return func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, f := range fragments {
				if !yield(f, nil) {
					return
				}
			}
		}
	}
}

// thenFail yields fragments and then err.
func thenFail(err error, fragments ...string) Source {
	return func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, f := range fragments {
				if !yield(f, nil) {
					return
				}
			}
			yield("", err)
		}
	}
}

// thenBlock yields fragments and then waits for cancellation.
func thenBlock(fragments ...string) Source {
	return func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, f := range fragments {
				if !yield(f, nil) {
					return
				}
			}
			<-ctx.Done()
			yield("", ctx.Err())
		}
	}
}

func newSession(cfg SessionConfig) *Session {
	return &Session{Config: cfg, Logger: logger.NewNop()}
}

func TestSession_ScenarioSplitQuestion(t *testing.T) {
	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(context.Background(), fromSlice(
		lineQ1+"\n"+`{"quest`,
		`ion":"Q2","options":["c","d"],"correctAnswer":1,"explanation":"e2"}`+"\n",
	), em)

	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "question", question: "Q2", index: 1},
		{kind: "complete", total: 2},
	}, em.events)
	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 2, res.Count())
	assert.Equal(t, 2, res.Fragments)
	assert.NoError(t, res.Err)
}

func TestSession_ScenarioProseThenUnterminatedLine(t *testing.T) {
	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(context.Background(), fromSlice(
		"not json\n"+`{"question":"Q1","options":[],"correctAnswer":0,"explanation":""}`,
	), em)

	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "complete", total: 1},
	}, em.events)
	assert.Equal(t, 1, res.Rejected)
}

func TestSession_EmptyStreamCompletesWithZero(t *testing.T) {
	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(context.Background(), fromSlice(), em)
	assert.Equal(t, []event{{kind: "complete", total: 0}}, em.events)
	assert.Equal(t, OutcomeComplete, res.Outcome)
}

func TestSession_TransportErrorKeepsDeliveredQuestions(t *testing.T) {
	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(context.Background(),
		thenFail(errors.New("connection reset by peer"), lineQ1+"\n", `{"question":"Q2"`), em)

	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "error", message: MsgStreamFailed},
	}, em.events)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.EqualError(t, res.Err, "connection reset by peer")
	assert.Equal(t, 1, res.Count())
}

func TestSession_PanicBecomesGenericError(t *testing.T) {
	src := func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			yield(lineQ1+"\n", nil)
			panic("boom")
		}
	}

	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(context.Background(), src, em)

	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "error", message: MsgStreamFailed},
	}, em.events)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrInternal)
}

func TestSession_IdleTimeout(t *testing.T) {
	em := &recordingEmitter{}
	res := newSession(SessionConfig{IdleTimeout: 20 * time.Millisecond}).
		Run(context.Background(), thenBlock(lineQ1+"\n"), em)

	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "error", message: MsgTimedOut},
	}, em.events)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrIdleTimeout)
}

func TestSession_IdleTimerResetByFragments(t *testing.T) {
	src := func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			// Total duration exceeds the idle timeout; each gap does not.
			for _, f := range []string{`{"question":"Q1",`, `"options":[],`, `"correctAnswer":0}`, "\n"} {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(15 * time.Millisecond):
				}
				if !yield(f, nil) {
					return
				}
			}
		}
	}

	em := &recordingEmitter{}
	res := newSession(SessionConfig{IdleTimeout: 200 * time.Millisecond}).Run(context.Background(), src, em)
	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 1, res.Count())
}

func TestSession_OverallTimeout(t *testing.T) {
	src := func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(2 * time.Millisecond):
				}
				if !yield("still thinking ", nil) {
					return
				}
			}
		}
	}

	em := &recordingEmitter{}
	res := newSession(SessionConfig{Timeout: 30 * time.Millisecond, IdleTimeout: time.Second}).
		Run(context.Background(), src, em)

	assert.Equal(t, []event{{kind: "error", message: MsgTimedOut}}, em.events)
	assert.ErrorIs(t, res.Err, ErrSessionTimeout)
}

func TestSession_ParentCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			if !yield(lineQ1+"\n", nil) {
				return
			}
			cancel()
			<-ctx.Done()
			yield("", ctx.Err())
		}
	}

	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(ctx, src, em)

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "error", message: MsgCanceled},
	}, em.events)
}

func TestSession_SourceEndingQuietlyAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(ctx, fromSlice(lineQ1+"\n"), em)

	// The question arrived before the loop noticed; no completion is sent.
	assert.Equal(t, OutcomeAborted, res.Outcome)
	require.Len(t, em.terminals(), 1)
	assert.Equal(t, "error", em.terminals()[0].kind)
}

func TestSession_ConsumerGoneStopsSource(t *testing.T) {
	stopped := false
	src := func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for range 10 {
				if !yield(lineQ1+"\n", nil) {
					stopped = true
					return
				}
			}
		}
	}

	em := &recordingEmitter{failOn: "question"}
	res := newSession(SessionConfig{}).Run(context.Background(), src, em)

	assert.True(t, stopped, "source must be released")
	assert.Empty(t, em.events, "no terminal event after a failed write")
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrConsumerGone)
	assert.ErrorIs(t, res.Err, errBrokenPipe)
}

func TestSession_CompleteWriteFailure(t *testing.T) {
	em := &recordingEmitter{failOn: "complete"}
	res := newSession(SessionConfig{}).Run(context.Background(), fromSlice(lineQ1+"\n"), em)

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrConsumerGone)
	assert.Len(t, em.terminals(), 0)
}

func TestSession_ExactlyOneTerminalEvent(t *testing.T) {
	sources := map[string]Source{
		"clean":     fromSlice(lineQ1+"\n", lineQ2),
		"prose":     fromSlice("hello\n", "world"),
		"transport": thenFail(errors.New("eof"), lineQ1+"\n"),
		"empty":     fromSlice(),
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			em := &recordingEmitter{}
			res := newSession(SessionConfig{}).Run(context.Background(), src, em)

			terms := em.terminals()
			require.Len(t, terms, 1)
			assert.Equal(t, em.events[len(em.events)-1], terms[0], "terminal event is last")
			if terms[0].kind == "complete" {
				assert.Equal(t, em.questions(), terms[0].total)
			}
			assert.Equal(t, em.questions(), res.Count())
		})
	}
}

type countingObserver struct {
	mu        sync.Mutex
	fragments int
	bytes     int
	emitted   int
	rejected  map[RejectReason]int
	outcome   Outcome
	total     int
}

func (o *countingObserver) FragmentReceived(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fragments++
	o.bytes += n
}

func (o *countingObserver) QuestionEmitted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitted++
}

func (o *countingObserver) LineRejected(r RejectReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejected == nil {
		o.rejected = map[RejectReason]int{}
	}
	o.rejected[r]++
}

func (o *countingObserver) SessionFinished(outcome Outcome, questions int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcome = outcome
	o.total = questions
}

func TestSession_Observer(t *testing.T) {
	obs := &countingObserver{}
	s := newSession(SessionConfig{})
	s.Observer = obs

	s.Run(context.Background(), fromSlice("intro\n", lineQ1+"\n", `{"question":"x","options":[]}`+"\n", lineQ2), &recordingEmitter{})

	assert.Equal(t, 4, obs.fragments)
	assert.Equal(t, 2, obs.emitted)
	assert.Equal(t, map[RejectReason]int{ReasonNotDelimited: 1, ReasonMissingCorrectAnswer: 1}, obs.rejected)
	assert.Equal(t, OutcomeComplete, obs.outcome)
	assert.Equal(t, 2, obs.total)
}

func TestSession_StreamSourceFromProvider(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Chunks: []string{lineQ1[:20], lineQ1[20:] + "\n" + lineQ2[:5], lineQ2[5:]},
		Usage:  llm.Usage{InputTokens: 10, OutputTokens: 50},
	})

	em := &recordingEmitter{}
	res := newSession(SessionConfig{}).Run(context.Background(), StreamSource(mock, llm.Request{}), em)

	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, []event{
		{kind: "question", question: "Q1", index: 0},
		{kind: "question", question: "Q2", index: 1},
		{kind: "complete", total: 2},
	}, em.events)
	assert.Equal(t, 3, res.Fragments, "usage delta is not a fragment")
}

func TestFragments_PropagatesErrorOnce(t *testing.T) {
	boom := errors.New("boom")
	seq := func(yield func(llm.Delta, error) bool) {
		if !yield(llm.Delta{Text: "a"}, nil) {
			return
		}
		if !yield(llm.Delta{StopReason: "end"}, nil) {
			return
		}
		yield(llm.Delta{}, boom)
	}

	var texts []string
	var errs []error
	for text, err := range Fragments(seq) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		texts = append(texts, text)
	}
	assert.Equal(t, []string{"a"}, texts)
	assert.Equal(t, []error{boom}, errs)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// "é" is two bytes; cutting at 2 would split it.
	got := truncate("aé🙂z", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate("日本語テキスト", 7)
	assert.Equal(t, "日本...", got)
	assert.True(t, utf8.ValidString(got))
}
