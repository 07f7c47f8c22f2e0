package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/mcqgen/internal/store"
)

type recordedCall struct {
	provider, purpose string
	streamed          bool
	usage             Usage
	err               error
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeObserver) ObserveLLMCall(provider, purpose string, streamed bool, _ time.Duration, usage Usage, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{provider, purpose, streamed, usage, err})
}

func openEventStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogging_GenerateRecordsEvent(t *testing.T) {
	s := openEventStore(t)
	obs := &fakeObserver{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"questions":[]}`),
		Usage:   Usage{InputTokens: 11, OutputTokens: 22},
	})
	p := WithLogging(mock, "mock", Deps{EventRepo: s.EventRepo(), Observer: obs})

	ctx := WithSessionID(WithPurpose(context.Background(), PurposeBatch), "sess-9")
	if _, err := p.Generate(ctx, Request{System: "sys", Messages: []Message{{Role: RoleUser, Content: "topic"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := s.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Purpose != PurposeBatch || e.SessionID != "sess-9" || e.Streamed || !e.Success {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.InputTokens != 11 || e.OutputTokens != 22 {
		t.Fatalf("unexpected usage %d/%d", e.InputTokens, e.OutputTokens)
	}
	if e.ResponseBody != `{"questions":[]}` {
		t.Fatalf("unexpected response body %q", e.ResponseBody)
	}
	if len(obs.calls) != 1 || obs.calls[0].provider != "mock" {
		t.Fatalf("unexpected observer calls %+v", obs.calls)
	}
}

func TestLogging_StreamRecordsAccumulatedText(t *testing.T) {
	s := openEventStore(t)
	obs := &fakeObserver{}
	mock := NewMockProvider(MockResponse{
		Chunks: []string{"line one\n", "line two\n"},
		Usage:  Usage{InputTokens: 5, OutputTokens: 9},
	})
	p := WithLogging(mock, "mock", Deps{EventRepo: s.EventRepo(), Observer: obs})

	ctx := WithPurpose(context.Background(), PurposeStream)
	for _, err := range p.Stream(ctx, Request{}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	events, err := s.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if !e.Streamed || e.ResponseBody != "line one\nline two\n" || e.OutputTokens != 9 {
		t.Fatalf("unexpected event %+v", e)
	}
	if len(obs.calls) != 1 || !obs.calls[0].streamed || obs.calls[0].usage.InputTokens != 5 {
		t.Fatalf("unexpected observer calls %+v", obs.calls)
	}
}

func TestLogging_StreamFailureRecorded(t *testing.T) {
	s := openEventStore(t)
	mock := NewMockProvider(MockResponse{Chunks: []string{"x"}, StreamErr: errors.New("reset by peer")})
	p := WithLogging(mock, "mock", Deps{EventRepo: s.EventRepo()})

	var gotErr error
	for _, err := range p.Stream(context.Background(), Request{}) {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil {
		t.Fatal("expected error")
	}

	events, err := s.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].Success || events[0].ErrorMessage != "reset by peer" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestLogging_StreamAbandonedByCallerStillRecorded(t *testing.T) {
	obs := &fakeObserver{}
	mock := NewMockProvider(MockResponse{Chunks: []string{"a", "b", "c"}})
	p := WithLogging(mock, "mock", Deps{Observer: obs})

	for range p.Stream(context.Background(), Request{}) {
		break
	}
	if len(obs.calls) != 1 || obs.calls[0].err != nil {
		t.Fatalf("unexpected observer calls %+v", obs.calls)
	}
}
