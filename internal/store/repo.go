package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // LLM events only; empty matches all
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	SessionID    string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	Streamed     bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage aggregates LLM calls for one purpose.
type LLMUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM calls for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}

// Session outcomes.
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
	OutcomeAborted  = "aborted"
)

// Session modes.
const (
	ModeStream = "stream"
	ModeBatch  = "batch"
)

// StoredQuestion is one question produced by a session, kept as the JSON
// document that was delivered to the client.
type StoredQuestion struct {
	Index int
	Body  json.RawMessage
}

// SessionRecord is a finished generation session.
type SessionRecord struct {
	ID             string
	Sequence       int64
	StartedAt      time.Time
	Mode           string
	Prompt         string
	AIModel        string
	Difficulty     string
	RequestedCount int
	EmittedCount   int
	RejectedLines  int
	Outcome        string
	ErrorMessage   string
	DurationMs     int64

	// Questions is populated by SaveSession input and GetSession output;
	// ListSessions leaves it empty.
	Questions []StoredQuestion
}

// SessionRepo persists generation sessions and their questions.
type SessionRepo interface {
	// SaveSession stores the session and its questions atomically.
	// Sequence is assigned by the store.
	SaveSession(ctx context.Context, rec *SessionRecord) error

	// ListSessions returns sessions newest first, without questions.
	ListSessions(ctx context.Context, opts QueryOpts) ([]SessionRecord, error)

	// GetSession returns a session with its questions, or nil if not found.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
}
