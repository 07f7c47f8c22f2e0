// Package sse frames generation events as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/abhisek/mcqgen/internal/quiz"
)

// SSE header constants.
const (
	headerContentType     = "Content-Type"
	headerCacheControl    = "Cache-Control"
	headerConnection      = "Connection"
	headerXAccelBuffering = "X-Accel-Buffering"

	ContentType = "text/event-stream"
)

// QuestionEvent carries one extracted question.
type QuestionEvent struct {
	Question quiz.Question `json:"question"`
	Index    int           `json:"index"`
}

// CompleteEvent terminates a successful session.
type CompleteEvent struct {
	Complete       bool `json:"complete"`
	TotalQuestions int  `json:"totalQuestions"`
}

// ErrorEvent terminates a failed session.
type ErrorEvent struct {
	Error string `json:"error"`
}

type flusher interface {
	Flush()
}

// Writer implements quiz.Emitter by writing one `data: <json>` frame per
// event and flushing after each.
type Writer struct {
	w      io.Writer
	events int
}

var _ quiz.Emitter = (*Writer)(nil)

// NewWriter wraps w. If w implements Flush, it is flushed after every event.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetHeaders sets the event-stream response headers.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set(headerContentType, ContentType)
	w.Header().Set(headerCacheControl, "no-cache")
	w.Header().Set(headerConnection, "keep-alive")
	w.Header().Set(headerXAccelBuffering, "no")
}

func (s *Writer) Question(q quiz.Question, index int) error {
	return s.write(QuestionEvent{Question: q, Index: index})
}

func (s *Writer) Complete(total int) error {
	return s.write(CompleteEvent{Complete: true, TotalQuestions: total})
}

func (s *Writer) Error(message string) error {
	return s.write(ErrorEvent{Error: message})
}

// Events returns the number of events written.
func (s *Writer) Events() int {
	return s.events
}

func (s *Writer) write(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	if f, ok := s.w.(flusher); ok {
		f.Flush()
	}
	s.events++
	return nil
}
