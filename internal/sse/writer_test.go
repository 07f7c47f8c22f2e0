package sse

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/quiz"
)

func TestWriter_Framing(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	q := quiz.ValidateShape([]byte(`{"question":"Q1","options":["a","b"],"correctAnswer":0,"explanation":"e"}`)).Question
	require.NoError(t, w.Question(q, 0))
	require.NoError(t, w.Complete(1))

	assert.Equal(t,
		`data: {"question":{"question":"Q1","options":["a","b"],"correctAnswer":0,"explanation":"e"},"index":0}`+"\n\n"+
			`data: {"complete":true,"totalQuestions":1}`+"\n\n",
		buf.String())
	assert.Equal(t, 2, w.Events())
}

func TestWriter_ErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Error(quiz.MsgStreamFailed))
	assert.Equal(t, `data: {"error":"Stream processing failed"}`+"\n\n", buf.String())
}

func TestWriter_FlushesEachEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec)
	w := NewWriter(rec)

	require.NoError(t, w.Complete(0))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriter_WriteErrorSurfaces(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.Complete(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Zero(t, w.Events())
}

func TestWriter_SessionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	src := func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			if !yield(`{"question":"Q1","options":["a","b"],"correctAnswer":0,"explanation":"e"}`+"\n"+`{"quest`, nil) {
				return
			}
			yield(`ion":"Q2","options":["c","d"],"correctAnswer":1,"explanation":"e2"}`+"\n", nil)
		}
	}
	s := &quiz.Session{Logger: logger.NewNop()}
	res := s.Run(context.Background(), src, NewWriter(&buf))
	require.Equal(t, quiz.OutcomeComplete, res.Outcome)

	var got []Payload
	require.NoError(t, Read(strings.NewReader(buf.String()), func(p Payload) error {
		got = append(got, p)
		return nil
	}))

	require.Len(t, got, 3)
	assert.JSONEq(t, `{"question":"Q2","options":["c","d"],"correctAnswer":1,"explanation":"e2"}`, string(got[1].Question))
	assert.Equal(t, 1, got[1].Index)
	assert.False(t, got[1].Terminal())
	assert.True(t, got[2].Complete)
	assert.Equal(t, 2, got[2].TotalQuestions)
	assert.True(t, got[2].Terminal())
}

func TestRead_SkipsCommentsAndHandlesMissingTrailingBlank(t *testing.T) {
	stream := ": heartbeat\n\nevent: message\ndata: {\"error\":\"x\"}"
	var got []Payload
	require.NoError(t, Read(strings.NewReader(stream), func(p Payload) error {
		got = append(got, p)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Error)
}
