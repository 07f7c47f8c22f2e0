package quiz

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mcqgen/internal/store"
)

func TestStreamRecord(t *testing.T) {
	req := GenerateRequest{Prompt: "Go", QuestionCount: 5, AIModel: ModelGemini, Difficulty: DifficultyHard}
	q := ValidateShape([]byte(`{"question":"Q","options":["a","b"],"correctAnswer":1,"hint":"x"}`)).Question
	res := Result{
		Outcome:   OutcomeError,
		Questions: []Emission{{Question: q, Index: 0, Line: 2}},
		Rejected:  3,
		Err:       ErrIdleTimeout,
		Duration:  1500 * time.Millisecond,
	}

	rec := StreamRecord("s-1", req, time.Now(), res)

	assert.Equal(t, "s-1", rec.ID)
	assert.Equal(t, store.ModeStream, rec.Mode)
	assert.Equal(t, "gemini", rec.AIModel)
	assert.Equal(t, "hard", rec.Difficulty)
	assert.Equal(t, 5, rec.RequestedCount)
	assert.Equal(t, 1, rec.EmittedCount)
	assert.Equal(t, 3, rec.RejectedLines)
	assert.Equal(t, store.OutcomeError, rec.Outcome)
	assert.Equal(t, ErrIdleTimeout.Error(), rec.ErrorMessage)
	assert.EqualValues(t, 1500, rec.DurationMs)
	require.Len(t, rec.Questions, 1)
	assert.JSONEq(t, `{"question":"Q","options":["a","b"],"correctAnswer":1,"hint":"x"}`, string(rec.Questions[0].Body))
}

func TestBatchRecord(t *testing.T) {
	req := GenerateRequest{Prompt: "Go", QuestionCount: 2, AIModel: ModelOpenAI, Difficulty: DifficultyEasy}

	t.Run("success", func(t *testing.T) {
		result := &BatchResult{
			Questions: []Question{{Question: "built", Options: []string{"a", "b"}, CorrectAnswer: 0}},
			Rejected:  1,
		}
		rec := BatchRecord("b-1", req, time.Now(), result, nil)
		assert.Equal(t, store.ModeBatch, rec.Mode)
		assert.Equal(t, store.OutcomeComplete, rec.Outcome)
		assert.Equal(t, 1, rec.EmittedCount)
		require.Len(t, rec.Questions, 1)
		assert.JSONEq(t, `{"question":"built","options":["a","b"],"correctAnswer":0}`, string(rec.Questions[0].Body))
	})

	t.Run("failure", func(t *testing.T) {
		rec := BatchRecord("b-2", req, time.Now(), nil, errors.New("LLM generation failed: boom"))
		assert.Equal(t, store.OutcomeError, rec.Outcome)
		assert.Equal(t, "LLM generation failed: boom", rec.ErrorMessage)
		assert.Zero(t, rec.EmittedCount)
		assert.Empty(t, rec.Questions)
	})
}
