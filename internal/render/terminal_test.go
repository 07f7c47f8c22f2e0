package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mcqgen/internal/quiz"
)

func sampleQuestion(t *testing.T) quiz.Question {
	t.Helper()
	res := quiz.ValidateShape([]byte(`{"question":"What is 2+2?","options":["3","4","5"],"correctAnswer":1,"explanation":"Basic sum."}`))
	require.True(t, res.Valid())
	return res.Question
}

func TestPlainQuestion(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, Options{Plain: true})

	require.NoError(t, term.Question(sampleQuestion(t), 0))
	assert.Equal(t, "1. What is 2+2?\n   A) 3\n   B) 4\n   C) 5\n\n", buf.String())
}

func TestPlainQuestionWithAnswers(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, Options{Plain: true, ShowAnswers: true})

	require.NoError(t, term.Question(sampleQuestion(t), 2))
	assert.Contains(t, buf.String(), "3. What is 2+2?")
	assert.Contains(t, buf.String(), "   Answer: B. Basic sum.\n")
}

func TestPlainTerminalEvents(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, Options{Plain: true})

	require.NoError(t, term.Header(quiz.GenerateRequest{Prompt: "math", QuestionCount: 5, Difficulty: quiz.DifficultyEasy, AIModel: quiz.ModelGemini}))
	require.NoError(t, term.Complete(1))
	require.NoError(t, term.Error(quiz.MsgTimedOut))

	assert.Equal(t,
		"5 easy questions on \"math\" via gemini\n"+
			"✓ 1 question generated\n"+
			"✗ Generation timed out\n",
		buf.String())
}

func TestMarkdownQuestion(t *testing.T) {
	term := &Terminal{opts: Options{ShowAnswers: true}}
	md := term.markdownQuestion(sampleQuestion(t), 0)

	assert.Equal(t,
		"### 1. What is 2+2?\n\n- A. 3\n- **B. 4** ✓\n- C. 5\n\n> Basic sum.\n",
		md)
}

func TestStyledTerminalRendersQuestionText(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, Options{Width: 60})

	require.NoError(t, term.Question(sampleQuestion(t), 0))
	require.NoError(t, term.Complete(1))
	assert.Contains(t, buf.String(), "What is 2+2?")
	assert.Contains(t, buf.String(), "1 question generated")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteErrorsPropagate(t *testing.T) {
	term := NewTerminal(brokenWriter{}, Options{Plain: true})
	assert.Error(t, term.Question(sampleQuestion(t), 0))
	assert.Error(t, term.Complete(0))
}

func TestOptionLabel(t *testing.T) {
	assert.Equal(t, "A", optionLabel(0))
	assert.Equal(t, "Z", optionLabel(25))
	assert.Equal(t, "#26", optionLabel(26))
	assert.Equal(t, "?", optionLabel(-1))
}
