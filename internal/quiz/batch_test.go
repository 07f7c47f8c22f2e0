package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
)

func questionDoc(n int) string {
	items := make([]string, n)
	for i := range n {
		items[i] = fmt.Sprintf(`{"question":"Q%d","options":["a","b","c","d"],"correctAnswer":%d,"explanation":"e"}`, i+1, i%4)
	}
	return `{"questions":[` + strings.Join(items, ",") + `]}`
}

func batchRequest(count int) GenerateRequest {
	return GenerateRequest{Prompt: "rivers", QuestionCount: count, AIModel: ModelOpenAI, Difficulty: DifficultyMedium}
}

func TestBatchGenerator_Generate(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(questionDoc(5))})
	g := NewBatchGenerator(mock, GenerationConfig{MaxTokens: 1000, Temperature: 0.5}, logger.NewNop())

	res, err := g.Generate(context.Background(), batchRequest(5))
	require.NoError(t, err)
	require.Len(t, res.Questions, 5)
	assert.Equal(t, "Q1", res.Questions[0].Question)
	assert.Equal(t, 3, res.Questions[3].CorrectAnswer)

	require.Equal(t, 1, mock.CallCount())
	call := mock.Calls[0]
	assert.Equal(t, 1000, call.MaxTokens)
	assert.Contains(t, call.Messages[0].Content, "Generate EXACTLY 5")
}

func TestBatchGenerator_StripsCodeFence(t *testing.T) {
	for _, wrap := range []string{"```json\n%s\n```", "```\n%s\n```", "  %s  "} {
		mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(fmt.Sprintf(wrap, questionDoc(2)))})
		res, err := NewBatchGenerator(mock, GenerationConfig{}, logger.NewNop()).Generate(context.Background(), batchRequest(2))
		require.NoError(t, err, wrap)
		assert.Len(t, res.Questions, 2)
	}
}

func TestBatchGenerator_TruncatesToRequestedCount(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(questionDoc(7))})
	res, err := NewBatchGenerator(mock, GenerationConfig{}, logger.NewNop()).Generate(context.Background(), batchRequest(5))
	require.NoError(t, err)
	assert.Len(t, res.Questions, 5)
	assert.Equal(t, 2, res.Truncated)
}

func TestBatchGenerator_FewerThanRequested(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(questionDoc(3))})
	res, err := NewBatchGenerator(mock, GenerationConfig{}, logger.NewNop()).Generate(context.Background(), batchRequest(5))
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
}

func TestBatchGenerator_DropsMalformedItems(t *testing.T) {
	doc := `{"questions":[{"question":"Q1","options":["a"]},{"question":"Q2","options":["a","b"],"correctAnswer":1}]}`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(doc)})
	res, err := NewBatchGenerator(mock, GenerationConfig{}, logger.NewNop()).Generate(context.Background(), batchRequest(2))
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, "Q2", res.Questions[0].Question)
	assert.Equal(t, 1, res.Rejected)
}

func TestBatchGenerator_KeepsLooselyTypedItems(t *testing.T) {
	doc := `{"questions":[` +
		`{"question":"Q1","options":["a","b"],"correctAnswer":"B"},` +
		`{"question":"Q2","options":"a|b","correctAnswer":null}]}`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(doc)})
	res, err := NewBatchGenerator(mock, GenerationConfig{}, logger.NewNop()).Generate(context.Background(), batchRequest(2))
	require.NoError(t, err)
	require.Len(t, res.Questions, 2)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, 1, res.Questions[0].CorrectAnswer)

	out, err := json.Marshal(res.Questions[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"Q2","options":"a|b","correctAnswer":null}`, string(out))
}

func TestBatchGenerator_Errors(t *testing.T) {
	providerErr := &llm.ErrProviderUnavailable{Err: errors.New("down")}

	tests := []struct {
		name string
		resp llm.MockResponse
		want func(t *testing.T, err error)
	}{
		{"provider error", llm.MockResponse{Err: providerErr}, func(t *testing.T, err error) {
			var unavail *llm.ErrProviderUnavailable
			assert.ErrorAs(t, err, &unavail)
		}},
		{"not json", llm.MockResponse{Content: json.RawMessage(`Sorry, I cannot help.`)}, func(t *testing.T, err error) {
			assert.ErrorContains(t, err, "invalid response format")
		}},
		{"no questions array", llm.MockResponse{Content: json.RawMessage(`{"items":[]}`)}, func(t *testing.T, err error) {
			assert.ErrorContains(t, err, "invalid response format")
		}},
		{"empty array", llm.MockResponse{Content: json.RawMessage(`{"questions":[]}`)}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNoQuestions)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(tt.resp)
			_, err := NewBatchGenerator(mock, GenerationConfig{}, logger.NewNop()).Generate(context.Background(), batchRequest(5))
			require.Error(t, err)
			tt.want(t, err)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("\n{\"a\":1}\n"))
}
