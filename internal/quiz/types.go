package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Question is one validated multiple-choice question.
//
// Options and CorrectAnswer are taken on good faith from the model: the
// option count and the answer's range are not checked. The typed fields
// are a best-effort view; MarshalJSON forwards the model's object as is.
type Question struct {
	// Question is the question text. Never empty. Non-string values are
	// kept as their JSON text.
	Question string `json:"question"`

	// Options are the answer choices in display order. Non-string values
	// the model produced are kept as their JSON text.
	Options []string `json:"options"`

	// CorrectAnswer is the zero-based index into Options, or -1 when the
	// model's value could not be read as one.
	CorrectAnswer int `json:"correctAnswer"`

	// Explanation is a short justification of the correct answer. Optional.
	Explanation string `json:"explanation,omitempty"`

	// raw is the compacted JSON object the question was decoded from.
	raw json.RawMessage

	// loose names the fields that did not fit the typed view.
	loose []string
}

// MarshalJSON re-emits the object exactly as the model produced it (minus
// insignificant whitespace) so fields outside the typed view pass through.
func (q Question) MarshalJSON() ([]byte, error) {
	if len(q.raw) > 0 {
		return q.raw, nil
	}
	type plain Question
	return json.Marshal(plain(q))
}

// Raw returns the JSON object the question was decoded from, or nil for
// questions built in code.
func (q Question) Raw() json.RawMessage {
	return q.raw
}

// Loose lists the fields whose model value did not fit the typed view.
func (q Question) Loose() []string {
	return q.loose
}

// Difficulty is the requested difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Model is the client-facing model identifier carried in requests.
type Model string

const (
	ModelOpenAI     Model = "openai"
	ModelGemini     Model = "gemini"
	ModelClaude     Model = "claude" // Claude via AWS Bedrock
	ModelAnthropic  Model = "anthropic"
	ModelOpenRouter Model = "openrouter"
)

// Models lists every accepted model in validation-message order.
var Models = []Model{ModelOpenAI, ModelGemini, ModelClaude, ModelAnthropic, ModelOpenRouter}

// QuestionCounts are the accepted values for GenerateRequest.QuestionCount.
var QuestionCounts = []int{2, 5, 10, 15, 20}

// Difficulties are the accepted difficulty values.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Outcome is how a generation session ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeError    Outcome = "error"
	OutcomeAborted  Outcome = "aborted"
)

// quoteList renders values as `"a", "b", or "c"`.
func quoteList[T ~string](values []T) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", string(v))
	}
	return joinOr(quoted)
}

// joinOr joins items with commas and a final "or".
func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}
