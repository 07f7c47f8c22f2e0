package quiz

import "github.com/abhisek/mcqgen/internal/llm"

// QuestionSetSchema describes the batch response document. Items are
// checked loosely here; ValidateShape decides which items are usable.
var QuestionSetSchema = &llm.Schema{
	Name:        "mcq-question-set",
	Description: "A set of multiple-choice questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{
							"description": "The question text",
						},
						"options": map[string]any{
							"description": "Answer choices, normally an array of 4",
						},
						"correctAnswer": map[string]any{
							"description": "Zero-based index of the correct option",
						},
						"explanation": map[string]any{
							"type":        "string",
							"description": "Brief explanation of the correct answer",
						},
					},
				},
			},
		},
		"required": []any{"questions"},
	},
}
