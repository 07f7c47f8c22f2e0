package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions. These are declared by hand in the same form ent's
// migrate package generates, and applied by schema.Migrate on Open.

// textSize makes SQLite string columns unbounded.
const textSize = 2147483647

var (
	llmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "session_id", Type: field.TypeString, Default: ""},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "streamed", Type: field.TypeBool, Default: false},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""},
	}
	llmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmRequestEventsColumns,
		PrimaryKey: []*schema.Column{llmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{llmRequestEventsColumns[2]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmRequestEventsColumns[5]}},
			{Name: "llmrequestevent_session_id", Columns: []*schema.Column{llmRequestEventsColumns[6]}},
		},
	}

	generationSessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "mode", Type: field.TypeString},
		{Name: "prompt", Type: field.TypeString, Size: textSize},
		{Name: "ai_model", Type: field.TypeString},
		{Name: "difficulty", Type: field.TypeString},
		{Name: "requested_count", Type: field.TypeInt},
		{Name: "emitted_count", Type: field.TypeInt, Default: 0},
		{Name: "rejected_lines", Type: field.TypeInt, Default: 0},
		{Name: "outcome", Type: field.TypeString},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "duration_ms", Type: field.TypeInt64, Default: 0},
	}
	generationSessionsTable = &schema.Table{
		Name:       "generation_sessions",
		Columns:    generationSessionsColumns,
		PrimaryKey: []*schema.Column{generationSessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "generationsession_started_at", Columns: []*schema.Column{generationSessionsColumns[2]}},
			{Name: "generationsession_outcome", Columns: []*schema.Column{generationSessionsColumns[10]}},
		},
	}

	generatedQuestionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt},
		{Name: "body", Type: field.TypeString, Size: textSize},
	}
	generatedQuestionsTable = &schema.Table{
		Name:       "generated_questions",
		Columns:    generatedQuestionsColumns,
		PrimaryKey: []*schema.Column{generatedQuestionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "generated_questions_generation_sessions_questions",
				Columns:    []*schema.Column{generatedQuestionsColumns[1]},
				RefColumns: []*schema.Column{generationSessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "generatedquestion_session_id_position",
				Unique:  true,
				Columns: []*schema.Column{generatedQuestionsColumns[1], generatedQuestionsColumns[2]},
			},
		},
	}

	tables = []*schema.Table{
		llmRequestEventsTable,
		generationSessionsTable,
		generatedQuestionsTable,
	}
)

func init() {
	generatedQuestionsTable.ForeignKeys[0].RefTable = generationSessionsTable
}
