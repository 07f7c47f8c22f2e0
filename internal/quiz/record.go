package quiz

import (
	"encoding/json"
	"time"

	"github.com/abhisek/mcqgen/internal/store"
)

// StreamRecord converts a finished streaming session into its stored form.
func StreamRecord(id string, req GenerateRequest, started time.Time, res Result) *store.SessionRecord {
	rec := baseRecord(id, store.ModeStream, req, started)
	rec.EmittedCount = res.Count()
	rec.RejectedLines = res.Rejected
	rec.Outcome = string(res.Outcome)
	rec.DurationMs = res.Duration.Milliseconds()
	if res.Err != nil {
		rec.ErrorMessage = res.Err.Error()
	}
	for _, e := range res.Questions {
		rec.Questions = append(rec.Questions, store.StoredQuestion{Index: e.Index, Body: questionBody(e.Question)})
	}
	return rec
}

// BatchRecord converts a batch generation into its stored form. A nil
// result with a non-nil err records a failed call.
func BatchRecord(id string, req GenerateRequest, started time.Time, result *BatchResult, err error) *store.SessionRecord {
	rec := baseRecord(id, store.ModeBatch, req, started)
	rec.DurationMs = time.Since(started).Milliseconds()
	rec.Outcome = store.OutcomeComplete
	if err != nil {
		rec.Outcome = store.OutcomeError
		rec.ErrorMessage = err.Error()
	}
	if result != nil {
		rec.EmittedCount = len(result.Questions)
		rec.RejectedLines = result.Rejected
		for i, q := range result.Questions {
			rec.Questions = append(rec.Questions, store.StoredQuestion{Index: i, Body: questionBody(q)})
		}
	}
	return rec
}

func baseRecord(id, mode string, req GenerateRequest, started time.Time) *store.SessionRecord {
	return &store.SessionRecord{
		ID:             id,
		StartedAt:      started,
		Mode:           mode,
		Prompt:         req.Prompt,
		AIModel:        string(req.AIModel),
		Difficulty:     string(req.Difficulty),
		RequestedCount: req.QuestionCount,
	}
}

func questionBody(q Question) json.RawMessage {
	if raw := q.Raw(); raw != nil {
		return raw
	}
	body, _ := json.Marshal(q)
	return body
}
