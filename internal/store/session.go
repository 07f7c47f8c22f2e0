package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// sessionRepo implements SessionRepo on generation_sessions and
// generated_questions.
type sessionRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var sessionColumns = []string{
	"id", "sequence", "started_at", "mode", "prompt", "ai_model", "difficulty",
	"requested_count", "emitted_count", "rejected_lines", "outcome",
	"error_message", "duration_ms",
}

func (r *sessionRepo) SaveSession(ctx context.Context, rec *SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save session: missing id")
	}

	// The counter uses the pool's only connection, so take the sequence
	// before the transaction holds it.
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	rec.Sequence = seqNum
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	b := builder()
	query, args := b.Insert(generationSessionsTable.Name).
		Columns(sessionColumns...).
		Values(
			rec.ID, rec.Sequence, rec.StartedAt.UTC(), rec.Mode, rec.Prompt, rec.AIModel,
			rec.Difficulty, rec.RequestedCount, rec.EmittedCount, rec.RejectedLines,
			rec.Outcome, rec.ErrorMessage, rec.DurationMs,
		).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if len(rec.Questions) > 0 {
		ins := b.Insert(generatedQuestionsTable.Name).Columns("session_id", "position", "body")
		for _, q := range rec.Questions {
			ins.Values(rec.ID, q.Index, string(q.Body))
		}
		query, args = ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save session questions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (r *sessionRepo) ListSessions(ctx context.Context, opts QueryOpts) ([]SessionRecord, error) {
	b := builder()
	sel := b.Select(sessionColumns...).
		From(b.Table(generationSessionsTable.Name)).
		OrderBy(entsql.Desc("sequence"))
	applyQueryOpts(sel, opts, "started_at")

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	b := builder()
	query, args := b.Select(sessionColumns...).
		From(b.Table(generationSessionsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	rec, found, err := r.querySession(ctx, query, args)
	if err != nil || !found {
		return nil, err
	}

	query, args = b.Select("position", "body").
		From(b.Table(generatedQuestionsTable.Name)).
		Where(entsql.EQ("session_id", id)).
		OrderBy("position").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q StoredQuestion
		var body string
		if err := rows.Scan(&q.Index, &body); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Body = json.RawMessage(body)
		rec.Questions = append(rec.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// querySession runs a single-row session query and closes its rows before
// returning, freeing the connection for follow-up queries.
func (r *sessionRepo) querySession(ctx context.Context, query string, args []any) (SessionRecord, bool, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return SessionRecord{}, false, fmt.Errorf("get session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return SessionRecord{}, false, rows.Err()
	}
	rec, err := scanSession(rows)
	if err != nil {
		return SessionRecord{}, false, err
	}
	return rec, true, nil
}

func scanSession(rows *sql.Rows) (SessionRecord, error) {
	var rec SessionRecord
	err := rows.Scan(
		&rec.ID, &rec.Sequence, &rec.StartedAt, &rec.Mode, &rec.Prompt, &rec.AIModel,
		&rec.Difficulty, &rec.RequestedCount, &rec.EmittedCount, &rec.RejectedLines,
		&rec.Outcome, &rec.ErrorMessage, &rec.DurationMs,
	)
	if err != nil {
		return rec, fmt.Errorf("scan session: %w", err)
	}
	return rec, nil
}
