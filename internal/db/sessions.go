package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/pulse.report/internal/session"
)

// RecordSession implements session.Journal.
func (db *DB) RecordSession(ctx context.Context, s session.Summary) error {
	var ended sql.NullInt64
	if !s.EndedAt.IsZero() {
		ended = sql.NullInt64{Int64: s.EndedAt.UnixNano(), Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, source, started_ns, ended_ns, outcome, samples, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Source, s.StartedAt.UnixNano(), ended, string(s.Outcome), s.Samples, s.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	return nil
}

// RecentSessions returns up to limit finished sessions, newest first.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]session.Summary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	rows, err := db.QueryContext(ctx,
		`SELECT session_id, source, started_ns, ended_ns, outcome, samples, skipped
		FROM sessions ORDER BY started_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []session.Summary{}
	for rows.Next() {
		var (
			s       session.Summary
			started int64
			ended   sql.NullInt64
			outcome string
		)
		if err := rows.Scan(&s.ID, &s.Source, &started, &ended, &outcome, &s.Samples, &s.Skipped); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			s.EndedAt = time.Unix(0, ended.Int64).UTC()
		}
		s.Outcome = session.Outcome(outcome)
		out = append(out, s)
	}
	return out, rows.Err()
}
