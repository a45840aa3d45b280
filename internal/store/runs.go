package store

import (
	"context"
	"time"
)

// RecordRun logs one profile execution's timing and outcome.
func (s *Store) RecordRun(ctx context.Context, userID int64, start, end time.Time, success bool) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_runs (user_id, started_at, ended_at, success) VALUES (?,?,?,?)`,
		userID, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano), success)
	return err
}

// CaptureWordCountSnapshot records global and per-user aggregate counts.
// Called after each run and by the daily maintenance job.
func (s *Store) CaptureWordCountSnapshot(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wordcount_snapshots (words, tasks, translations, unique_translations)
		SELECT
			(SELECT COUNT(*) FROM words),
			(SELECT SUM(seen_times) FROM word_history),
			COUNT(*),
			COUNT(DISTINCT translation)
		FROM word_translations`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_wordcount_snapshots (user_id, words, tasks, translations, unique_translations)
		SELECT
			wh.user_id,
			COUNT(DISTINCT w.id),
			(SELECT SUM(wh2.seen_times) FROM word_history wh2 WHERE wh2.user_id = wh.user_id),
			COUNT(*),
			COUNT(DISTINCT wt.translation)
		FROM words w
		JOIN word_history wh ON w.id = wh.word_id
		JOIN word_translations wt ON w.id = wt.word_id
		GROUP BY wh.user_id`); err != nil {
		return err
	}
	return tx.Commit()
}
