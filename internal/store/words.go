package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lingbot/pkg/logx"
)

// Word is a vocabulary entry, optionally joined with one user's history.
type Word struct {
	ID           int64
	Word         string
	ShownWord    string
	UsageExample string

	SeenTimes    int
	LastSeen     time.Time
	Translations []string
}

// WordData is what a solver session learns about a word from one prompt.
type WordData struct {
	ID           int64
	Word         string
	ShownWord    string
	UsageExample string
	Translations []string
}

func (s *Store) WordExists(ctx context.Context, wordID int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM words WHERE id = ? LIMIT 1`, wordID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetWord returns the word joined with the user's seen history, or nil if the
// user has never seen it.
func (s *Store) GetWord(ctx context.Context, wordID, userID int64) (*Word, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	var w Word
	var lastSeen string
	err := s.db.QueryRowContext(ctx, `
		SELECT words.id, words.word, words.shown_word, COALESCE(words.usage_example, ''),
		       word_history.seen_times, word_history.last_seen
		FROM word_history INNER JOIN words ON word_history.word_id = words.id
		WHERE word_history.word_id = ? AND word_history.user_id = ?`,
		wordID, userID,
	).Scan(&w.ID, &w.Word, &w.ShownWord, &w.UsageExample, &w.SeenTimes, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
	w.Translations, err = s.Translations(ctx, wordID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) Translations(ctx context.Context, wordID int64) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT translation FROM word_translations WHERE word_id = ?`, wordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TranslateWords finds words the user has already seen whose translations
// match any of the given strings. Used by the solver for synonym lookups.
func (s *Store) TranslateWords(ctx context.Context, translations []string, userID int64) ([]Word, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if len(translations) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(translations)+1)
	for _, t := range translations {
		args = append(args, t)
	}
	args = append(args, userID)
	q := fmt.Sprintf(`
		SELECT DISTINCT words.id, words.word, words.shown_word, COALESCE(words.usage_example, ''),
		       word_history.seen_times
		FROM words
		INNER JOIN word_translations ON words.id = word_translations.word_id
		INNER JOIN word_history ON words.id = word_history.word_id
		WHERE word_translations.translation IN (%s)
		  AND word_history.user_id = ? AND word_history.seen_times > 0`,
		placeholders(len(translations)))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.ID, &w.Word, &w.ShownWord, &w.UsageExample, &w.SeenTimes); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) InsertWord(ctx context.Context, w WordData, userID int64) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO words (id, word, shown_word, usage_example) VALUES (?,?,?,?)`,
		w.ID, w.Word, w.ShownWord, nullStr(w.UsageExample)); err != nil {
		return err
	}
	for _, t := range w.Translations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO word_translations (word_id, translation) VALUES (?,?)`,
			w.ID, t); err != nil {
			return err
		}
	}
	if userID != 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO word_history (word_id, user_id) VALUES (?,?)`,
			w.ID, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) MarkSeen(ctx context.Context, wordID, userID int64) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO word_history (word_id, user_id) VALUES (?,?)
		ON CONFLICT(word_id, user_id) DO UPDATE SET
			seen_times = seen_times + 1,
			last_seen = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		wordID, userID)
	return err
}

// HandleWord records the outcome of one answered prompt: a known word gets its
// seen counter bumped, a new word with a revealed answer is inserted.
func (s *Store) HandleWord(ctx context.Context, w WordData, userID int64) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	exists, err := s.WordExists(ctx, w.ID)
	if err != nil {
		return err
	}
	if exists {
		return s.MarkSeen(ctx, w.ID, userID)
	}
	if w.Word == "" || w.ShownWord == "" {
		s.log.Warn("new word, but answer is missing", logx.Int64("word_id", w.ID))
		return nil
	}
	return s.InsertWord(ctx, w, userID)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
