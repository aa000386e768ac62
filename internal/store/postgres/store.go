package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/example/spellvox/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [store.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the database at dsn,
// registers pgvector types on every connection, and runs [Migrate] to ensure
// all required tables and extensions exist.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that the embedding
	// column can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// UpsertWord implements store.Store.
func (s *Store) UpsertWord(ctx context.Context, w store.Word) (*store.Word, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO words (word, difficulty, context_sentence, phonetic_pattern)
		VALUES (lower($1), $2, $3, $4)
		ON CONFLICT (word) DO UPDATE SET
			difficulty       = EXCLUDED.difficulty,
			context_sentence = CASE WHEN EXCLUDED.context_sentence <> '' THEN EXCLUDED.context_sentence ELSE words.context_sentence END,
			phonetic_pattern = CASE WHEN EXCLUDED.phonetic_pattern <> '' THEN EXCLUDED.phonetic_pattern ELSE words.phonetic_pattern END
		RETURNING id, word, difficulty, context_sentence, phonetic_pattern, created_at`,
		strings.TrimSpace(w.Word), w.Difficulty, w.ContextSentence, w.PhoneticPattern)

	var out store.Word
	if err := row.Scan(&out.ID, &out.Word, &out.Difficulty, &out.ContextSentence, &out.PhoneticPattern, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("postgres store: upsert word: %w", err)
	}
	return &out, nil
}

// GetWord implements store.Store.
func (s *Store) GetWord(ctx context.Context, id string) (*store.Word, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, word, difficulty, context_sentence, phonetic_pattern, created_at
		FROM words WHERE id = $1`, id)

	var out store.Word
	if err := row.Scan(&out.ID, &out.Word, &out.Difficulty, &out.ContextSentence, &out.PhoneticPattern, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres store: get word: %w", err)
	}
	return &out, nil
}

// SampleWords implements store.Store.
func (s *Store) SampleWords(ctx context.Context, minDifficulty, maxDifficulty, limit int) ([]store.Word, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, word, difficulty, context_sentence, phonetic_pattern, created_at
		FROM words
		WHERE difficulty BETWEEN $1 AND $2
		ORDER BY random()
		LIMIT $3`, minDifficulty, maxDifficulty, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: sample words: %w", err)
	}
	defer rows.Close()
	return scanWords(rows)
}

// SetWordEmbedding implements store.Store.
func (s *Store) SetWordEmbedding(ctx context.Context, wordID string, embedding []float32) error {
	tag, err := s.pool.Exec(ctx, `UPDATE words SET embedding = $2 WHERE id = $1`,
		wordID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("postgres store: set embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SimilarWords implements store.Store.
func (s *Store) SimilarWords(ctx context.Context, embedding []float32, limit int) ([]store.Word, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, word, difficulty, context_sentence, phonetic_pattern, created_at
		FROM words
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: similar words: %w", err)
	}
	defer rows.Close()
	return scanWords(rows)
}

// EnsureUser implements store.Store.
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("postgres store: ensure user: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("postgres store: ensure settings: %w", err)
	}
	return nil
}

// GetSettings implements store.Store.
func (s *Store) GetSettings(ctx context.Context, userID string) (*store.Settings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, target_difficulty, updated_at
		FROM user_settings WHERE user_id = $1`, userID)

	var out store.Settings
	if err := row.Scan(&out.UserID, &out.TargetDifficulty, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres store: get settings: %w", err)
	}
	return &out, nil
}

// AdjustDifficulty implements store.Store. The shift is clamped in SQL so
// concurrent adjustments never escape the valid range.
func (s *Store) AdjustDifficulty(ctx context.Context, userID string, delta int) (*store.Settings, error) {
	if err := s.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE user_settings
		SET target_difficulty = least($3, greatest($2, target_difficulty + $4)),
		    updated_at = now()
		WHERE user_id = $1
		RETURNING user_id, target_difficulty, updated_at`,
		userID, store.MinDifficulty, store.MaxDifficulty, delta)

	var out store.Settings
	if err := row.Scan(&out.UserID, &out.TargetDifficulty, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("postgres store: adjust difficulty: %w", err)
	}
	return &out, nil
}

// CreateSession implements store.Store.
func (s *Store) CreateSession(ctx context.Context, userID, prompt, difficultySetting string) (string, error) {
	if err := s.EnsureUser(ctx, userID); err != nil {
		return "", err
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO test_sessions (user_id, prompt, difficulty_setting)
		VALUES ($1, $2, $3)
		RETURNING id`, userID, prompt, difficultySetting).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres store: create session: %w", err)
	}
	return id, nil
}

// SessionAttemptCount implements store.Store.
func (s *Store) SessionAttemptCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM test_attempts WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres store: session attempt count: %w", err)
	}
	return n, nil
}

// SaveAttempt implements store.Store. The attempt insert and the rolling
// performance upsert commit together.
func (s *Store) SaveAttempt(ctx context.Context, a store.Attempt) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO test_attempts (session_id, user_id, word_id, user_spelling, is_correct, feedback, audio_duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0))
		RETURNING id`,
		a.SessionID, a.UserID, a.WordID, a.UserSpelling, a.IsCorrect, a.Feedback, a.AudioDurationMs).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return "", fmt.Errorf("postgres store: insert attempt: %w", store.ErrNotFound)
		}
		return "", fmt.Errorf("postgres store: insert attempt: %w", err)
	}

	correct := 0
	if a.IsCorrect {
		correct = 1
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_word_performance (user_id, word_id, attempts, correct, last_attempted_at)
		VALUES ($1, $2, 1, $3, now())
		ON CONFLICT (user_id, word_id) DO UPDATE SET
			attempts          = user_word_performance.attempts + 1,
			correct           = user_word_performance.correct + $3,
			last_attempted_at = now()`,
		a.UserID, a.WordID, correct)
	if err != nil {
		return "", fmt.Errorf("postgres store: update performance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("postgres store: commit: %w", err)
	}
	return id, nil
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign-key
// violation (SQLSTATE 23503). On test_attempts that means the referenced
// word or session row does not exist.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// RecentAttempts implements store.Store.
func (s *Store) RecentAttempts(ctx context.Context, userID string, limit int) ([]store.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.session_id, a.user_id, a.word_id, w.word,
		       a.user_spelling, a.is_correct, a.feedback,
		       COALESCE(a.audio_duration_ms, 0), a.attempted_at
		FROM test_attempts a
		JOIN words w ON w.id = a.word_id
		WHERE a.user_id = $1
		ORDER BY a.attempted_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent attempts: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// Performance implements store.Store.
func (s *Store) Performance(ctx context.Context, userID string) ([]store.WordPerformance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.word_id, w.word, w.difficulty, p.attempts, p.correct, p.last_attempted_at
		FROM user_word_performance p
		JOIN words w ON w.id = p.word_id
		WHERE p.user_id = $1
		ORDER BY p.last_attempted_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: performance: %w", err)
	}
	defer rows.Close()

	var out []store.WordPerformance
	for rows.Next() {
		var p store.WordPerformance
		if err := rows.Scan(&p.WordID, &p.Word, &p.Difficulty, &p.Attempts, &p.Correct, &p.LastAttemptedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan performance: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: performance rows: %w", err)
	}
	return out, nil
}

// History implements store.Store.
func (s *Store) History(ctx context.Context, userID string, attemptLimit, sessionLimit int) (*store.History, error) {
	attempts, err := s.RecentAttempts(ctx, userID, attemptLimit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, prompt, difficulty_setting, created_at
		FROM test_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, sessionLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: history sessions: %w", err)
	}
	defer rows.Close()

	var sessions []store.Session
	sessionIDs := make([]string, 0, sessionLimit)
	for rows.Next() {
		var sess store.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Prompt, &sess.DifficultySetting, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan session: %w", err)
		}
		sessions = append(sessions, sess)
		sessionIDs = append(sessionIDs, sess.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: history rows: %w", err)
	}

	if len(sessionIDs) > 0 {
		arows, err := s.pool.Query(ctx, `
			SELECT a.id, a.session_id, a.user_id, a.word_id, w.word,
			       a.user_spelling, a.is_correct, a.feedback,
			       COALESCE(a.audio_duration_ms, 0), a.attempted_at
			FROM test_attempts a
			JOIN words w ON w.id = a.word_id
			WHERE a.session_id = ANY($1)
			ORDER BY a.attempted_at`, sessionIDs)
		if err != nil {
			return nil, fmt.Errorf("postgres store: session attempts: %w", err)
		}
		defer arows.Close()

		sessionAttempts, err := scanAttempts(arows)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]int, len(sessions))
		for i, sess := range sessions {
			byID[sess.ID] = i
		}
		for _, a := range sessionAttempts {
			if i, ok := byID[a.SessionID]; ok {
				sessions[i].Attempts = append(sessions[i].Attempts, a)
			}
		}
	}

	if attempts == nil {
		attempts = []store.Attempt{}
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return &store.History{Attempts: attempts, Sessions: sessions}, nil
}

// scanWords drains word rows into a slice.
func scanWords(rows pgx.Rows) ([]store.Word, error) {
	var out []store.Word
	for rows.Next() {
		var w store.Word
		if err := rows.Scan(&w.ID, &w.Word, &w.Difficulty, &w.ContextSentence, &w.PhoneticPattern, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan word: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: word rows: %w", err)
	}
	return out, nil
}

// scanAttempts drains attempt rows into a slice.
func scanAttempts(rows pgx.Rows) ([]store.Attempt, error) {
	var out []store.Attempt
	for rows.Next() {
		var a store.Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.WordID, &a.Word,
			&a.UserSpelling, &a.IsCorrect, &a.Feedback, &a.AudioDurationMs, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: attempt rows: %w", err)
	}
	return out, nil
}
