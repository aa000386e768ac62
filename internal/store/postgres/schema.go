// Package postgres provides the PostgreSQL-backed [store.Store].
//
// All operations share a single [pgxpool.Pool]. The pgvector extension must
// be available in the target database; [Migrate] installs it automatically
// via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer st.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Words
// ─────────────────────────────────────────────────────────────────────────────

// ddlWords returns the words DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlWords(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS words (
    id                UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    word              TEXT         NOT NULL UNIQUE,
    difficulty        INT          NOT NULL DEFAULT 5,
    context_sentence  TEXT         NOT NULL DEFAULT '',
    phonetic_pattern  TEXT         NOT NULL DEFAULT '',
    embedding         vector(%d),
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_words_difficulty
    ON words (difficulty);

CREATE INDEX IF NOT EXISTS idx_words_embedding
    ON words USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// ─────────────────────────────────────────────────────────────────────────────
// Users and settings
// ─────────────────────────────────────────────────────────────────────────────

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id          UUID         PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id            UUID         PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
    target_difficulty  INT          NOT NULL DEFAULT 5,
    updated_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Sessions, attempts, rolling performance
// ─────────────────────────────────────────────────────────────────────────────

const ddlSessions = `
CREATE TABLE IF NOT EXISTS test_sessions (
    id                  UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id             UUID         NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    prompt              TEXT         NOT NULL DEFAULT '',
    difficulty_setting  TEXT         NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_test_sessions_user_created
    ON test_sessions (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS test_attempts (
    id                 UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    session_id         UUID         NOT NULL REFERENCES test_sessions (id) ON DELETE CASCADE,
    user_id            UUID         NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    word_id            UUID         NOT NULL REFERENCES words (id) ON DELETE CASCADE,
    user_spelling      TEXT         NOT NULL DEFAULT '',
    is_correct         BOOLEAN      NOT NULL,
    feedback           TEXT         NOT NULL DEFAULT '',
    audio_duration_ms  INT,
    attempted_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_test_attempts_session
    ON test_attempts (session_id);

CREATE INDEX IF NOT EXISTS idx_test_attempts_user_attempted
    ON test_attempts (user_id, attempted_at DESC);

CREATE TABLE IF NOT EXISTS user_word_performance (
    user_id            UUID         NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    word_id            UUID         NOT NULL REFERENCES words (id) ON DELETE CASCADE,
    attempts           INT          NOT NULL DEFAULT 0,
    correct            INT          NOT NULL DEFAULT 0,
    last_attempted_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, word_id)
);

CREATE INDEX IF NOT EXISTS idx_uwp_user_last
    ON user_word_performance (user_id, last_attempted_at DESC);
`

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small). Changing this
// value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlWords(embeddingDimensions),
		ddlUsers,
		ddlSessions,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
