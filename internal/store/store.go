// Package store defines persistence for words, practice sessions, attempts,
// and per-word performance.
//
// Two implementations exist: [MemStore] for tests and database-less
// development, and the postgres subpackage for production. Both are safe for
// concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// DefaultUserID identifies the implicit single user when no user id is
// supplied by the client.
const DefaultUserID = "00000000-0000-0000-0000-000000000000"

// Difficulty bounds for words and user settings.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// Word is a practice word with its difficulty rating and usage context.
type Word struct {
	ID              string    `json:"id"`
	Word            string    `json:"word"`
	Difficulty      int       `json:"difficulty"`
	ContextSentence string    `json:"contextSentence,omitempty"`
	PhoneticPattern string    `json:"phoneticPattern,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// Attempt is one graded spelling attempt within a session.
type Attempt struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	UserID          string    `json:"userId"`
	WordID          string    `json:"wordId"`
	Word            string    `json:"word,omitempty"`
	UserSpelling    string    `json:"userSpelling"`
	IsCorrect       bool      `json:"isCorrect"`
	Feedback        string    `json:"feedback"`
	AudioDurationMs int       `json:"audioDurationMs,omitempty"`
	AttemptedAt     time.Time `json:"attemptedAt"`
}

// Session groups the attempts of one practice run.
type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Prompt            string    `json:"prompt,omitempty"`
	DifficultySetting string    `json:"difficultySetting,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	Attempts          []Attempt `json:"attempts,omitempty"`
}

// Settings holds per-user tunables.
type Settings struct {
	UserID           string    `json:"userId"`
	TargetDifficulty int       `json:"targetDifficulty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WordPerformance is the rolling per-word tally for one user.
type WordPerformance struct {
	WordID          string    `json:"wordId"`
	Word            string    `json:"word"`
	Difficulty      int       `json:"difficulty"`
	Attempts        int       `json:"attempts"`
	Correct         int       `json:"correct"`
	LastAttemptedAt time.Time `json:"lastAttemptedAt"`
}

// Accuracy returns the fraction of correct attempts, or 0 when none exist.
func (p WordPerformance) Accuracy() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Attempts)
}

// History is the flat attempt log plus recent sessions for one user.
type History struct {
	Attempts []Attempt `json:"attempts"`
	Sessions []Session `json:"sessions"`
}

// Store is the persistence abstraction for the practice backend.
type Store interface {
	// UpsertWord inserts the word or, when the spelling already exists,
	// updates its difficulty, context sentence, and phonetic pattern. The
	// returned Word carries the canonical id.
	UpsertWord(ctx context.Context, w Word) (*Word, error)

	// GetWord returns the word with the given id, or ErrNotFound.
	GetWord(ctx context.Context, id string) (*Word, error)

	// SampleWords returns up to limit words whose difficulty lies within
	// [minDifficulty, maxDifficulty], in random order.
	SampleWords(ctx context.Context, minDifficulty, maxDifficulty, limit int) ([]Word, error)

	// SetWordEmbedding stores the embedding vector for a word.
	SetWordEmbedding(ctx context.Context, wordID string, embedding []float32) error

	// SimilarWords returns up to limit words ordered by ascending vector
	// distance to the given embedding. Words without an embedding are
	// excluded.
	SimilarWords(ctx context.Context, embedding []float32, limit int) ([]Word, error)

	// EnsureUser creates the user and default settings rows if absent.
	EnsureUser(ctx context.Context, userID string) error

	// GetSettings returns the user's settings, or ErrNotFound when the
	// user has never been seen.
	GetSettings(ctx context.Context, userID string) (*Settings, error)

	// AdjustDifficulty shifts the user's target difficulty by delta,
	// clamped to [MinDifficulty, MaxDifficulty], and returns the updated
	// settings.
	AdjustDifficulty(ctx context.Context, userID string, delta int) (*Settings, error)

	// CreateSession opens a new practice session and returns its id.
	CreateSession(ctx context.Context, userID, prompt, difficultySetting string) (string, error)

	// SessionAttemptCount returns the number of attempts recorded in the
	// given session.
	SessionAttemptCount(ctx context.Context, sessionID string) (int, error)

	// SaveAttempt records an attempt and folds it into the user's rolling
	// per-word performance in one step. AttemptedAt is assigned by the
	// store. Returns the attempt id.
	SaveAttempt(ctx context.Context, a Attempt) (string, error)

	// RecentAttempts returns the user's most recent attempts, newest
	// first, up to limit.
	RecentAttempts(ctx context.Context, userID string, limit int) ([]Attempt, error)

	// Performance returns the user's per-word performance rows, most
	// recently attempted first.
	Performance(ctx context.Context, userID string) ([]WordPerformance, error)

	// History returns the user's recent attempts and sessions, newest
	// first, bounded by the given limits.
	History(ctx context.Context, userID string, attemptLimit, sessionLimit int) (*History, error)

	// Close releases any resources held by the store.
	Close()
}
