package store

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. It backs tests and lets the server run
// without a database, at the cost of losing everything on restart.
type MemStore struct {
	mu sync.Mutex

	rng *rand.Rand
	now func() time.Time

	words      map[string]*Word      // word id -> word
	wordIDs    map[string]string     // lowercase spelling -> word id
	embeddings map[string][]float32  // word id -> embedding
	users      map[string]*Settings  // user id -> settings
	sessions   map[string]*Session   // session id -> session
	attempts   []Attempt             // insertion order
	perf       map[string]map[string]*WordPerformance // user id -> word id -> tally
}

var _ Store = (*MemStore)(nil)

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithSeed makes word sampling deterministic.
func WithSeed(seed uint64) MemOption {
	return func(m *MemStore) {
		m.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemOption {
	return func(m *MemStore) {
		m.now = now
	}
}

// NewMemStore returns an empty MemStore.
func NewMemStore(opts ...MemOption) *MemStore {
	m := &MemStore{
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:        time.Now,
		words:      make(map[string]*Word),
		wordIDs:    make(map[string]string),
		embeddings: make(map[string][]float32),
		users:      make(map[string]*Settings),
		sessions:   make(map[string]*Session),
		perf:       make(map[string]map[string]*WordPerformance),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// UpsertWord implements Store.
func (m *MemStore) UpsertWord(_ context.Context, w Word) (*Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(w.Word)
	if id, ok := m.wordIDs[key]; ok {
		existing := m.words[id]
		existing.Difficulty = w.Difficulty
		if w.ContextSentence != "" {
			existing.ContextSentence = w.ContextSentence
		}
		if w.PhoneticPattern != "" {
			existing.PhoneticPattern = w.PhoneticPattern
		}
		out := *existing
		return &out, nil
	}

	w.ID = uuid.NewString()
	w.CreatedAt = m.now()
	m.words[w.ID] = &w
	m.wordIDs[key] = w.ID
	out := w
	return &out, nil
}

// GetWord implements Store.
func (m *MemStore) GetWord(_ context.Context, id string) (*Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.words[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *w
	return &out, nil
}

// SampleWords implements Store.
func (m *MemStore) SampleWords(_ context.Context, minDifficulty, maxDifficulty, limit int) ([]Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pool []Word
	for _, w := range m.words {
		if w.Difficulty >= minDifficulty && w.Difficulty <= maxDifficulty {
			pool = append(pool, *w)
		}
	}
	// Stable order before shuffling keeps sampling reproducible under a
	// fixed seed regardless of map iteration order.
	sort.Slice(pool, func(i, j int) bool { return pool[i].Word < pool[j].Word })
	m.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// SetWordEmbedding implements Store.
func (m *MemStore) SetWordEmbedding(_ context.Context, wordID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.words[wordID]; !ok {
		return ErrNotFound
	}
	m.embeddings[wordID] = slices.Clone(embedding)
	return nil
}

// SimilarWords implements Store.
func (m *MemStore) SimilarWords(_ context.Context, embedding []float32, limit int) ([]Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		word Word
		dist float64
	}
	var candidates []scored
	for id, vec := range m.embeddings {
		if len(vec) != len(embedding) {
			continue
		}
		candidates = append(candidates, scored{word: *m.words[id], dist: cosineDistance(embedding, vec)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].word.Word < candidates[j].word.Word
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Word, len(candidates))
	for i, c := range candidates {
		out[i] = c.word
	}
	return out, nil
}

// EnsureUser implements Store.
func (m *MemStore) EnsureUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureUserLocked(userID)
	return nil
}

func (m *MemStore) ensureUserLocked(userID string) *Settings {
	s, ok := m.users[userID]
	if !ok {
		s = &Settings{
			UserID:           userID,
			TargetDifficulty: 5,
			UpdatedAt:        m.now(),
		}
		m.users[userID] = s
	}
	return s
}

// GetSettings implements Store.
func (m *MemStore) GetSettings(_ context.Context, userID string) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// AdjustDifficulty implements Store.
func (m *MemStore) AdjustDifficulty(_ context.Context, userID string, delta int) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.ensureUserLocked(userID)
	s.TargetDifficulty = clampDifficulty(s.TargetDifficulty + delta)
	s.UpdatedAt = m.now()
	out := *s
	return &out, nil
}

// CreateSession implements Store.
func (m *MemStore) CreateSession(_ context.Context, userID, prompt, difficultySetting string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureUserLocked(userID)
	s := &Session{
		ID:                uuid.NewString(),
		UserID:            userID,
		Prompt:            prompt,
		DifficultySetting: difficultySetting,
		CreatedAt:         m.now(),
	}
	m.sessions[s.ID] = s
	return s.ID, nil
}

// SessionAttemptCount implements Store.
func (m *MemStore) SessionAttemptCount(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.attempts {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// SaveAttempt implements Store.
func (m *MemStore) SaveAttempt(_ context.Context, a Attempt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.words[a.WordID]
	if !ok {
		return "", ErrNotFound
	}
	m.ensureUserLocked(a.UserID)

	a.ID = uuid.NewString()
	a.Word = w.Word
	a.AttemptedAt = m.now()
	m.attempts = append(m.attempts, a)

	byWord, ok := m.perf[a.UserID]
	if !ok {
		byWord = make(map[string]*WordPerformance)
		m.perf[a.UserID] = byWord
	}
	p, ok := byWord[a.WordID]
	if !ok {
		p = &WordPerformance{WordID: a.WordID, Word: w.Word, Difficulty: w.Difficulty}
		byWord[a.WordID] = p
	}
	p.Attempts++
	if a.IsCorrect {
		p.Correct++
	}
	p.LastAttemptedAt = a.AttemptedAt

	return a.ID, nil
}

// RecentAttempts implements Store.
func (m *MemStore) RecentAttempts(_ context.Context, userID string, limit int) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Attempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.attempts[i].UserID == userID {
			out = append(out, m.attempts[i])
		}
	}
	return out, nil
}

// Performance implements Store.
func (m *MemStore) Performance(_ context.Context, userID string) ([]WordPerformance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []WordPerformance
	for _, p := range m.perf[userID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAttemptedAt.Equal(out[j].LastAttemptedAt) {
			return out[i].LastAttemptedAt.After(out[j].LastAttemptedAt)
		}
		return out[i].Word < out[j].Word
	})
	return out, nil
}

// History implements Store.
func (m *MemStore) History(_ context.Context, userID string, attemptLimit, sessionLimit int) (*History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := &History{Attempts: []Attempt{}, Sessions: []Session{}}

	for i := len(m.attempts) - 1; i >= 0 && len(h.Attempts) < attemptLimit; i-- {
		if m.attempts[i].UserID == userID {
			h.Attempts = append(h.Attempts, m.attempts[i])
		}
	}

	var sessions []Session
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		sess := *s
		sess.Attempts = nil
		for _, a := range m.attempts {
			if a.SessionID == sess.ID {
				sess.Attempts = append(sess.Attempts, a)
			}
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	if len(sessions) > sessionLimit {
		sessions = sessions[:sessionLimit]
	}
	h.Sessions = sessions

	return h, nil
}

// Close implements Store.
func (m *MemStore) Close() {}

// clampDifficulty bounds a difficulty value to [MinDifficulty, MaxDifficulty].
func clampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// cosineDistance returns 1 - cosine similarity; lower is more similar.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
