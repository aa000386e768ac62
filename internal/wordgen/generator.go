// Package wordgen produces fresh practice words with an LLM and persists
// them.
//
// The model is asked for a fixed-size batch of British English words as a
// JSON object. The payload is validated in full before anything is written,
// so a malformed response never leaves half a batch in the store. When
// history is requested, the prompt is adapted to the user's recent success
// rate and seeds previously failed words back into the batch.
package wordgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/spellvox/internal/store"
	"github.com/example/spellvox/pkg/provider/embeddings"
	"github.com/example/spellvox/pkg/provider/llm"
)

// systemPrompt instructs the model to produce British English spelling words
// as JSON.
const systemPrompt = `You are a British spelling test word generator. Generate exactly 10 words appropriate for a spelling test.
IMPORTANT: Use British English spelling exclusively (e.g., "colour" not "color", "favourite" not "favorite", "realise" not "realize", "centre" not "center", "theatre" not "theater", "defence" not "defense").

Return the words in JSON format with each word having:
- word: the spelling word (in British English)
- difficulty: difficulty level from 1-10
- contextSentence: a natural sentence using the word (also using British spelling)
- phoneticPattern: any notable phonetic pattern (optional)

Make the words educational and appropriate for spelling practice in British English.`

// defaultUserPrompt is used when the caller supplies no prompt of their own.
const defaultUserPrompt = "Generate 10 spelling words appropriate for an 11-year-old British student. Use British English spelling only."

const (
	historyWindow     = 50
	failedWordLimit   = 3
	similarWordLimit  = 3
	failedAccuracyMax = 0.5
)

// Request describes one generation run.
type Request struct {
	UserID string
	// Prompt overrides the default user prompt when non-empty.
	Prompt string
	// UseHistory adapts the prompt to the user's recent performance.
	UseHistory bool
	// IncludeWords lists words the model is asked to work into the batch,
	// e.g. a parent re-queueing this week's school list.
	IncludeWords []string
}

// Result is a persisted batch of generated words together with the prompt
// that produced it.
type Result struct {
	Words         []store.Word `json:"words"`
	SessionPrompt string       `json:"sessionPrompt"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithEmbedder stores an embedding for every generated word and lets
// history-aware prompts suggest stored words similar to the user's failures.
func WithEmbedder(e embeddings.Provider) Option {
	return func(g *Generator) {
		g.embedder = e
	}
}

// Generator produces and persists practice words.
type Generator struct {
	provider llm.Provider
	store    store.Store
	embedder embeddings.Provider
}

// New returns a Generator backed by the given LLM provider and store.
func New(provider llm.Provider, st store.Store, opts ...Option) *Generator {
	g := &Generator{provider: provider, store: st}
	for _, o := range opts {
		o(g)
	}
	return g
}

// payload mirrors the JSON shape the model is instructed to emit.
type payload struct {
	Words []genWord `json:"words"`
}

type genWord struct {
	Word            string `json:"word"`
	Difficulty      int    `json:"difficulty"`
	ContextSentence string `json:"contextSentence"`
	PhoneticPattern string `json:"phoneticPattern,omitempty"`
}

// Generate runs one generation. All words in the model's response are
// validated first and then upserted; an invalid response writes nothing.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	userID := req.UserID
	if userID == "" {
		userID = store.DefaultUserID
	}

	userPrompt := req.Prompt
	if userPrompt == "" {
		userPrompt = defaultUserPrompt
	}
	if req.UseHistory {
		userPrompt = g.adaptToHistory(ctx, userID, userPrompt)
	}
	if len(req.IncludeWords) > 0 {
		userPrompt += fmt.Sprintf(" Make sure the list includes these words: %s.", strings.Join(req.IncludeWords, ", "))
	}

	resp, err := g.provider.Complete(ctx, llm.Request{
		System:   systemPrompt,
		Prompt:   userPrompt,
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("wordgen: completion: %w", err)
	}

	var p payload
	if err := json.Unmarshal([]byte(resp.Content), &p); err != nil {
		return nil, fmt.Errorf("wordgen: decode response: %w", err)
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	words := make([]store.Word, 0, len(p.Words))
	for _, gw := range p.Words {
		w, err := g.store.UpsertWord(ctx, store.Word{
			Word:            strings.ToLower(strings.TrimSpace(gw.Word)),
			Difficulty:      gw.Difficulty,
			ContextSentence: gw.ContextSentence,
			PhoneticPattern: gw.PhoneticPattern,
		})
		if err != nil {
			return nil, fmt.Errorf("wordgen: store word %q: %w", gw.Word, err)
		}
		words = append(words, *w)
	}

	g.embedWords(ctx, words)

	return &Result{Words: words, SessionPrompt: userPrompt}, nil
}

// validate checks the whole payload before any write happens.
func validate(p payload) error {
	if len(p.Words) == 0 {
		return fmt.Errorf("wordgen: response contains no words")
	}
	for i, w := range p.Words {
		if strings.TrimSpace(w.Word) == "" {
			return fmt.Errorf("wordgen: word %d is empty", i)
		}
		if w.Difficulty < store.MinDifficulty || w.Difficulty > store.MaxDifficulty {
			return fmt.Errorf("wordgen: word %q has difficulty %d outside [%d, %d]",
				w.Word, w.Difficulty, store.MinDifficulty, store.MaxDifficulty)
		}
		if strings.TrimSpace(w.ContextSentence) == "" {
			return fmt.Errorf("wordgen: word %q has no context sentence", w.Word)
		}
	}
	return nil
}

// adaptToHistory folds the user's recent performance into the prompt: a
// success-rate hint, up to three previously failed words, and, when an
// embedder is configured, stored words similar to those failures.
func (g *Generator) adaptToHistory(ctx context.Context, userID, userPrompt string) string {
	recent, err := g.store.RecentAttempts(ctx, userID, historyWindow)
	if err != nil || len(recent) == 0 {
		return userPrompt
	}

	correct := 0
	for _, a := range recent {
		if a.IsCorrect {
			correct++
		}
	}
	rate := float64(correct) / float64(len(recent))
	if rate > 0.8 {
		userPrompt += " The student has been doing well (80%+ success rate), so increase difficulty."
	} else if rate < 0.5 {
		userPrompt += " The student has been struggling (below 50% success rate), so keep words easier."
	}

	failed := g.failedWords(ctx, userID)
	if len(failed) == 0 {
		return userPrompt
	}
	userPrompt += fmt.Sprintf(" Include these previously failed words for practice: %s.", strings.Join(failed, ", "))

	if similar := g.similarWords(ctx, failed); len(similar) > 0 {
		userPrompt += fmt.Sprintf(" Also consider these related words the student has seen: %s.", strings.Join(similar, ", "))
	}
	return userPrompt
}

// failedWords returns up to failedWordLimit words the user keeps missing.
func (g *Generator) failedWords(ctx context.Context, userID string) []string {
	perf, err := g.store.Performance(ctx, userID)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range perf {
		if p.Accuracy() < failedAccuracyMax && len(out) < failedWordLimit {
			out = append(out, p.Word)
		}
	}
	return out
}

// similarWords looks up stored words close to the user's failures in
// embedding space. Lookup failures only suppress the suggestion.
func (g *Generator) similarWords(ctx context.Context, failed []string) []string {
	if g.embedder == nil || len(failed) == 0 {
		return nil
	}
	vec, err := g.embedder.Embed(ctx, strings.Join(failed, " "))
	if err != nil {
		return nil
	}
	near, err := g.store.SimilarWords(ctx, vec, similarWordLimit+len(failed))
	if err != nil {
		return nil
	}

	skip := make(map[string]struct{}, len(failed))
	for _, f := range failed {
		skip[strings.ToLower(f)] = struct{}{}
	}
	var out []string
	for _, w := range near {
		if _, ok := skip[strings.ToLower(w.Word)]; ok {
			continue
		}
		if len(out) >= similarWordLimit {
			break
		}
		out = append(out, w.Word)
	}
	return out
}

// embedWords stores an embedding per word. Embedding is best-effort: the
// batch is already persisted, so a failed embedding only skips similarity
// for those words.
func (g *Generator) embedWords(ctx context.Context, words []store.Word) {
	if g.embedder == nil || len(words) == 0 {
		return
	}
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Word
	}
	vecs, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return
	}
	for i, vec := range vecs {
		_ = g.store.SetWordEmbedding(ctx, words[i].ID, vec)
	}
}
