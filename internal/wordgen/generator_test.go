package wordgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/spellvox/internal/store"
	embmock "github.com/example/spellvox/pkg/provider/embeddings/mock"
	llmmock "github.com/example/spellvox/pkg/provider/llm/mock"
)

const validResponse = `{
  "words": [
    {"word": "Colour", "difficulty": 4, "contextSentence": "My favourite colour is blue.", "phoneticPattern": "ou"},
    {"word": "theatre", "difficulty": 5, "contextSentence": "We went to the theatre on Saturday."}
  ]
}`

func TestGeneratePersistsValidatedWords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := store.NewMemStore()
	provider := &llmmock.Provider{Content: validResponse}

	g := New(provider, m)
	res, err := g.Generate(ctx, Request{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Words) != 2 {
		t.Fatalf("got %d words, want 2", len(res.Words))
	}
	if res.Words[0].Word != "colour" {
		t.Errorf("word = %q, want lowercased %q", res.Words[0].Word, "colour")
	}
	if res.Words[0].ID == "" {
		t.Error("expected persisted word to carry an id")
	}
	if res.SessionPrompt == "" {
		t.Error("expected session prompt to be reported")
	}

	if _, err := m.GetWord(ctx, res.Words[1].ID); err != nil {
		t.Errorf("generated word not in store: %v", err)
	}

	if len(provider.Calls) != 1 || !provider.Calls[0].Req.JSONMode {
		t.Error("expected a single JSON-mode completion")
	}
}

func TestGenerateRejectsInvalidPayloadWithoutWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "ten great words coming up"},
		{name: "no words", content: `{"words": []}`},
		{name: "empty word", content: `{"words": [{"word": " ", "difficulty": 3, "contextSentence": "x"}]}`},
		{name: "difficulty out of range", content: `{"words": [{"word": "cat", "difficulty": 11, "contextSentence": "x"}]}`},
		{name: "missing context", content: `{"words": [{"word": "cat", "difficulty": 3, "contextSentence": ""}]}`},
		{
			name: "one bad word poisons the batch",
			content: `{"words": [
				{"word": "cat", "difficulty": 2, "contextSentence": "The cat sat."},
				{"word": "dog", "difficulty": 0, "contextSentence": "The dog ran."}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := store.NewMemStore()
			g := New(&llmmock.Provider{Content: tt.content}, m)

			if _, err := g.Generate(ctx, Request{}); err == nil {
				t.Fatal("expected validation error")
			}
			words, err := m.SampleWords(ctx, store.MinDifficulty, store.MaxDifficulty, 100)
			if err != nil {
				t.Fatal(err)
			}
			if len(words) != 0 {
				t.Errorf("store has %d words after rejected batch, want 0", len(words))
			}
		})
	}
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	t.Parallel()

	g := New(&llmmock.Provider{Err: errors.New("backend down")}, store.NewMemStore())
	if _, err := g.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestGenerateHistoryPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := store.NewMemStore()

	// One word the user always misses.
	w, err := m.UpsertWord(ctx, store.Word{Word: "necessary", Difficulty: 7})
	if err != nil {
		t.Fatal(err)
	}
	sessionID, err := m.CreateSession(ctx, store.DefaultUserID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := m.SaveAttempt(ctx, store.Attempt{
			SessionID: sessionID,
			UserID:    store.DefaultUserID,
			WordID:    w.ID,
			IsCorrect: false,
		}); err != nil {
			t.Fatal(err)
		}
	}

	provider := &llmmock.Provider{Content: validResponse}
	g := New(provider, m)
	res, err := g.Generate(ctx, Request{UseHistory: true})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(res.SessionPrompt, "struggling") {
		t.Errorf("prompt missing struggling hint: %q", res.SessionPrompt)
	}
	if !strings.Contains(res.SessionPrompt, "necessary") {
		t.Errorf("prompt missing failed word: %q", res.SessionPrompt)
	}
	if provider.Calls[0].Req.Prompt != res.SessionPrompt {
		t.Error("reported session prompt differs from the prompt sent to the model")
	}
}

func TestGenerateStoresEmbeddings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := store.NewMemStore()
	emb := &embmock.Provider{Dim: 4}

	g := New(&llmmock.Provider{Content: validResponse}, m, WithEmbedder(emb))
	res, err := g.Generate(ctx, Request{})
	if err != nil {
		t.Fatal(err)
	}

	vec, err := emb.Embed(ctx, res.Words[0].Word)
	if err != nil {
		t.Fatal(err)
	}
	similar, err := m.SimilarWords(ctx, vec, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(similar) != 1 || similar[0].Word != res.Words[0].Word {
		t.Errorf("embedding lookup returned %v, want the generated word itself", similar)
	}
}

func TestGenerateIncludeWordsInPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	provider := &llmmock.Provider{Content: validResponse}

	g := New(provider, store.NewMemStore())
	_, err := g.Generate(ctx, Request{IncludeWords: []string{"necessary", "rhythm"}})
	if err != nil {
		t.Fatal(err)
	}

	prompt := provider.Calls[0].Req.Prompt
	if !strings.Contains(prompt, "necessary, rhythm") {
		t.Errorf("prompt %q does not ask for the requested words", prompt)
	}
}
