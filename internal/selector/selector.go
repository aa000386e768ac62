// Package selector assembles adaptive practice lists and nudges each user's
// target difficulty as their accuracy moves.
//
// A list blends three pools: fresh words near the user's target difficulty,
// words the user keeps getting wrong (relearn), and words the user has
// mastered and should occasionally confirm (review). Duplicates are removed
// preserving first appearance, and a widened difficulty range tops the list
// up when the pools come back short.
package selector

import (
	"context"
	"fmt"

	"github.com/example/spellvox/internal/store"
)

// Params tunes list assembly. The zero value is not usable; start from
// DefaultParams.
type Params struct {
	// ListSize is the number of words in a finished list.
	ListSize int

	// MainLimit caps the fresh-word pool.
	MainLimit int
	// MainSpread widens the difficulty window around the target for the
	// fresh-word pool (±MainSpread).
	MainSpread int

	// RelearnLimit caps the relearn pool.
	RelearnLimit int
	// RelearnBelow is the accuracy below which a word needs relearning.
	RelearnBelow float64

	// ReviewLimit caps the review pool.
	ReviewLimit int
	// ReviewAbove is the accuracy at or above which a word counts as
	// mastered.
	ReviewAbove float64
	// ReviewMinAttempts is the attempt count required before a word can be
	// considered mastered.
	ReviewMinAttempts int

	// TopUpSpread widens the difficulty window (±TopUpSpread) for filling
	// the list when the pools come back short.
	TopUpSpread int
}

// DefaultParams are the standard pool sizes and thresholds.
func DefaultParams() Params {
	return Params{
		ListSize:          10,
		MainLimit:         6,
		MainSpread:        1,
		RelearnLimit:      2,
		RelearnBelow:      0.6,
		ReviewLimit:       2,
		ReviewAbove:       0.8,
		ReviewMinAttempts: 3,
		TopUpSpread:       2,
	}
}

// Validate reports the first invalid parameter.
func (p Params) Validate() error {
	switch {
	case p.ListSize <= 0:
		return fmt.Errorf("selector: list size must be positive")
	case p.MainLimit < 0 || p.RelearnLimit < 0 || p.ReviewLimit < 0:
		return fmt.Errorf("selector: pool limits must not be negative")
	case p.MainSpread < 0 || p.TopUpSpread < p.MainSpread:
		return fmt.Errorf("selector: top-up spread must be at least the main spread")
	case p.RelearnBelow < 0 || p.RelearnBelow > 1:
		return fmt.Errorf("selector: relearn threshold must be in [0, 1]")
	case p.ReviewAbove < 0 || p.ReviewAbove > 1:
		return fmt.Errorf("selector: review threshold must be in [0, 1]")
	case p.ReviewMinAttempts < 1:
		return fmt.Errorf("selector: review minimum attempts must be at least 1")
	}
	return nil
}

// Selector builds practice lists from a store.
type Selector struct {
	store  store.Store
	params Params
}

// New returns a Selector. Invalid params are rejected.
func New(st store.Store, params Params) (*Selector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Selector{store: st, params: params}, nil
}

// NextWords assembles the next practice list for userID. The user is created
// with default settings on first sight. The result may be shorter than the
// configured list size when the store simply has too few words.
func (s *Selector) NextWords(ctx context.Context, userID string) ([]store.Word, error) {
	if err := s.store.EnsureUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("selector: ensure user: %w", err)
	}
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("selector: settings: %w", err)
	}
	target := settings.TargetDifficulty

	main, err := s.store.SampleWords(ctx,
		clamp(target-s.params.MainSpread), clamp(target+s.params.MainSpread), s.params.MainLimit)
	if err != nil {
		return nil, fmt.Errorf("selector: main pool: %w", err)
	}

	perf, err := s.store.Performance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("selector: performance: %w", err)
	}
	relearn, review := s.splitPerformance(perf)

	list := make([]store.Word, 0, s.params.ListSize)
	seen := make(map[string]struct{}, s.params.ListSize)
	add := func(words []store.Word) {
		for _, w := range words {
			if len(list) >= s.params.ListSize {
				return
			}
			if _, ok := seen[w.ID]; ok {
				continue
			}
			seen[w.ID] = struct{}{}
			list = append(list, w)
		}
	}

	add(main)
	add(relearn)
	add(review)

	if len(list) < s.params.ListSize {
		extra, err := s.store.SampleWords(ctx,
			clamp(target-s.params.TopUpSpread), clamp(target+s.params.TopUpSpread), s.params.ListSize)
		if err != nil {
			return nil, fmt.Errorf("selector: top-up pool: %w", err)
		}
		add(extra)
	}

	return list, nil
}

// splitPerformance carves the relearn and review pools out of the user's
// per-word tallies. The tallies arrive most recently attempted first; both
// pools prefer the words that have gone longest without practice, so the
// slice is walked from the oldest end.
func (s *Selector) splitPerformance(perf []store.WordPerformance) (relearn, review []store.Word) {
	for i := len(perf) - 1; i >= 0; i-- {
		p := perf[i]
		acc := p.Accuracy()
		switch {
		case acc < s.params.RelearnBelow && len(relearn) < s.params.RelearnLimit:
			relearn = append(relearn, perfWord(p))
		case acc >= s.params.ReviewAbove && p.Attempts >= s.params.ReviewMinAttempts && len(review) < s.params.ReviewLimit:
			review = append(review, perfWord(p))
		}
	}
	return relearn, review
}

func perfWord(p store.WordPerformance) store.Word {
	return store.Word{ID: p.WordID, Word: p.Word, Difficulty: p.Difficulty}
}

func clamp(d int) int {
	if d < store.MinDifficulty {
		return store.MinDifficulty
	}
	if d > store.MaxDifficulty {
		return store.MaxDifficulty
	}
	return d
}
