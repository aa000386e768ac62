package selector

import (
	"context"
	"fmt"

	"github.com/example/spellvox/internal/store"
)

// AdjustParams tunes the per-session difficulty nudge.
type AdjustParams struct {
	// MinSessionAttempts is the number of attempts a session must reach
	// before the target difficulty may move.
	MinSessionAttempts int
	// Window is how many recent attempts feed the accuracy computation.
	Window int
	// RaiseAt is the accuracy at or above which difficulty steps up.
	RaiseAt float64
	// LowerAt is the accuracy at or below which difficulty steps down.
	LowerAt float64
}

// DefaultAdjustParams are the standard nudge thresholds.
func DefaultAdjustParams() AdjustParams {
	return AdjustParams{
		MinSessionAttempts: 10,
		Window:             20,
		RaiseAt:            0.8,
		LowerAt:            0.5,
	}
}

// Validate reports the first invalid parameter.
func (p AdjustParams) Validate() error {
	switch {
	case p.MinSessionAttempts < 1:
		return fmt.Errorf("selector: minimum session attempts must be at least 1")
	case p.Window < 1:
		return fmt.Errorf("selector: accuracy window must be at least 1")
	case p.RaiseAt <= p.LowerAt:
		return fmt.Errorf("selector: raise threshold must exceed lower threshold")
	}
	return nil
}

// Adjuster moves a user's target difficulty in response to session results.
type Adjuster struct {
	store  store.Store
	params AdjustParams
}

// NewAdjuster returns an Adjuster. Invalid params are rejected.
func NewAdjuster(st store.Store, params AdjustParams) (*Adjuster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Adjuster{store: st, params: params}, nil
}

// AfterAttempt runs the nudge check once a new attempt has been saved. It
// returns the applied delta: +1 when recent accuracy reached the raise
// threshold, -1 when it fell to the lower threshold, 0 otherwise. Sessions
// that have not reached the minimum attempt count never move the difficulty.
func (a *Adjuster) AfterAttempt(ctx context.Context, userID, sessionID string) (int, error) {
	n, err := a.store.SessionAttemptCount(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("selector: session attempt count: %w", err)
	}
	if n < a.params.MinSessionAttempts {
		return 0, nil
	}

	recent, err := a.store.RecentAttempts(ctx, userID, a.params.Window)
	if err != nil {
		return 0, fmt.Errorf("selector: recent attempts: %w", err)
	}
	if len(recent) == 0 {
		return 0, nil
	}

	correct := 0
	for _, att := range recent {
		if att.IsCorrect {
			correct++
		}
	}
	acc := float64(correct) / float64(len(recent))

	delta := 0
	switch {
	case acc >= a.params.RaiseAt:
		delta = 1
	case acc <= a.params.LowerAt:
		delta = -1
	}
	if delta == 0 {
		return 0, nil
	}

	if _, err := a.store.AdjustDifficulty(ctx, userID, delta); err != nil {
		return 0, fmt.Errorf("selector: adjust difficulty: %w", err)
	}
	return delta, nil
}
