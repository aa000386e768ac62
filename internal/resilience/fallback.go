package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no backend in a [FallbackGroup] produced a
// result: each one either failed or was skipped because its breaker is open.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the circuit breaker each backend in a
// [FallbackGroup] gets. The same tuning applies to every backend; only the
// breaker name differs.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// backend is one provider in a group together with the breaker guarding it.
type backend[T any] struct {
	name     string
	provider T
	breaker  *CircuitBreaker
}

// FallbackGroup holds a primary provider and zero or more fallbacks of the
// same type, each behind its own [CircuitBreaker]. Calls go to the first
// backend whose breaker admits them; a failure moves on to the next.
//
// A FallbackGroup is safe for concurrent use once assembled. AddFallback is
// meant for wiring at startup and must not race with Execute.
type FallbackGroup[T any] struct {
	backends []backend[T]
	cfg      FallbackConfig
}

// NewFallbackGroup creates a group whose first backend is primary.
// Register secondaries with [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a secondary backend. Backends are consulted in the
// order they were added, primary first.
func (fg *FallbackGroup[T]) AddFallback(name string, provider T) {
	fg.add(name, provider)
}

func (fg *FallbackGroup[T]) add(name string, provider T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.backends = append(fg.backends, backend[T]{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cbCfg),
	})
}

// Execute runs fn against each backend in order until one succeeds. Backends
// with an open breaker are skipped without being called. When every backend
// fails the last error is wrapped in [ErrAllFailed].
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(p T) (struct{}, error) {
		return struct{}{}, fn(p)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a value.
// It is a package-level function because methods cannot introduce the result
// type parameter.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.backends {
		b := &fg.backends[i]
		var result R
		err := b.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(b.provider)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("backend breaker open, skipping", "provider", b.name)
			continue
		}
		slog.Warn("backend failed, trying next", "provider", b.name, "error", err)
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
