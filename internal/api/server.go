// Package api exposes the spelling practice backend over HTTP.
//
// The surface is a JSON API served from a stdlib mux with Go 1.22 method
// patterns, wrapped in the observe middleware for metrics, trace spans, and
// correlation ids. Handlers are stateless; all per-user state lives in the
// store.
//
// Provider slots may be nil when the deployment has no backend for them
// (e.g. no TTS key configured). Endpoints that need an absent provider
// return 503 rather than failing at startup.
package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/spellvox/internal/health"
	"github.com/example/spellvox/internal/observe"
	"github.com/example/spellvox/internal/selector"
	"github.com/example/spellvox/internal/spelling"
	"github.com/example/spellvox/internal/store"
	"github.com/example/spellvox/internal/wordgen"
	"github.com/example/spellvox/pkg/provider/stt"
	"github.com/example/spellvox/pkg/provider/tts"
)

// Config holds the dependencies of a [Server]. Store, Checker, and Selector
// are required; the rest are optional.
type Config struct {
	Store    store.Store
	Checker  spelling.Checker
	Selector *selector.Selector

	// Adjuster runs the difficulty adjustment policy after each saved
	// attempt. Nil disables adjustment.
	Adjuster *selector.Adjuster

	// Generator backs POST /api/generate-words. Nil returns 503.
	Generator *wordgen.Generator

	// STT backs POST /api/speech-to-text and the live stream. Nil returns 503.
	STT stt.Provider

	// TTS backs POST /api/text-to-speech. Nil returns 503.
	TTS tts.Provider

	// Health serves /healthz and /readyz. Nil creates a checkerless handler.
	Health *health.Handler

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server routes API requests to the practice subsystems.
type Server struct {
	cfg     Config
	metrics *observe.Metrics
}

// New validates cfg and returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if cfg.Checker == nil {
		return nil, fmt.Errorf("api: checker is required")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("api: selector is required")
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg, metrics: m}, nil
}

// Handler returns the full route table wrapped in the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/check-spelling", s.handleCheckSpelling)
	mux.HandleFunc("GET /api/next-words", s.handleNextWords)
	mux.HandleFunc("POST /api/save-attempt", s.handleSaveAttempt)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/speech-to-text", s.handleSpeechToText)
	mux.HandleFunc("POST /api/text-to-speech", s.handleTextToSpeech)
	mux.HandleFunc("POST /api/generate-words", s.handleGenerateWords)
	mux.HandleFunc("GET /api/live", s.handleLive)

	s.cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
