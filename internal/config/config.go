// Package config provides the configuration schema and loader for the
// spellvox server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CheckerStrategy selects how spelling feedback is produced.
type CheckerStrategy string

const (
	// CheckerRules grades with deterministic positional feedback.
	CheckerRules CheckerStrategy = "rules"

	// CheckerModel grades deterministically but phrases feedback with the
	// configured LLM.
	CheckerModel CheckerStrategy = "model"
)

// IsValid reports whether s is a recognised checker strategy.
func (s CheckerStrategy) IsValid() bool {
	return s == CheckerRules || s == CheckerModel
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Checker   CheckerConfig   `yaml:"checker"`
	Selector  SelectorConfig  `yaml:"selector"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DatabaseConfig holds persistence settings. An empty DSN runs the server on
// the in-memory store.
type DatabaseConfig struct {
	// PostgresDSN is the connection string for the PostgreSQL database.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions sets the vector column width. Must match the
	// configured embeddings model. Defaults to 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// ProvidersConfig declares which provider implementation to use for each
// concern.
type ProvidersConfig struct {
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	LLM        ProviderEntry `yaml:"llm"`
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// ModelPath points at a local model file for on-device providers
	// (whisper).
	ModelPath string `yaml:"model_path"`

	// Language hints the provider's language handling (STT).
	Language string `yaml:"language"`

	// Timeout bounds each provider request. Zero leaves requests bounded
	// only by the caller's context.
	Timeout time.Duration `yaml:"timeout"`

	// Fallback names a secondary backend to switch to when the primary
	// trips its circuit breaker. Supported for stt and llm.
	Fallback *ProviderEntry `yaml:"fallback"`
}

// CheckerConfig selects the feedback strategy.
type CheckerConfig struct {
	// Strategy is "rules" (default) or "model".
	Strategy CheckerStrategy `yaml:"strategy"`
}

// SelectorConfig tunes practice-list assembly and the difficulty nudge.
// Zero values fall back to the selector defaults.
type SelectorConfig struct {
	ListSize          int     `yaml:"list_size"`
	MainLimit         int     `yaml:"main_limit"`
	MainSpread        int     `yaml:"main_spread"`
	RelearnLimit      int     `yaml:"relearn_limit"`
	RelearnBelow      float64 `yaml:"relearn_below"`
	ReviewLimit       int     `yaml:"review_limit"`
	ReviewAbove       float64 `yaml:"review_above"`
	ReviewMinAttempts int     `yaml:"review_min_attempts"`
	TopUpSpread       int     `yaml:"top_up_spread"`

	MinSessionAttempts int     `yaml:"min_session_attempts"`
	Window             int     `yaml:"window"`
	RaiseAt            float64 `yaml:"raise_at"`
	LowerAt            float64 `yaml:"lower_at"`
}
