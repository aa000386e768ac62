package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"openai", "whisper"},
	"tts":        {"openai"},
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Database
	if cfg.Database.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("database.embedding_dimensions must not be negative"))
	}
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; attempts and words will be kept in memory only")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider-specific requirements
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.ModelPath == "" {
		errs = append(errs, fmt.Errorf("providers.stt.model_path is required when providers.stt.name is whisper"))
	}
	for kind, entry := range map[string]ProviderEntry{
		"stt":        cfg.Providers.STT,
		"tts":        cfg.Providers.TTS,
		"llm":        cfg.Providers.LLM,
		"embeddings": cfg.Providers.Embeddings,
	} {
		if entry.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must not be negative", kind))
		}
		if entry.Name == "openai" && entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.%s.api_key is required when providers.%s.name is openai", kind, kind))
		}
	}

	// Fallback chains
	if cfg.Providers.TTS.Fallback != nil {
		errs = append(errs, fmt.Errorf("providers.tts.fallback is not supported"))
	}
	if cfg.Providers.Embeddings.Fallback != nil {
		errs = append(errs, fmt.Errorf("providers.embeddings.fallback is not supported"))
	}
	for kind, fb := range map[string]*ProviderEntry{
		"stt": cfg.Providers.STT.Fallback,
		"llm": cfg.Providers.LLM.Fallback,
	} {
		if fb == nil {
			continue
		}
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallback.name is required", kind))
			continue
		}
		validateProviderName(kind, fb.Name)
		if fb.Name == "openai" && fb.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallback.api_key is required when providers.%s.fallback.name is openai", kind, kind))
		}
		if fb.Name == "whisper" && fb.ModelPath == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallback.model_path is required when providers.%s.fallback.name is whisper", kind, kind))
		}
		if fb.Fallback != nil {
			errs = append(errs, fmt.Errorf("providers.%s.fallback must not declare a further fallback", kind))
		}
	}

	// Checker
	if cfg.Checker.Strategy != "" && !cfg.Checker.Strategy.IsValid() {
		errs = append(errs, fmt.Errorf("checker.strategy %q is invalid; valid values: rules, model", cfg.Checker.Strategy))
	}
	if cfg.Checker.Strategy == CheckerModel && cfg.Providers.LLM.Name == "" {
		errs = append(errs, fmt.Errorf("checker.strategy %q requires an LLM provider but providers.llm is not configured", CheckerModel))
	}

	// Word generation availability
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; word generation will be unavailable")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Database.PostgresDSN == "" {
		slog.Warn("providers.embeddings is configured without a database; similar-word lookups stay in memory")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
