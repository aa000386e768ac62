// Command spellvox is the spelling practice backend server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/example/spellvox/internal/api"
	"github.com/example/spellvox/internal/config"
	"github.com/example/spellvox/internal/health"
	"github.com/example/spellvox/internal/observe"
	"github.com/example/spellvox/internal/resilience"
	"github.com/example/spellvox/internal/selector"
	"github.com/example/spellvox/internal/spelling"
	"github.com/example/spellvox/internal/store"
	"github.com/example/spellvox/internal/store/postgres"
	"github.com/example/spellvox/internal/wordgen"
	"github.com/example/spellvox/pkg/provider/embeddings"
	oaembed "github.com/example/spellvox/pkg/provider/embeddings/openai"
	"github.com/example/spellvox/pkg/provider/llm"
	"github.com/example/spellvox/pkg/provider/llm/anyllm"
	oallm "github.com/example/spellvox/pkg/provider/llm/openai"
	"github.com/example/spellvox/pkg/provider/stt"
	oastt "github.com/example/spellvox/pkg/provider/stt/openai"
	"github.com/example/spellvox/pkg/provider/stt/whisper"
	"github.com/example/spellvox/pkg/provider/tts"
	oatts "github.com/example/spellvox/pkg/provider/tts/openai"
)

const defaultEmbeddingDimensions = 1536

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "spellvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "spellvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("spellvox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "spellvox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	st, checkers, err := buildStore(ctx, cfg, providers.Embeddings)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		return 1
	}
	defer st.Close()

	// ── Subsystems ────────────────────────────────────────────────────────────
	sel, err := selector.New(st, selectorParams(cfg.Selector))
	if err != nil {
		slog.Error("invalid selector parameters", "err", err)
		return 1
	}
	adj, err := selector.NewAdjuster(st, adjustParams(cfg.Selector))
	if err != nil {
		slog.Error("invalid adjuster parameters", "err", err)
		return 1
	}

	var checker spelling.Checker = spelling.RuleChecker{}
	if cfg.Checker.Strategy == config.CheckerModel {
		checker = spelling.NewModelChecker(providers.LLM)
		slog.Info("using model-phrased feedback")
	}

	var generator *wordgen.Generator
	if providers.LLM != nil {
		var genOpts []wordgen.Option
		if providers.Embeddings != nil {
			genOpts = append(genOpts, wordgen.WithEmbedder(providers.Embeddings))
		}
		generator = wordgen.New(providers.LLM, st, genOpts...)
	}

	printStartupSummary(cfg)

	server, err := api.New(api.Config{
		Store:     st,
		Checker:   checker,
		Selector:  sel,
		Adjuster:  adj,
		Generator: generator,
		STT:       providers.STT,
		TTS:       providers.TTS,
		Health:    health.New(checkers...),
	})
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerset holds one interface value per provider slot. Nil means the
// provider is not configured; endpoints that need it return 503.
type providerset struct {
	STT        stt.Provider
	TTS        tts.Provider
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

func buildProviders(cfg *config.Config) (*providerset, error) {
	ps := &providerset{}
	var err error

	if ps.STT, err = buildSTT(cfg.Providers.STT); err != nil {
		return nil, fmt.Errorf("stt provider: %w", err)
	}
	if ps.TTS, err = buildTTS(cfg.Providers.TTS); err != nil {
		return nil, fmt.Errorf("tts provider: %w", err)
	}
	if ps.LLM, err = buildLLM(cfg.Providers.LLM); err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	if ps.Embeddings, err = buildEmbeddings(cfg.Providers.Embeddings); err != nil {
		return nil, fmt.Errorf("embeddings provider: %w", err)
	}

	// Every configured provider reports its request latency and outcome.
	m := observe.DefaultMetrics()
	if ps.STT != nil {
		ps.STT = observe.InstrumentSTT(ps.STT, cfg.Providers.STT.Name, m)
	}
	if ps.TTS != nil {
		ps.TTS = observe.InstrumentTTS(ps.TTS, cfg.Providers.TTS.Name, m)
	}
	if ps.LLM != nil {
		ps.LLM = observe.InstrumentLLM(ps.LLM, cfg.Providers.LLM.Name, m)
	}
	if ps.Embeddings != nil {
		ps.Embeddings = observe.InstrumentEmbeddings(ps.Embeddings, cfg.Providers.Embeddings.Name, m)
	}
	return ps, nil
}

// buildSTT constructs the speech-to-text chain. When the entry declares a
// fallback, the secondary backend sits behind a circuit breaker and takes
// over while the primary is tripped.
func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	primary, err := newSTT(entry)
	if err != nil {
		return nil, err
	}
	if entry.Fallback == nil {
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
		return primary, nil
	}

	secondary, err := newSTT(*entry.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	chain := resilience.NewSTTFallback(primary, entry.Name, resilience.FallbackConfig{})
	chain.AddFallback(entry.Fallback.Name, secondary)
	slog.Info("provider created", "kind", "stt", "name", entry.Name, "fallback", entry.Fallback.Name)
	return chain, nil
}

func newSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oastt.WithTimeout(entry.Timeout))
		}
		return oastt.New(entry.APIKey, opts...)

	case "whisper":
		return newWhisper(entry)

	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func newWhisper(entry config.ProviderEntry) (*whisper.Provider, error) {
	var opts []whisper.Option
	if entry.Language != "" {
		opts = append(opts, whisper.WithLanguage(entry.Language))
	}
	return whisper.New(entry.ModelPath, opts...)
}

func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil

	case "openai":
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oatts.WithModel(entry.Model))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oatts.WithTimeout(entry.Timeout))
		}
		p, err := oatts.New(entry.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		slog.Info("provider created", "kind", "tts", "name", "openai")
		return p, nil

	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

// buildLLM constructs the completion chain, with the same optional breaker
// fallback shape as buildSTT. A local backend like ollama makes a practical
// secondary when the hosted API misbehaves.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	primary, err := newLLM(entry)
	if err != nil {
		return nil, err
	}
	if entry.Fallback == nil {
		slog.Info("provider created", "kind", "llm", "name", entry.Name)
		return primary, nil
	}

	secondary, err := newLLM(*entry.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	chain := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	chain.AddFallback(entry.Fallback.Name, secondary)
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "fallback", entry.Fallback.Name)
	return chain, nil
}

func newLLM(entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oallm.WithModel(entry.Model))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oallm.WithTimeout(entry.Timeout))
		}
		return oallm.New(entry.APIKey, opts...)

	default:
		// Everything else goes through any-llm, which routes by name.
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	}
}

func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil

	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oaembed.WithTimeout(entry.Timeout))
		}
		p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		slog.Info("provider created", "kind", "embeddings", "name", "openai")
		return p, nil

	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}

// ── Store ─────────────────────────────────────────────────────────────────────

// buildStore opens the configured store and returns any readiness checkers
// it contributes. An empty DSN runs on the in-memory store, which is useful
// for local development but loses everything on restart.
func buildStore(ctx context.Context, cfg *config.Config, embedder embeddings.Provider) (store.Store, []health.Checker, error) {
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("no database configured — using in-memory store")
		return store.NewMemStore(), nil, nil
	}

	dims := cfg.Database.EmbeddingDimensions
	if dims == 0 {
		if embedder != nil {
			dims = embedder.Dimensions()
		} else {
			dims = defaultEmbeddingDimensions
		}
	}

	pg, err := postgres.New(ctx, cfg.Database.PostgresDSN, dims)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to postgres", "embedding_dimensions", dims)

	checkers := []health.Checker{{Name: "database", Check: pg.Ping}}
	return pg, checkers, nil
}

// ── Tuning parameters ─────────────────────────────────────────────────────────

func selectorParams(sc config.SelectorConfig) selector.Params {
	p := selector.DefaultParams()
	if sc.ListSize > 0 {
		p.ListSize = sc.ListSize
	}
	if sc.MainLimit > 0 {
		p.MainLimit = sc.MainLimit
	}
	if sc.MainSpread > 0 {
		p.MainSpread = sc.MainSpread
	}
	if sc.RelearnLimit > 0 {
		p.RelearnLimit = sc.RelearnLimit
	}
	if sc.RelearnBelow > 0 {
		p.RelearnBelow = sc.RelearnBelow
	}
	if sc.ReviewLimit > 0 {
		p.ReviewLimit = sc.ReviewLimit
	}
	if sc.ReviewAbove > 0 {
		p.ReviewAbove = sc.ReviewAbove
	}
	if sc.ReviewMinAttempts > 0 {
		p.ReviewMinAttempts = sc.ReviewMinAttempts
	}
	if sc.TopUpSpread > 0 {
		p.TopUpSpread = sc.TopUpSpread
	}
	return p
}

func adjustParams(sc config.SelectorConfig) selector.AdjustParams {
	p := selector.DefaultAdjustParams()
	if sc.MinSessionAttempts > 0 {
		p.MinSessionAttempts = sc.MinSessionAttempts
	}
	if sc.Window > 0 {
		p.Window = sc.Window
	}
	if sc.RaiseAt > 0 {
		p.RaiseAt = sc.RaiseAt
	}
	if sc.LowerAt > 0 {
		p.LowerAt = sc.LowerAt
	}
	return p
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Spellvox — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Database.PostgresDSN != "" {
		fmt.Printf("║  Store           : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Store           : %-19s ║\n", "in-memory")
	}
	checker := cfg.Checker.Strategy
	if checker == "" {
		checker = config.CheckerRules
	}
	fmt.Printf("║  Checker         : %-19s ║\n", checker)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
