// Command qirat is the main entry point for the Qirat reading assessment server.
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

	"github.com/qirat-ai/qirat/internal/config"
	"github.com/qirat-ai/qirat/internal/observe"
	"github.com/qirat-ai/qirat/internal/reading"
	"github.com/qirat-ai/qirat/internal/resilience"
	"github.com/qirat-ai/qirat/internal/server"
	"github.com/qirat-ai/qirat/internal/session"
	"github.com/qirat-ai/qirat/internal/store"
	memorystore "github.com/qirat-ai/qirat/internal/store/memory"
	postgresstore "github.com/qirat-ai/qirat/internal/store/postgres"
	redisstore "github.com/qirat-ai/qirat/internal/store/redis"
	"github.com/qirat-ai/qirat/pkg/speech"
	speechazure "github.com/qirat-ai/qirat/pkg/speech/azure"
	speechmock "github.com/qirat-ai/qirat/pkg/speech/mock"
	speechwhisper "github.com/qirat-ai/qirat/pkg/speech/whisper"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

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
			fmt.Fprintf(os.Stderr, "qirat: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "qirat: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("qirat starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "qirat",
		ServiceVersion: version,
	})
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

	// ── Registry + backends ───────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	st, err := reg.CreateStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to create storage backend", "backend", cfg.Storage.Backend, "err", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("store close error", "err", err)
		}
	}()
	slog.Info("storage backend ready", "backend", backendName(cfg.Storage.Backend))

	var provider speech.Provider
	if cfg.Speech.Name != "" {
		provider, err = reg.CreateSpeech(cfg.Speech)
		if err != nil {
			slog.Error("failed to create speech provider", "name", cfg.Speech.Name, "err", err)
			return 1
		}
		slog.Info("speech provider created", "name", provider.Name())

		if len(cfg.Speech.Fallbacks) > 0 {
			group := resilience.NewSpeechFallback(provider, resilience.FallbackConfig{})
			for _, entry := range cfg.Speech.Fallbacks {
				fb, err := reg.CreateSpeech(entry)
				if err != nil {
					slog.Error("failed to create fallback speech provider", "name", entry.Name, "err", err)
					return 1
				}
				group.AddFallback(fb)
				slog.Info("speech fallback registered", "name", fb.Name())
			}
			provider = group
		}
	}

	// ── Engine + sessions ─────────────────────────────────────────────────────
	var engineOpts []reading.Option
	if cfg.Reading.ConfidenceThreshold > 0 {
		engineOpts = append(engineOpts, reading.WithConfidenceThreshold(cfg.Reading.ConfidenceThreshold))
	}
	if cfg.Reading.SimilarityThreshold > 0 {
		engineOpts = append(engineOpts, reading.WithSimilarityThreshold(cfg.Reading.SimilarityThreshold))
	}
	engineOpts = append(engineOpts, reading.WithStrictMode(cfg.Reading.StrictMode))
	engine := reading.NewEngine(engineOpts...)

	var sessionOpts []session.Option
	if ttl := cfg.Session.TTL.Std(); ttl > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(ttl))
	}
	if cfg.Session.MaxSentences > 0 {
		sessionOpts = append(sessionOpts, session.WithMaxSentences(cfg.Session.MaxSentences))
	}
	sessions := session.NewManager(st, engine, sessionOpts...)

	// ── HTTP server ───────────────────────────────────────────────────────────
	serverOpts := []server.Option{
		server.WithVersion(version),
		server.WithDefaultLanguage(cfg.Reading.DefaultLanguage),
	}
	if provider != nil {
		serverOpts = append(serverOpts, server.WithSpeech(provider))
	}
	api := server.New(engine, sessions, st, serverOpts...)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, listenAddr)

	errCh := make(chan error, 1)
	go func() {
		if cfg.Server.TLS != nil {
			errCh <- srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	slog.Info("server ready, press Ctrl+C to shut down", "addr", listenAddr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Factory wiring ────────────────────────────────────────────────────────────

// registerBuiltins wires the speech provider and storage backend factories
// that ship with qirat into reg.
func registerBuiltins(reg *config.Registry) {
	// ── Speech ────────────────────────────────────────────────────────────────

	reg.RegisterSpeech("mock", func(entry config.ProviderEntry) (speech.Provider, error) {
		return &speechmock.Provider{}, nil
	})

	reg.RegisterSpeech("whisper", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []speechwhisper.Option
		if entry.BaseURL != "" {
			opts = append(opts, speechwhisper.WithBaseURL(entry.BaseURL))
		}
		return speechwhisper.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSpeech("azure", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []speechazure.Option
		if entry.BaseURL != "" {
			opts = append(opts, speechazure.WithEndpoint(entry.BaseURL))
		}
		return speechazure.New(entry.APIKey, entry.Region, opts...)
	})

	// ── Storage ───────────────────────────────────────────────────────────────

	reg.RegisterStore(config.StorageMemory, func(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
		return memorystore.New(), nil
	})

	reg.RegisterStore(config.StorageRedis, func(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
		var opts []redisstore.Option
		if cfg.Redis.Password != "" {
			opts = append(opts, redisstore.WithPassword(cfg.Redis.Password))
		}
		if cfg.Redis.DB != 0 {
			opts = append(opts, redisstore.WithDB(cfg.Redis.DB))
		}
		return redisstore.New(ctx, cfg.Redis.Addr, opts...)
	})

	reg.RegisterStore(config.StoragePostgres, func(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
		return postgresstore.New(ctx, cfg.PostgresDSN)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, listenAddr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           Qirat — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Listen addr", listenAddr)
	printField("Storage", backendName(cfg.Storage.Backend))
	if cfg.Speech.Name != "" {
		value := cfg.Speech.Name
		if cfg.Speech.Model != "" {
			value += " / " + cfg.Speech.Model
		}
		printField("Speech", value)
	} else {
		printField("Speech", "(transcript only)")
	}
	if cfg.Reading.DefaultLanguage != "" {
		printField("Language", string(cfg.Reading.DefaultLanguage))
	} else {
		printField("Language", "auto-detect")
	}
	if cfg.Reading.StrictMode {
		printField("Strict mode", "on")
	} else {
		printField("Strict mode", "off")
	}
	if cfg.Server.TLS != nil {
		printField("TLS", "enabled")
	} else {
		printField("TLS", "disabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

func backendName(b config.StorageBackend) string {
	if b == "" {
		return string(config.StorageMemory)
	}
	return string(b)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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
