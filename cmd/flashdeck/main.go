// Package main is the entry point for the flashdeck server.
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

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"flashdeck/config"
	"flashdeck/internal/cache"
	"flashdeck/internal/deck"
	"flashdeck/internal/generate"
	"flashdeck/internal/observability"
	"flashdeck/internal/openrouter"
	"flashdeck/internal/review"
	"flashdeck/internal/server"
	"flashdeck/internal/storage"
	"flashdeck/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging: JSON in production, tint for local development
	var handler slog.Handler
	if cfg.Logging.Pretty {
		handler = tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.Kitchen})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting flashdeck",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	// Storage backend and deck store
	ctx := context.Background()
	store, err := storage.New(ctx, storage.Config{
		Type:   cfg.Storage.Type,
		SQLite: storage.SQLiteConfig{Path: cfg.Storage.SQLitePath},
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.Storage.PostgresURL,
			MaxConns: 10,
		},
		MongoDB: storage.MongoDBConfig{
			URL:      cfg.Storage.MongoDBURL,
			Database: cfg.Storage.MongoDBDatabase,
		},
	})
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()
	slog.Info("storage connected", "type", store.Type())

	deckStore, err := deck.NewStore(store)
	if err != nil {
		slog.Error("failed to initialize deck store", "error", err)
		os.Exit(1)
	}

	// Gateway metrics (if enabled)
	var metrics openrouter.MetricsRecorder
	if cfg.Server.MetricsEnabled {
		metrics = observability.NewCompletionMetrics(prometheus.DefaultRegisterer)
		slog.Info("prometheus metrics enabled")
	}

	// Completion gateway client
	client, err := openrouter.New(openrouter.Config{
		APIKey:     cfg.OpenRouter.APIKey,
		BaseURL:    cfg.OpenRouter.BaseURL,
		RefererURL: cfg.OpenRouter.RefererURL,
		Title:      cfg.OpenRouter.Title,
		Metrics:    metrics,
	})
	if err != nil {
		slog.Error("failed to initialize gateway client", "error", err)
		os.Exit(1)
	}

	// Generation cache: Redis when configured, in-memory otherwise
	var generationCache cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{URL: cfg.Redis.URL})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = redisCache.Close()
		}()
		generationCache = redisCache
	} else {
		generationCache = cache.NewMemoryCache(cache.DefaultTTL)
		slog.Info("using in-memory generation cache", "ttl", cache.DefaultTTL)
	}

	// Application services
	decks := deck.NewService(deckStore)
	reviews := review.NewService(deckStore)
	generator := generate.NewService(client, generationCache, cfg.OpenRouter.DefaultModel)

	// Security check: warn if no master key is configured
	if cfg.Server.MasterKey == "" {
		slog.Warn("FLASHDECK_MASTER_KEY not set, API is unauthenticated")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	srv := server.New(server.NewHandler(decks, reviews, generator), &server.Config{
		MasterKey:      cfg.Server.MasterKey,
		MetricsEnabled: cfg.Server.MetricsEnabled,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
