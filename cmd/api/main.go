// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/config"
	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/handler"
	"github.com/talentbridge/messaging/internal/moderation"
	natsclient "github.com/talentbridge/messaging/internal/nats"
	"github.com/talentbridge/messaging/internal/redisfeed"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/internal/store"
	"github.com/talentbridge/messaging/internal/store/memory"
	"github.com/talentbridge/messaging/internal/store/postgres"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting messaging server",
		zap.String("store", cfg.StoreBackend),
		zap.String("feed", cfg.FeedBackend),
	)

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "messaging", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	checks := make(map[string]handler.ReadinessCheck)

	bus, closeFeed, err := openFeed(ctx, cfg, log, checks)
	if err != nil {
		log.Fatal("failed to open change feed", zap.Error(err))
	}
	defer closeFeed()

	deps, closeStore, err := openStores(ctx, cfg, bus, checks)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	deps.Feed = bus
	deps.Classifier = newClassifier(cfg, log)

	messenger := service.NewMessenger(deps, service.Config{
		StoreTimeout:           cfg.StoreTimeout,
		Debounce:               cfg.ReconcileDebounce,
		ResubscribeMaxInterval: cfg.ResubscribeMaxInterval,
	}, log.Named("messenger"))

	router := handler.NewRouter(handler.RouterConfig{
		Messenger:           messenger,
		Logger:              log,
		JWTSecret:           cfg.JWTSecret,
		CORSOrigins:         cfg.CORSOrigins,
		RateLimitRequests:   cfg.RateLimitRequests,
		RateLimitWindow:     cfg.RateLimitWindow,
		IPRateLimitRequests: cfg.IPRateLimitRequests,
		IPRateLimitWindow:   cfg.IPRateLimitWindow,
		ReadinessChecks:     checks,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// openFeed connects the configured change feed backend.
func openFeed(ctx context.Context, cfg *config.Config, log *logger.Logger, checks map[string]handler.ReadinessCheck) (feed.Bus, func(), error) {
	switch cfg.FeedBackend {
	case config.FeedNATS:
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to NATS: %w", err)
		}

		bus := natsclient.NewFeedBus(client, log.Named("feed"))
		if err := bus.EnsureStream(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ensure stream: %w", err)
		}

		checks["nats"] = client.Ready
		return bus, client.Close, nil

	case config.FeedRedis:
		rdb, err := redisfeed.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}

		bus := redisfeed.NewBus(rdb, log.Named("feed"))
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
		return bus, func() { _ = bus.Close() }, nil

	default:
		hub := feed.NewHub()
		return hub, func() { _ = hub.Close() }, nil
	}
}

// openStores opens the authoritative store. Writes announce themselves on
// publisher.
func openStores(ctx context.Context, cfg *config.Config, publisher feed.Publisher, checks map[string]handler.ReadinessCheck) (service.Deps, func(), error) {
	var deps service.Deps

	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			return deps, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return deps, nil, err
		}

		stores := postgres.NewStores(db, publisher)
		deps = depsFrom(stores.Messages, stores.Notifications, stores.Directory, stores.Directory)
		checks["postgres"] = db.PingContext
		return deps, func() { _ = db.Close() }, nil

	default:
		dir := memory.NewDirectory()
		deps = depsFrom(memory.NewMessageStore(publisher), memory.NewNotificationStore(publisher), dir, dir)
		return deps, func() {}, nil
	}
}

func depsFrom(m store.MessageStore, n store.NotificationStore, p store.ProfileStore, a store.ApplicationStore) service.Deps {
	return service.Deps{
		Messages:      m,
		Notifications: n,
		Profiles:      p,
		Applications:  a,
	}
}

// newClassifier returns the optional moderation classifier, or nil when no
// provider is configured.
func newClassifier(cfg *config.Config, log *logger.Logger) moderation.Classifier {
	if cfg.ModerationProvider == "" {
		return nil
	}

	backend, err := moderation.NewBackend(moderation.Provider(cfg.ModerationProvider), cfg.ModerationAPIKey())
	if err != nil {
		log.Warn("moderation disabled", zap.Error(err))
		return nil
	}

	log.Info("moderation enabled", zap.String("provider", string(backend.Provider())))
	return moderation.NewLLMClassifier(backend, cfg.ModerationModel, cfg.ModerationTimeout)
}
