package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/embygate/embygate/internal/cache"
	"github.com/embygate/embygate/internal/config"
	"github.com/embygate/embygate/internal/emby"
	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/infra"
	"github.com/embygate/embygate/internal/logging"
	"github.com/embygate/embygate/internal/metrics"
	"github.com/embygate/embygate/internal/notification"
	"github.com/embygate/embygate/internal/routes"
	"github.com/embygate/embygate/internal/server"
	"github.com/embygate/embygate/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("app", cfg.AppName)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, infra.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, db, logging.Component(logger, "migrations")); err != nil {
			logger.Error("apply migrations", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	embyClient, err := emby.NewClient(emby.Options{
		BaseURL:   cfg.Emby.URL,
		APIKey:    cfg.Emby.APIKey,
		Timeout:   cfg.Emby.Timeout,
		RateLimit: cfg.Emby.RateLimit,
		Burst:     cfg.Emby.Burst,
		Logger:    logging.Component(logger, "emby"),
	})
	if err != nil {
		logger.Error("build emby client", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := embyClient.Ping(pingCtx); err != nil {
		logger.Warn("emby server unreachable at startup", "error", err)
	}
	cancel()

	m := metrics.New()
	pgStore := store.NewPostgres(db)
	deps := grant.Deps{
		Store:    pgStore,
		Admins:   identity.NewAdminList(cfg.AdminIDs...),
		Provider: embyClient,
		Notifier: notification.Multi{
			notification.NewLoggerNotifier(logging.Component(logger, "notification")),
			notification.NewRedisNotifier(redisClient, notification.DefaultStream),
		},
		Observer: m,
		Logger:   logging.Component(logger, "grant"),
	}
	if cfg.Router.URL != "" {
		router := emby.NewRouterClient(cfg.Router.URL, cfg.Router.APIKey, cfg.Router.Timeout)
		deps.Router = cache.NewLineCache(router, redisClient, cfg.CatalogCacheTTL, logging.Component(logger, "cache"))
	}
	svc := grant.NewService(deps)

	srv, err := server.New(routes.Deps{
		Cfg:     cfg,
		Grant:   svc,
		Store:   pgStore,
		Cache:   redisClient,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
