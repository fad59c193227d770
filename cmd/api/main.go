package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hartfield/leadflow/internal/api/router"
	appconfig "github.com/hartfield/leadflow/internal/config"
	"github.com/hartfield/leadflow/internal/favorites"
	"github.com/hartfield/leadflow/internal/http/handlers"
	httpmiddleware "github.com/hartfield/leadflow/internal/http/middleware"
	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/messages/templates"
	"github.com/hartfield/leadflow/internal/notify"
	observemetrics "github.com/hartfield/leadflow/internal/observability/metrics"
	"github.com/hartfield/leadflow/internal/outbox"
	"github.com/hartfield/leadflow/internal/remote"
	"github.com/hartfield/leadflow/internal/syncer"
	"github.com/hartfield/leadflow/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadflow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observemetrics.NewEngineMetrics(registry)

	// Lead persistence: Postgres when configured, in-memory otherwise.
	var leadsRepo leads.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		leadsRepo = leads.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory lead repository")
		leadsRepo = leads.NewInMemoryRepository()
	}

	leadsService := leads.NewService(leadsRepo, leads.NewMachine(), logger)
	if recipients := notify.ParseRecipients(cfg.NotifyEmail); len(recipients) > 0 {
		var sender notify.EmailSender = notify.NewStubEmailSender(logger)
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sg != nil {
			sender = sg
		}
		leadsService.WithNotifier(notify.NewService(sender, recipients, logger))
	}

	tokens := remote.StaticTokenProvider(cfg.RemoteAPIToken)
	remoteClient := remote.NewClient(cfg.RemoteBaseURL, tokens,
		remote.WithLogger(logger),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout}),
	)

	store := messages.NewStore()
	library := templates.NewLibrary()
	pipeline := outbox.NewPipeline(outbox.Config{
		Store:     store,
		Remote:    remoteClient,
		Templates: library,
		Logger:    logger,
		Metrics:   metrics,
	})

	scope := messages.ScopeAll
	if cfg.SyncScope != "" && cfg.SyncScope != "all" {
		scope = messages.LeadScope(cfg.SyncScope)
	}
	sync := syncer.New(syncer.Config{
		Source:   syncer.NewRemoteSource(remoteClient),
		Store:    store,
		Scope:    scope,
		Interval: cfg.SyncInterval,
		Limit:    cfg.SyncPageLimit,
		Logger:   logger,
		Metrics:  metrics,
	})
	sync.Start(context.Background())

	var favoritesHandler *handlers.FavoritesHandler
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		favoritesHandler = handlers.NewFavoritesHandler(favorites.NewStore(redisClient, cfg.GuestStateTTL), logger)
	} else {
		logger.Warn("REDIS_ADDR not set, favorites endpoints disabled")
	}

	var sendLimiter *httpmiddleware.RateLimiter
	if cfg.SendRatePerSec > 0 {
		sendLimiter = httpmiddleware.NewRateLimiter(cfg.SendRatePerSec, cfg.SendBurst)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Messages:           handlers.NewMessagesHandler(store, pipeline, logger),
		Leads:              handlers.NewLeadsHandler(leadsService, metrics, logger),
		Dashboard:          handlers.NewDashboardHandler(sync, logger),
		Favorites:          favoritesHandler,
		Templates:          handlers.NewTemplatesHandler(library, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthSecret:         cfg.AuthJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SendLimiter:        sendLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	sync.Stop()
	if sendLimiter != nil {
		sendLimiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
