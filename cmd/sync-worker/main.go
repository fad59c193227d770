package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/hartfield/leadflow/internal/config"
	"github.com/hartfield/leadflow/internal/messages"
	observemetrics "github.com/hartfield/leadflow/internal/observability/metrics"
	"github.com/hartfield/leadflow/internal/remote"
	"github.com/hartfield/leadflow/internal/syncer"
	"github.com/hartfield/leadflow/pkg/logging"
)

// Headless synchronizer: keeps a warm authoritative message cache and
// exports refresh metrics without serving the API surface.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadflow sync worker", "interval", cfg.SyncInterval, "scope", cfg.SyncScope)

	if cfg.RemoteBaseURL == "" {
		logger.Error("sync worker requires REMOTE_API_BASE_URL")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := observemetrics.NewEngineMetrics(registry)

	remoteClient := remote.NewClient(cfg.RemoteBaseURL,
		remote.StaticTokenProvider(cfg.RemoteAPIToken),
		remote.WithLogger(logger),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout}),
	)

	scope := messages.ScopeAll
	if cfg.SyncScope != "" && cfg.SyncScope != "all" {
		scope = messages.LeadScope(cfg.SyncScope)
	}
	sync := syncer.New(syncer.Config{
		Source:   syncer.NewRemoteSource(remoteClient),
		Store:    messages.NewStore(),
		Scope:    scope,
		Interval: cfg.SyncInterval,
		Limit:    cfg.SyncPageLimit,
		Logger:   logger,
		Metrics:  metrics,
	})
	sync.Start(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down sync worker...")
	sync.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("sync worker stopped")
}
