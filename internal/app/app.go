// Package app wires the components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bouncewatch/internal/api"
	"bouncewatch/internal/config"
	"bouncewatch/internal/events"
	"bouncewatch/internal/metrics"
	"bouncewatch/internal/policy"
	"bouncewatch/internal/processor"
	"bouncewatch/internal/recipient"
	"bouncewatch/internal/store"
	"bouncewatch/internal/suppression"
	bwTLS "bouncewatch/internal/tls"
)

// App is the main application
type App struct {
	config        *config.Config
	store         *store.Store
	processor     *processor.Processor
	apiServer     *api.Server
	metricsServer *metrics.Server
	collector     *metrics.Collector
	cleaner       *store.Cleaner
	syncer        *suppression.Syncer
	acmeManager   *bwTLS.ACMEManager
	acmeServer    *http.Server
	logger        *slog.Logger
}

// statsAdapter exposes store statistics under the shape the metrics
// collector expects
type statsAdapter struct {
	store  *store.Store
	policy policy.Config
}

func (a *statsAdapter) MetricsStats(ctx context.Context) (*metrics.StoreStats, error) {
	stats, err := a.store.Stats(ctx, a.policy)
	if err != nil {
		return nil, err
	}
	return &metrics.StoreStats{
		Recipients:    stats.Recipients,
		WithBounces:   stats.WithBounces,
		OverThreshold: stats.OverThreshold,
		Suppressions:  stats.Suppressions,
	}, nil
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Metrics registry goes first so every component can record
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metrics.SetGlobal(m)
	}

	// Open storage
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	// Resolve the threshold policy once; it is passed by value from here
	policyCfg := policy.Resolve(cfg.PolicySettings())
	logger.Info("bounce policy resolved",
		"enabled", policyCfg.Enabled,
		"min_bounces", policyCfg.MinBounces,
		"bounce_ratio", policyCfg.BounceRatio,
		"ratio_mode", policyCfg.UseRatio(),
	)

	emitter := events.NewEmitter(logger.With("component", "events"))
	resolver := recipient.NewResolver(st, logger.With("component", "resolver"))
	proc := processor.New(st, resolver, emitter, policyCfg, logger)

	// Suppression list sync
	var syncer *suppression.Syncer
	if cfg.Suppression.Enabled {
		sesClient, err := suppression.NewSESClient(context.Background(), suppression.Config{
			Region:    cfg.Suppression.Region,
			AccessKey: cfg.Suppression.AccessKey,
			SecretKey: cfg.Suppression.SecretKey,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create SES client: %w", err)
		}
		syncer = suppression.NewSyncer(sesClient, st, cfg.Suppression.SyncInterval, logger)
	}

	apiServer := api.NewServer(proc, st, syncer, &cfg.API, &cfg.Webhook, logger.With("component", "api"))

	// TLS for the public endpoint
	var acmeManager *bwTLS.ACMEManager
	if cfg.API.TLS.ACME.Enabled {
		acmeManager = bwTLS.NewACMEManager(
			cfg.API.TLS.ACME.Email,
			cfg.API.TLS.ACME.Domains,
			cfg.API.TLS.ACME.CacheDir,
		)
		apiServer.SetTLSConfig(acmeManager.TLSConfig())
		logger.Info("ACME (Let's Encrypt) enabled", "domains", cfg.API.TLS.ACME.Domains)
	} else if cfg.API.TLS.CertFile != "" && cfg.API.TLS.KeyFile != "" {
		tlsConfig, err := bwTLS.LoadCertificate(cfg.API.TLS.CertFile, cfg.API.TLS.KeyFile)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		apiServer.SetTLSConfig(tlsConfig)
		logger.Info("TLS enabled with manual certificates")
	}

	// Notification log retention
	cleaner := store.NewCleaner(st, store.CleanerConfig{
		LogMaxAge:       cfg.Storage.Retention.LogMaxAge,
		CleanupInterval: cfg.Storage.Retention.CleanupInterval,
	}, logger.With("component", "cleaner"))

	// Metrics server + gauge collector
	var metricsServer *metrics.Server
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
		collector = metrics.NewCollector(m, &statsAdapter{store: st, policy: policyCfg}, cfg.Storage.Path, cfg.Metrics.FlushInterval, logger.With("component", "metrics"))
	}

	return &App{
		config:        cfg,
		store:         st,
		processor:     proc,
		apiServer:     apiServer,
		metricsServer: metricsServer,
		collector:     collector,
		cleaner:       cleaner,
		syncer:        syncer,
		acmeManager:   acmeManager,
		logger:        logger,
	}, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting bouncewatch",
		"hostname", a.config.Server.Hostname,
		"api_addr", a.config.API.ListenAddr,
		"storage", a.config.Storage.Path,
	)

	// Create context that listens for signals
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.cleaner.Start(ctx)
	if a.collector != nil {
		a.collector.Start(ctx)
	}
	if a.syncer != nil {
		a.syncer.Start(ctx)
	}

	// Channel to collect errors
	errCh := make(chan error, 3)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// ACME HTTP-01 challenges need port 80
	if a.acmeManager != nil {
		a.acmeServer = &http.Server{
			Addr: ":80",
			Handler: a.acmeManager.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				target := "https://" + r.Host + r.URL.Path
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusMovedPermanently)
			})),
		}
		go func() {
			a.logger.Info("starting ACME HTTP challenge server", "addr", ":80")
			if err := a.acmeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Warn("ACME HTTP server error", "error", err)
			}
		}()
	}

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	// Graceful shutdown
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.acmeServer != nil {
		if err := a.acmeServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("acme server shutdown error", "error", err)
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.syncer != nil {
		a.syncer.Stop()
	}
	if a.collector != nil {
		a.collector.Stop()
	}
	a.cleaner.Stop()

	if err := a.store.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
