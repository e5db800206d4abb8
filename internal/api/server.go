// Package api exposes the HTTP surface: the SNS webhook that receives
// SES notifications and the management API for operators.
package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bouncewatch/internal/config"
	"bouncewatch/internal/ipfilter"
	"bouncewatch/internal/metrics"
	"bouncewatch/internal/processor"
	"bouncewatch/internal/store"
	"bouncewatch/internal/suppression"
)

// Server is the HTTP server carrying the webhook and the management API
type Server struct {
	router        *chi.Mux
	httpServer    *http.Server
	processor     *processor.Processor
	store         *store.Store
	syncer        *suppression.Syncer
	apiCfg        *config.APIConfig
	webhookCfg    *config.WebhookConfig
	webhookFilter *ipfilter.Filter
	apiFilter     *ipfilter.Filter
	tlsConfig     *tls.Config
	logger        *slog.Logger
	startTime     time.Time
}

// NewServer creates the HTTP server. syncer may be nil when
// suppression sync is disabled.
func NewServer(p *processor.Processor, st *store.Store, syncer *suppression.Syncer, apiCfg *config.APIConfig, webhookCfg *config.WebhookConfig, logger *slog.Logger) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		processor:     p,
		store:         st,
		syncer:        syncer,
		apiCfg:        apiCfg,
		webhookCfg:    webhookCfg,
		webhookFilter: ipfilter.New(webhookCfg.AllowedIPs, logger),
		apiFilter:     ipfilter.New(apiCfg.AllowedIPs, logger),
		logger:        logger,
		startTime:     time.Now(),
	}

	s.setupRoutes()
	return s
}

// SetTLSConfig installs the TLS configuration used by ListenAndServe
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.tlsConfig = cfg
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	// SNS notification delivery (basic auth + optional IP allow-list)
	s.router.With(s.webhookFilter.Middleware, s.basicAuthMiddleware).
		Post("/webhooks/ses", s.handleWebhook)

	// Management API (API key + optional IP allow-list)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiFilter.Middleware)
		r.Use(s.authMiddleware)

		r.Get("/recipients", s.handleListRecipients)
		r.Get("/recipients/{id}", s.handleGetRecipient)
		r.Post("/recipients", s.handleAddRecipient)
		r.Post("/recipients/{id}/reset", s.handleResetRecipient)
		r.Get("/notifications", s.handleListNotifications)
		r.Get("/suppressions", s.handleListSuppressions)
		r.Get("/suppressions/{email}", s.handleGetSuppression)
		r.Post("/suppressions/sync", s.handleSyncSuppressions)
	})
}

// ListenAndServe starts the HTTP server, with TLS when configured
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:           s.apiCfg.ListenAddr,
		Handler:        s.router,
		MaxHeaderBytes: s.apiCfg.MaxHeaderBytes,
		ReadTimeout:    s.apiCfg.ReadTimeout,
		WriteTimeout:   s.apiCfg.WriteTimeout,
		IdleTimeout:    s.apiCfg.IdleTimeout,
	}

	if s.tlsConfig != nil {
		s.httpServer.TLSConfig = s.tlsConfig
		s.logger.Info("starting HTTPS server", "addr", s.apiCfg.ListenAddr)
		return s.httpServer.ListenAndServeTLS("", "")
	}

	s.logger.Info("starting HTTP server", "addr", s.apiCfg.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
