// Package api exposes the claim, payout, and indicator HTTP surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/payment"
	"github.com/agriguard/agriguard/internal/pipeline"
	"github.com/agriguard/agriguard/internal/rules"
	"github.com/agriguard/agriguard/internal/signal"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, weather *signal.WeatherService, images domain.ImageAnalyzer, evaluator *pipeline.Processor, payments *payment.Processor, indicators *rules.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, weather, images, evaluator, payments, indicators, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Claims
	router.Route("/claims", func(r chi.Router) {
		r.Post("/", handler.SubmitClaim)
		r.Get("/", handler.ListClaims)
		r.Get("/{id}", handler.GetClaim)
		r.Post("/{id}/evaluate", handler.EvaluateClaim)
		r.Get("/{id}/score", handler.GetScore)
		r.Get("/{id}/compensation", handler.GetCompensation)
		r.Post("/{id}/payout", handler.ProcessPayout)
		r.Post("/{id}/payout/retry", handler.RetryPayout)
		r.Get("/{id}/payout", handler.PayoutStatus)
	})

	// Transactions and payout reporting
	router.Get("/transactions", handler.ListTransactions)
	router.Get("/transactions/{id}", handler.GetTransaction)
	router.Get("/payouts/summary", handler.PayoutSummary)

	// Weather snapshots
	router.Get("/weather/{region}", handler.GetWeather)

	// Damage image analysis
	router.Post("/images/analyze", handler.AnalyzeImage)

	// Fraud indicator management
	router.Route("/indicators", func(r chi.Router) {
		r.Get("/", handler.ListIndicators)
		r.Post("/", handler.CreateIndicator)
		r.Delete("/{id}", handler.DeleteIndicator)
		r.Post("/reload", handler.ReloadIndicators)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
