// AgriGuard - Crop insurance claim evaluation and payout service.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	stdsignal "os/signal"
	"syscall"
	"time"

	"github.com/agriguard/agriguard/internal/api"
	"github.com/agriguard/agriguard/internal/bus"
	"github.com/agriguard/agriguard/internal/cache"
	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/payment"
	"github.com/agriguard/agriguard/internal/pipeline"
	"github.com/agriguard/agriguard/internal/repository"
	"github.com/agriguard/agriguard/internal/rules"
	"github.com/agriguard/agriguard/internal/scoring"
	"github.com/agriguard/agriguard/internal/signal"
	"github.com/agriguard/agriguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("AGRIGUARD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting agriguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	if os.Getenv("AGRIGUARD_PROFILE") == string(domain.ProfileCluster) {
		cfg = domain.ClusterConfig()
		slog.Info("running in cluster profile")
	}

	slog.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	stdsignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize fraud indicator engine
	indicators, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize indicator engine", "error", err)
		os.Exit(1)
	}

	// Load indicators from database (no hardcoded defaults - configure via API)
	if err := loadIndicatorsFromDatabase(ctx, repo, indicators); err != nil {
		slog.Error("failed to load fraud indicators", "error", err)
		os.Exit(1)
	}
	slog.Info("indicator engine initialized", "indicator_count", indicators.IndicatorCount())

	// Initialize signal providers and scoring
	weather := signal.NewWeatherService(cacheImpl)
	images := signal.NewImageService()
	engine := scoring.NewEngine(weather, indicators)
	slog.Info("scoring engine initialized")

	// Initialize claim evaluation pipeline
	evaluator := pipeline.NewProcessor(repo, engine)

	// Initialize payment processor
	payments := payment.NewProcessor(repo)

	// Start async Worker
	asyncWorker := worker.NewWorker(busImpl, repo, evaluator)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}
	slog.Info("async worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, weather, images, evaluator, payments, indicators, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("agriguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("agriguard shutdown complete")
}

// loadIndicatorsFromDatabase loads fraud indicators from the database into
// the engine. All indicators are configured via POST /indicators - no
// hardcoded defaults.
func loadIndicatorsFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbIndicators, err := repo.ListFraudIndicators(ctx)
	if err != nil {
		slog.Warn("failed to list indicators from database", "error", err)
		return nil // Start with empty indicators - they can be added via API
	}

	if len(dbIndicators) > 0 {
		slog.Info("loading fraud indicators from database", "count", len(dbIndicators))
		return engine.LoadIndicators(dbIndicators)
	}

	slog.Info("no fraud indicators in database - configure via POST /indicators")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                 AGRIGUARD")
	fmt.Println("       Crop Insurance Claim Evaluation")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Profile:  %s\n", cfg.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims                     - Submit a claim")
	fmt.Println("    GET  /claims                     - List claims")
	fmt.Println("    GET  /claims/{id}                - Get claim by ID")
	fmt.Println("    POST /claims/{id}/evaluate       - Evaluate synchronously")
	fmt.Println("    GET  /claims/{id}/score          - Get evaluation result")
	fmt.Println("    GET  /claims/{id}/compensation   - Compensation breakdown")
	fmt.Println("    POST /claims/{id}/payout         - Process payout")
	fmt.Println("    POST /claims/{id}/payout/retry   - Retry failed payout")
	fmt.Println("    GET  /claims/{id}/payout         - Payout status")
	fmt.Println("    GET  /transactions               - List transactions")
	fmt.Println("    GET  /payouts/summary            - Payout totals")
	fmt.Println("    GET  /weather/{region}           - Weather snapshot")
	fmt.Println("    POST /images/analyze             - Analyze a damage photo")
	fmt.Println("    GET  /indicators                 - List fraud indicators")
	fmt.Println("    POST /indicators                 - Create fraud indicator")
	fmt.Println("    POST /indicators/reload          - Hot-reload indicators")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println()
}
