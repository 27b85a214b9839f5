// OCPD Engine - Motor carrier liability quoting in 60 seconds.
// Copyright (c) 2025 brokerops
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brokerops/ocpd-engine/internal/api"
	"github.com/brokerops/ocpd-engine/internal/bus"
	"github.com/brokerops/ocpd-engine/internal/cache"
	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
	"github.com/brokerops/ocpd-engine/internal/history"
	"github.com/brokerops/ocpd-engine/internal/pricing"
	"github.com/brokerops/ocpd-engine/internal/repository"
	"github.com/brokerops/ocpd-engine/internal/underwriting"
	"github.com/brokerops/ocpd-engine/internal/worker"
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
	if os.Getenv("OCPD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting ocpd engine",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("OCPD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

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

	// Build the clause catalog and variant tables
	clauseCatalog := catalog.New()
	variants := catalog.NewVariants()
	slog.Info("clause catalog initialized", "clauses", len(clauseCatalog.Definitions()))

	// Initialize the quoting history service
	historySvc := history.NewService(repo, cacheImpl)

	// Initialize the built-in underwriting decider and the pricing pipeline
	decider := underwriting.NewDecider(clauseCatalog, cfg.Pricing)
	calculator := pricing.NewCalculator(clauseCatalog, variants, cfg.Pricing, decider)
	slog.Info("premium calculator initialized")

	// Initialize the custom rule engine with the history getter
	ruleEngine, err := underwriting.NewRuleEngine(historySvc.Getter())
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load custom rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load underwriting rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RuleCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("OCPD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, calculator, ruleEngine, clauseCatalog)

		var tenantIDs []string
		if envTenants := os.Getenv("OCPD_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, calculator, ruleEngine, clauseCatalog, variants, historySvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("ocpd engine is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("ocpd engine shutdown complete")
}

// loadRulesFromDatabase loads underwriting rules from the database into the
// engine. All rules are configured via POST /underwriting/rules - no
// hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *underwriting.RuleEngine) error {
	dbRules, err := repo.ListRules(ctx, api.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list underwriting rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading underwriting rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no underwriting rules in database - configure via POST /underwriting/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                 OCPD ENGINE")
	fmt.Println("      Motor Carrier Liability Quoting")
	fmt.Println("       Every quote priced and decided.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /quotes/quick               - Quick premium estimate")
	fmt.Println("    POST /quotes/calculate           - Full quote calculation")
	fmt.Println("    GET  /quotes/{id}                - Get quote by ID")
	fmt.Println("    GET  /referrals                  - List referred quotes")
	fmt.Println("    GET  /clauses                    - List clause catalog")
	fmt.Println("    GET  /variants                   - List coverage variants")
	fmt.Println("    GET  /underwriting/rules         - List underwriting rules")
	fmt.Println("    POST /underwriting/rules         - Create an underwriting rule")
	fmt.Println("    POST /underwriting/rules/reload  - Hot-reload rules from database")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println()
}
