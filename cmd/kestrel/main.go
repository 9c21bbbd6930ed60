// Kestrel - Document integrity screening that deploys in 60 seconds.
// Copyright (c) 2025 opensource.integrity
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-integrity/kestrel/internal/api"
	"github.com/opensource-integrity/kestrel/internal/bus"
	"github.com/opensource-integrity/kestrel/internal/cache"
	"github.com/opensource-integrity/kestrel/internal/domain"
	"github.com/opensource-integrity/kestrel/internal/narrative"
	"github.com/opensource-integrity/kestrel/internal/registry"
	"github.com/opensource-integrity/kestrel/internal/repository"
	"github.com/opensource-integrity/kestrel/internal/rules"
	"github.com/opensource-integrity/kestrel/internal/scoring"
	"github.com/opensource-integrity/kestrel/internal/worker"
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
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Narrative provider is opt-in via environment
	if provider := os.Getenv("KESTREL_NARRATIVE_PROVIDER"); provider != "" {
		cfg.Narrative.Provider = provider
	}
	switch cfg.Narrative.Provider {
	case "anthropic":
		cfg.Narrative.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		cfg.Narrative.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if model := os.Getenv("KESTREL_NARRATIVE_MODEL"); model != "" {
		cfg.Narrative.Model = model
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"narrative", cfg.Narrative.Provider,
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

	// Initialize the predatory registry: load the snapshot from the
	// database and seed the built-in entries on first run.
	snapshot := registry.NewMemoryRegistry(nil)
	updater := registry.NewUpdater(repo, snapshot)
	if err := bootstrapRegistry(ctx, updater, snapshot); err != nil {
		slog.Error("failed to initialize predatory registry", "error", err)
		os.Exit(1)
	}
	slog.Info("predatory registry initialized", "entries", snapshot.Len())

	// Initialize Scorer
	scorer := scoring.NewScorer(registry.NewDetector(snapshot), scoring.DefaultTables(), logger)
	slog.Info("scoring engine initialized")

	// Initialize advisory rule engine
	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load advisory rules", "error", err)
		os.Exit(1)
	}
	slog.Info("advisory rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize narrative service
	narrator := narrative.NewService(cfg.Narrative, logger)
	slog.Info("narrative service initialized", "provider", cfg.Narrative.Provider)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, snapshot, engine, scorer, narrator, Version)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			// Could parse comma-separated list here
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, scorer, narrator, updater, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
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

	slog.Info("kestrel shutdown complete")
}

// GlobalTenantID is used for advisory rules that apply to all tenants.
const GlobalTenantID = "*"

// bootstrapRegistry loads the registry snapshot from the database,
// seeding the built-in entries on an empty installation.
func bootstrapRegistry(ctx context.Context, updater *registry.Updater, snapshot *registry.MemoryRegistry) error {
	if err := updater.Refresh(ctx); err != nil {
		return err
	}

	if snapshot.Len() == 0 {
		count, err := updater.Seed(ctx)
		if err != nil {
			return err
		}
		slog.Info("seeded predatory registry", "count", count)
	}

	return nil
}

// loadRulesFromDatabase loads advisory rules from the database into the
// engine. An empty database falls back to the builtin rules; they are
// replaced as soon as rules are configured via POST /rules.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return engine.LoadRules(rules.BuiltinRules())
	}

	if len(dbRules) > 0 {
		slog.Info("loading advisory rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no advisory rules in database, loading builtins")
	return engine.LoadRules(rules.BuiltinRules())
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Document Integrity Scoring Engine     ║")
	fmt.Println("  ║       Eyes on every manuscript.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze           - Screen a document")
	fmt.Println("    GET  /analyses          - List analysis history")
	fmt.Println("    GET  /analyses/{id}     - Get analysis by ID")
	fmt.Println("    GET  /documents/{id}    - Get document by ID")
	fmt.Println("    GET  /stats             - Screening statistics")
	fmt.Println("    GET  /registry          - List predatory registry entries")
	fmt.Println("    POST /registry          - Add a registry entry")
	fmt.Println("    POST /registry/reload   - Reload registry from database")
	fmt.Println("    POST /registry/seed     - Seed built-in registry entries")
	fmt.Println("    GET  /rules             - List advisory rules")
	fmt.Println("    POST /rules             - Create an advisory rule")
	fmt.Println("    POST /rules/reload      - Hot-reload rules from database")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
