// Command server runs the cardiology insights HTTP API: risk calculators, care-gap worklists,
// assessment history and the live assessment feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/api"
	"github.com/cardio-insights-server/internal/config"
	"github.com/cardio-insights-server/internal/database"
	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/feed"
	"github.com/cardio-insights-server/internal/history"
	"github.com/cardio-insights-server/internal/logging"
	"github.com/cardio-insights-server/internal/service"
	"github.com/cardio-insights-server/internal/worklist"
	"github.com/cardio-insights-server/migrations"
)

func main() {
	seedDemo := flag.Bool("seed-demo", false, "load the demo cohort into the patients table and exit")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, *seedDemo, *migrateOnly); err != nil {
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	logger.Info("Server stopped")
}

func needsPostgres(cfg *domain.Config) bool {
	return cfg.Worklist.Source == "postgres" || (cfg.History.Enabled && cfg.History.Driver == "postgres")
}

func run(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, seedDemo, migrateOnly bool) error {
	checks := map[string]api.HealthCheck{}

	var db *database.DB
	if needsPostgres(cfg) || seedDemo || migrateOnly {
		dbCfg := database.ConfigFromDomain(cfg.Database)

		runner, err := migrationRunner(cfg.Database.MigrationsPath, dbCfg.URL(), logger)
		if err != nil {
			return err
		}
		if err := runner.Up(ctx); err != nil {
			runner.Close()
			return err
		}
		runner.Close()
		if migrateOnly {
			return nil
		}

		db, err = database.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		checks["database"] = db.Health
	}

	if seedDemo {
		src := worklist.NewPostgresSource(db.Pool, logger)
		if err := src.Seed(ctx, worklist.DemoPatients()); err != nil {
			return fmt.Errorf("failed to seed demo patients: %w", err)
		}
		logger.WithField("patients", len(worklist.DemoPatients())).Info("Seeded demo cohort")
		return nil
	}

	// Patient source
	var source domain.PatientSource
	switch cfg.Worklist.Source {
	case "postgres":
		source = worklist.NewPostgresSource(db.Pool, logger)
	default:
		source = worklist.NewDemoSource(cfg.Worklist.DemoLatency)
	}

	breakerCfg := worklist.DefaultBreakerConfig()
	if cfg.Worklist.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.Worklist.BreakerTimeout
	}
	if cfg.Worklist.BreakerTrips > 0 {
		breakerCfg.ConsecutiveFailures = cfg.Worklist.BreakerTrips
	}
	resilient := worklist.NewResilientSource(source, breakerCfg, logger)
	checks["patient_source"] = func(context.Context) error {
		if state := resilient.State().String(); state == "open" {
			return fmt.Errorf("circuit breaker %s", state)
		}
		return nil
	}

	// Assessment history
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	// Result cache
	cache, err := service.NewResultCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer cache.Close()
	if cfg.Cache.RedisURL != "" {
		checks["redis"] = cache.Ping
	}

	hub := feed.NewHub(logger)

	server := api.NewServer(cfg, api.Dependencies{
		Calculators: service.NewCalculatorService(logger, cache, store, hub),
		Worklists:   service.NewWorklistService(resilient, logger),
		Feed:        hub,
		Checks:      checks,
	}, logger)

	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"worklist_source": cfg.Worklist.Source,
		"history":         cfg.History.Enabled,
		"history_driver":  cfg.History.Driver,
	}).Info("Starting cardio insights server")

	return server.Start(ctx)
}

// migrationRunner prefers an on-disk migrations directory when one is configured.
func migrationRunner(path, url string, logger *logrus.Logger) (*database.MigrationRunner, error) {
	if path != "" {
		return database.NewMigrationRunner(url, path, logger)
	}
	return database.NewEmbeddedMigrationRunner(url, migrations.FS, logger)
}

func openHistory(cfg *domain.Config) (history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	switch cfg.History.Driver {
	case "postgres":
		return history.NewPostgresStoreFromURL(database.ConfigFromDomain(cfg.Database).URL())
	default:
		return history.NewSQLiteStore(cfg.History.SQLitePath)
	}
}
