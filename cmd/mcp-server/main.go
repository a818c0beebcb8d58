// Command mcp-server exposes the cardiology calculators and worklists as MCP tools. It needs no
// external services: assessments go to a local SQLite file and worklists use the demo cohort.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/config"
	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/history"
	"github.com/cardio-insights-server/internal/logging"
	"github.com/cardio-insights-server/internal/mcp"
	"github.com/cardio-insights-server/internal/service"
	"github.com/cardio-insights-server/internal/worklist"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	// stdout carries the protocol
	logger, logCloser, err := logging.New(domain.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: logging.OutputStderr,
	})
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	mcpCfg := domain.MCPConfig{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		TransportType: cfg.Transport,
		HTTPHost:      cfg.HTTPHost,
		HTTPPort:      cfg.HTTPPort,
	}
	// An optional config.yaml may carry an mcp section shared with the HTTP server.
	if manager, err := config.NewManager(); err != nil {
		logger.WithError(err).Warn("Ignoring config file, using environment settings")
	} else {
		mcpCfg = manager.MCPConfig(cfg)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open assessment history")
	}
	defer store.Close()

	cache, err := service.NewResultCache(domain.CacheConfig{
		Size:       cfg.CacheMaxItems,
		RedisURL:   cfg.RedisURL,
		DefaultTTL: cfg.CacheTTL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create result cache")
	}
	defer cache.Close()

	source := worklist.NewResilientSource(
		worklist.NewDemoSource(cfg.DemoLatency),
		worklist.DefaultBreakerConfig(),
		logger,
	)

	server, err := mcp.NewServer(mcp.Options{
		Name:      mcpCfg.ServerName,
		Version:   mcpCfg.ServerVersion,
		Transport: mcpCfg.TransportType,
		HTTPHost:  mcpCfg.HTTPHost,
		HTTPPort:  mcpCfg.HTTPPort,
		ExportDir: cfg.ExportDir(),
	},
		service.NewCalculatorService(logger, cache, store, nil),
		service.NewWorklistService(source, logger),
		logger,
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"data_dir":  cfg.DataDir,
		"transport": mcpCfg.TransportType,
	}).Info("Cardio insights MCP server ready")

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("Cardio insights MCP server stopped")
}
