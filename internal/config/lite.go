// Package config provides configuration management for the cardio insights binaries.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the history database and exports

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL
	RedisURL      string        // Optional: shared result cache

	// Worklist settings
	DemoLatency time.Duration // Simulated source latency

	// MCP server identity and transport
	ServerName    string
	ServerVersion string
	Transport     string // Transport type: stdio, http
	HTTPHost      string // HTTP bind host (if transport is http)
	HTTPPort      int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cardio-insights")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		ServerName:    "cardio-insights",
		ServerVersion: "1.0.0",
		Transport:     "stdio",
		HTTPHost:      "localhost",
		HTTPPort:      8090,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("CARDIO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("CARDIO_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("CARDIO_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	cfg.RedisURL = os.Getenv("CARDIO_REDIS_URL")

	if v := os.Getenv("CARDIO_DEMO_LATENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.DemoLatency = d
		}
	}

	// Transport
	if v := os.Getenv("CARDIO_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("CARDIO_HTTP_HOST"); v != "" {
		cfg.HTTPHost = v
	}
	if v := os.Getenv("CARDIO_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("CARDIO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CARDIO_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// HistoryDBPath returns the path to the assessment history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "assessments.db")
}

// ExportDir returns the directory for JSON and spreadsheet exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
