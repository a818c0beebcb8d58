package config

import (
	"fmt"
	"strings"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager loads the server configuration with Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cardio-insights/")

	v.SetEnvPrefix("CARDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.tls_enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "cardio_insights")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "")

	// Cache defaults
	v.SetDefault("cache.size", 1000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.sqlite_path", "./data/assessments.db")

	// Worklist defaults
	v.SetDefault("worklist.source", "demo")
	v.SetDefault("worklist.demo_latency", "0s")
	v.SetDefault("worklist.breaker_timeout", "30s")
	v.SetDefault("worklist.breaker_trips", 5)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// The mcp section has no defaults: MCPConfig falls back to the lite settings.
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// MCPConfig resolves the MCP server settings. Keys present in the mcp section of the
// config file (or CARDIO_MCP_* variables) win; everything else comes from lite.
func (m *Manager) MCPConfig(lite *LiteConfig) domain.MCPConfig {
	cfg := domain.MCPConfig{
		ServerName:    lite.ServerName,
		ServerVersion: lite.ServerVersion,
		TransportType: lite.Transport,
		HTTPHost:      lite.HTTPHost,
		HTTPPort:      lite.HTTPPort,
	}

	v := m.v
	if v.IsSet("mcp.server_name") {
		cfg.ServerName = v.GetString("mcp.server_name")
	}
	if v.IsSet("mcp.server_version") {
		cfg.ServerVersion = v.GetString("mcp.server_version")
	}
	if v.IsSet("mcp.transport_type") {
		cfg.TransportType = v.GetString("mcp.transport_type")
	}
	if v.IsSet("mcp.http_host") {
		cfg.HTTPHost = v.GetString("mcp.http_host")
	}
	if v.IsSet("mcp.http_port") {
		if port := v.GetInt("mcp.http_port"); port > 0 {
			cfg.HTTPPort = port
		}
	}
	return cfg
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Worklist.Source {
	case "demo":
	case "postgres":
		if err := validateDatabase(config.Database); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid worklist source: %s", config.Worklist.Source)
	}

	if config.History.Enabled {
		switch config.History.Driver {
		case "sqlite":
			if config.History.SQLitePath == "" {
				return fmt.Errorf("history sqlite path is required")
			}
		case "postgres":
			if err := validateDatabase(config.Database); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid history driver: %s", config.History.Driver)
		}
	}

	if config.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive: %d", config.Cache.Size)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

func validateDatabase(db domain.DatabaseConfig) error {
	if db.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if db.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if db.Username == "" {
		return fmt.Errorf("database username is required")
	}
	return nil
}
