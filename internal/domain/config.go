package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Worklist  WorklistConfig  `mapstructure:"worklist"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents calculator result cache configuration.
// RedisURL is optional; when empty only the in-process tier is used.
type CacheConfig struct {
	Size        int           `mapstructure:"size"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// HistoryConfig selects the assessment history backend
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Driver     string `mapstructure:"driver"` // "sqlite", "postgres"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// WorklistConfig selects the patient source backing the worklists
type WorklistConfig struct {
	Source         string        `mapstructure:"source"` // "demo", "postgres"
	DemoLatency    time.Duration `mapstructure:"demo_latency"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
	BreakerTrips   uint32        `mapstructure:"breaker_trips"`
}

// RateLimitConfig represents per-client request limits
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	TransportType string `mapstructure:"transport_type"` // "stdio", "http"
	HTTPPort      int    `mapstructure:"http_port"`
	HTTPHost      string `mapstructure:"http_host"`
}
