package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
)

// Config holds database configuration
type Config struct {
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	SSLMode     string
}

// ConfigFromDomain maps the application database settings onto pool settings.
func ConfigFromDomain(cfg domain.DatabaseConfig) Config {
	minConns := int32(cfg.MaxIdleConns)
	if minConns < 0 {
		minConns = 0
	}
	return Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Database:    cfg.Database,
		Username:    cfg.Username,
		Password:    cfg.Password,
		MaxConns:    int32(cfg.MaxOpenConns),
		MinConns:    minConns,
		MaxConnLife: cfg.ConnMaxLifetime,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     cfg.SSLMode,
	}
}

// URL returns the postgres:// form used by the migration runner and database/sql stores.
func (c Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// DB wraps the pgxpool.Pool with additional functionality
type DB struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewConnection creates a new database connection pool
func NewConnection(ctx context.Context, config Config, logger *logrus.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database, config.Username, config.Password, config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	poolConfig.MinConns = config.MinConns
	if config.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLife
	}
	if config.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":      config.Host,
		"port":      config.Port,
		"database":  config.Database,
		"max_conns": poolConfig.MaxConns,
		"min_conns": poolConfig.MinConns,
	}).Info("Database connection pool established")

	return &DB{
		Pool: pool,
		log:  logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info("Database connection pool closed")
	}
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stats returns connection pool statistics
func (db *DB) Stats() *pgxpool.Stat {
	return db.Pool.Stat()
}
