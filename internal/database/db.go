// Package database provides the optional Postgres archive for trades and
// daily summaries, plus the Redis mirror of live learning state. The JSON
// files remain the source of truth; everything here is reporting-only and
// failures never affect the file-backed services.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  *logging.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, log *logging.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log = log.WithComponent("database")
	log.WithField("database", cfg.Database).Info("Connected to PostgreSQL")

	return &DB{Pool: pool, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trade_records (
			id VARCHAR(64) PRIMARY KEY,
			traded_at TIMESTAMPTZ NOT NULL,
			market VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			volume DECIMAL(20, 8) NOT NULL,
			total_amount DECIMAL(20, 8) NOT NULL,
			fee DECIMAL(20, 8) NOT NULL DEFAULT 0,
			profit DECIMAL(20, 8),
			profit_rate DECIMAL(10, 4),
			reason TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_market ON trade_records(market)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_traded_at ON trade_records(traded_at)`,

		`CREATE TABLE IF NOT EXISTS daily_summaries (
			summary_date DATE PRIMARY KEY,
			profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			profit_rate DECIMAL(10, 4) NOT NULL DEFAULT 0,
			trade_count INTEGER NOT NULL DEFAULT 0,
			win_count INTEGER NOT NULL DEFAULT 0,
			loss_count INTEGER NOT NULL DEFAULT 0,
			win_rate DECIMAL(10, 4) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info("Database migrations completed")
	return nil
}
