// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS protection_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			volatility_threshold BIGINT NOT NULL,
			base_fee_multiplier BIGINT NOT NULL,
			max_fee_multiplier BIGINT NOT NULL,
			mev_detection_window BIGINT NOT NULL,
			is_enabled BOOLEAN NOT NULL,
			CONSTRAINT uq_protection_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_protection_parameters_config_active ON protection_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS detection_events (
			event_id UUID PRIMARY KEY,
			pool_id VARCHAR(255) NOT NULL,
			kind VARCHAR(64) NOT NULL,
			sender VARCHAR(255),
			risk_score BIGINT NOT NULL,
			detail TEXT,
			detected_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_detection_events_pool ON detection_events(pool_id, detected_at DESC);
		CREATE INDEX IF NOT EXISTS idx_detection_events_kind ON detection_events(kind);

		CREATE TABLE IF NOT EXISTS fee_events (
			event_id UUID PRIMARY KEY,
			pool_id VARCHAR(255) NOT NULL,
			old_fee BIGINT NOT NULL,
			new_fee BIGINT NOT NULL,
			risk_score BIGINT NOT NULL,
			reason VARCHAR(64) NOT NULL,
			changed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fee_events_pool ON fee_events(pool_id, changed_at DESC);

		CREATE TABLE IF NOT EXISTS order_batches (
			batch_id VARCHAR(255) PRIMARY KEY,
			orders JSONB NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			result_hash VARCHAR(255),
			is_local BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_order_batches_pending ON order_batches(processed, submitted_at);

		CREATE TABLE IF NOT EXISTS pool_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			pool_id VARCHAR(255) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_liquidity NUMERIC(78, 0) NOT NULL,
			current_fee BIGINT NOT NULL,
			base_fee BIGINT NOT NULL,
			volatility_score BIGINT NOT NULL,
			mev_risk_score BIGINT NOT NULL,
			emergency_paused BOOLEAN NOT NULL,
			volatility_history JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pool ON pool_snapshots(pool_id, snapshot_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
