// Development helper: drops every mevshield table and recreates the schema.
// Destructive; never point it at a production database.
package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/state"
)

var tables = []string{
	"pool_snapshots",
	"order_batches",
	"fee_events",
	"detection_events",
	"protection_parameters",
}

func main() {
	logger.Initialize(envOr("LOG_LEVEL", "info"), "")

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env not found; relying on OS environment variables")
	}

	port, err := strconv.Atoi(envOr("DB_PORT", "5432"))
	if err != nil {
		log.Fatal().Err(err).Msg("DB_PORT is not a number")
	}
	cfg := state.DBConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
	if cfg.User == "" || cfg.DBName == "" {
		log.Fatal().Msg("DB_USER and DB_NAME must be set")
	}

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("dbname", cfg.DBName).Msg("Resetting database")

	if err := state.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer state.CloseDB()

	for _, table := range tables {
		if _, err := state.DB.Exec("DROP TABLE IF EXISTS " + table + " CASCADE"); err != nil {
			log.Fatal().Err(err).Str("table", table).Msg("Failed to drop table")
		}
	}
	log.Info().Int("tables", len(tables)).Msg("Dropped all tables")

	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate schema")
	}
	log.Info().Msg("Database reset complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
