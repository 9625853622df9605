package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment
// variables. These are populated at startup by the LoadConfig function.
var (
	// AdminIdentity is the initially authorized manager identity.
	AdminIdentity string

	// ExecnetEndpoint is the base URL of the secure execution network.
	ExecnetEndpoint string

	// DefaultBaseFee seeds new pools, in hundredths of a bip.
	DefaultBaseFee int64

	// RouteRiskThreshold is the deflection gate in basis points; 0 keeps
	// the engine default.
	RouteRiskThreshold int64

	// UnitDecimals is the token decimal count defining one
	// ether-equivalent unit.
	UnitDecimals int64

	// WebPort is the HTTP port for the observability/admin API.
	WebPort string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Endpoint and identity variables are required; tuning
// variables fall back to defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AdminIdentity, err = getEnv("MEVSHIELD_ADMIN")
	if err != nil {
		return err
	}

	ExecnetEndpoint, err = getEnv("EXECNET_ENDPOINT")
	if err != nil {
		return err
	}

	DefaultBaseFee, err = getEnvAsInt64Or("DEFAULT_BASE_FEE", 3000)
	if err != nil {
		return err
	}

	RouteRiskThreshold, err = getEnvAsInt64Or("ROUTE_RISK_THRESHOLD", 0)
	if err != nil {
		return err
	}

	UnitDecimals, err = getEnvAsInt64Or("UNIT_DECIMALS", 18)
	if err != nil {
		return err
	}

	WebPort = getEnvOr("WEB_PORT", "8080")

	log.Debug().
		Str("AdminIdentity", AdminIdentity).
		Str("ExecnetEndpoint", ExecnetEndpoint).
		Int64("DefaultBaseFee", DefaultBaseFee).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a fallback.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt64Or retrieves an environment variable as an int64 with a
// fallback. Returns error if set but invalid.
func getEnvAsInt64Or(key string, fallback int64) (int64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
