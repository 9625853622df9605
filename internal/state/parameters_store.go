// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/meridian-dex/mevshield/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveProtectionConfig saves a new version of MEV protection parameters.
func SaveProtectionConfig(cfg types.MEVProtectionConfig, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE protection_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO protection_parameters (
            version, config_name, is_active, activated_at, created_at,
            volatility_threshold, base_fee_multiplier, max_fee_multiplier,
            mev_detection_window, is_enabled
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		cfg.VolatilityThreshold, cfg.BaseFeeMultiplier, cfg.MaxFeeMultiplier,
		cfg.MEVDetectionWindow, cfg.IsEnabled,
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert protection parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved protection parameters")
	return paramsID, nil
}

// LoadActiveProtectionConfig loads the currently active protection parameters.
func LoadActiveProtectionConfig(configName string) (*types.MEVProtectionConfig, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            volatility_threshold, base_fee_multiplier, max_fee_multiplier,
            mev_detection_window, is_enabled
        FROM protection_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	cfg := &types.MEVProtectionConfig{}
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&cfg.VolatilityThreshold, &cfg.BaseFeeMultiplier, &cfg.MaxFeeMultiplier,
		&cfg.MEVDetectionWindow, &cfg.IsEnabled,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active protection parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active protection parameters for config '%s': %w", configName, err)
	}
	log.Info().Str("config", configName).Msg("Loaded active protection parameters")
	return cfg, nil
}

// GetActiveProtectionConfigID returns the params_id of the currently active parameter row.
func GetActiveProtectionConfigID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM protection_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			// No active parameters found - this is valid, return nil
			log.Debug().Str("config", configName).Msg("No active protection parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active protection parameters ID for config '%s': %w", configName, err)
	}

	log.Debug().
		Str("config", configName).
		Int64("params_id", paramsID).
		Msg("Retrieved active protection parameters ID")

	return &paramsID, nil
}

// NextConfigVersion returns one past the highest stored version for a config
// name; names never saved start at 1.
func NextConfigVersion(configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT COALESCE(MAX(version), 0) + 1
        FROM protection_parameters
        WHERE config_name = $1;`

	var next int
	if err := DB.QueryRow(query, configName).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next version for config '%s': %w", configName, err)
	}
	return next, nil
}
