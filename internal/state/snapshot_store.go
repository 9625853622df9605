// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/meridian-dex/mevshield/internal/types"
	"github.com/rs/zerolog/log"
)

// SavePoolSnapshot records a point-in-time copy of a pool's protection state.
// Snapshots are append-only; the engine remains authoritative at runtime and
// snapshots exist for the HTTP surface and offline analysis.
func SavePoolSnapshot(pool *types.PoolState) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if pool == nil {
		return 0, fmt.Errorf("cannot snapshot a nil pool")
	}

	historyJSON, err := json.Marshal(pool.VolatilityHistory)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal volatility history for pool %s: %w", pool.ID, err)
	}

	stmt := `
        INSERT INTO pool_snapshots (
            pool_id, snapshot_timestamp, total_liquidity, current_fee, base_fee,
            volatility_score, mev_risk_score, emergency_paused, volatility_history
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING snapshot_id;`

	var snapshotID int64
	err = DB.QueryRow(
		stmt,
		string(pool.ID), time.Now(), pool.TotalLiquidity.String(), pool.CurrentFee, pool.BaseFee,
		pool.VolatilityScore, pool.MEVRiskScore, pool.EmergencyPaused, historyJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pool snapshot for %s: %w", pool.ID, err)
	}

	log.Debug().
		Str("pool", string(pool.ID)).
		Int64("snapshot_id", snapshotID).
		Msg("Saved pool snapshot")
	return snapshotID, nil
}

// LoadLatestPoolSnapshot returns the most recent snapshot for a pool, or nil
// if none has been taken yet.
func LoadLatestPoolSnapshot(poolID types.PoolID) (*types.PoolState, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT pool_id, snapshot_timestamp, total_liquidity, current_fee, base_fee,
               volatility_score, mev_risk_score, emergency_paused, volatility_history
        FROM pool_snapshots
        WHERE pool_id = $1
        ORDER BY snapshot_timestamp DESC
        LIMIT 1;`

	var (
		pool        types.PoolState
		id          string
		takenAt     time.Time
		liquidity   string
		historyJSON []byte
	)
	err := DB.QueryRow(query, string(poolID)).Scan(
		&id, &takenAt, &liquidity, &pool.CurrentFee, &pool.BaseFee,
		&pool.VolatilityScore, &pool.MEVRiskScore, &pool.EmergencyPaused, &historyJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot for pool %s: %w", poolID, err)
	}

	pool.ID = types.PoolID(id)
	pool.LastUpdate = takenAt
	total, ok := math.NewIntFromString(liquidity)
	if !ok {
		return nil, fmt.Errorf("invalid total_liquidity %q in snapshot for pool %s", liquidity, poolID)
	}
	pool.TotalLiquidity = total
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &pool.VolatilityHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal volatility history for pool %s: %w", poolID, err)
		}
	}
	return &pool, nil
}

// PruneSnapshotsBefore deletes snapshots older than the cutoff.
func PruneSnapshotsBefore(cutoff time.Time) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	res, err := DB.Exec(`DELETE FROM pool_snapshots WHERE snapshot_timestamp < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune pool snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected while pruning snapshots: %w", err)
	}
	return n, nil
}
