// ./internal/state/events_store.go
package state

import (
	"fmt"
	"time"

	"github.com/meridian-dex/mevshield/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveDetectionEvent persists a single detection event.
func SaveDetectionEvent(ev types.DetectionEvent) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO detection_events (event_id, pool_id, kind, sender, risk_score, detail, detected_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (event_id) DO NOTHING;`

	_, err := DB.Exec(stmt, ev.EventID, string(ev.PoolID), string(ev.Kind), ev.Sender, ev.RiskScore, ev.Detail, ev.At)
	if err != nil {
		return fmt.Errorf("failed to insert detection event %s: %w", ev.EventID, err)
	}
	return nil
}

// SaveFeeChangeEvent persists a single fee change event.
func SaveFeeChangeEvent(ev types.FeeChangeEvent) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO fee_events (event_id, pool_id, old_fee, new_fee, risk_score, reason, changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (event_id) DO NOTHING;`

	_, err := DB.Exec(stmt, ev.EventID, string(ev.PoolID), ev.OldFee, ev.NewFee, ev.RiskScore, string(ev.Reason), ev.At)
	if err != nil {
		return fmt.Errorf("failed to insert fee change event %s: %w", ev.EventID, err)
	}
	return nil
}

// RecentDetectionEvents returns the most recent detection events for a pool,
// newest first. Pass an empty pool ID to query across all pools.
func RecentDetectionEvents(poolID types.PoolID, limit int) ([]types.DetectionEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
        SELECT event_id, pool_id, kind, COALESCE(sender, ''), risk_score, COALESCE(detail, ''), detected_at
        FROM detection_events
        WHERE ($1 = '' OR pool_id = $1)
        ORDER BY detected_at DESC
        LIMIT $2;`

	rows, err := DB.Query(query, string(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection events: %w", err)
	}
	defer rows.Close()

	var events []types.DetectionEvent
	for rows.Next() {
		var ev types.DetectionEvent
		var pool, kind string
		if err := rows.Scan(&ev.EventID, &pool, &kind, &ev.Sender, &ev.RiskScore, &ev.Detail, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan detection event: %w", err)
		}
		ev.PoolID = types.PoolID(pool)
		ev.Kind = types.DetectionKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detection events: %w", err)
	}
	return events, nil
}

// RecentFeeChangeEvents returns the most recent fee change events for a pool,
// newest first. Pass an empty pool ID to query across all pools.
func RecentFeeChangeEvents(poolID types.PoolID, limit int) ([]types.FeeChangeEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
        SELECT event_id, pool_id, old_fee, new_fee, risk_score, reason, changed_at
        FROM fee_events
        WHERE ($1 = '' OR pool_id = $1)
        ORDER BY changed_at DESC
        LIMIT $2;`

	rows, err := DB.Query(query, string(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee change events: %w", err)
	}
	defer rows.Close()

	var events []types.FeeChangeEvent
	for rows.Next() {
		var ev types.FeeChangeEvent
		var pool, reason string
		if err := rows.Scan(&ev.EventID, &pool, &ev.OldFee, &ev.NewFee, &ev.RiskScore, &reason, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan fee change event: %w", err)
		}
		ev.PoolID = types.PoolID(pool)
		ev.Reason = types.FeeChangeReason(reason)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fee change events: %w", err)
	}
	return events, nil
}

// PruneEventsBefore deletes events older than the cutoff. Returns the number
// of rows removed across both tables.
func PruneEventsBefore(cutoff time.Time) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var total int64
	res, err := DB.Exec(`DELETE FROM detection_events WHERE detected_at < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune detection events: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = DB.Exec(`DELETE FROM fee_events WHERE changed_at < $1;`, cutoff)
	if err != nil {
		return total, fmt.Errorf("failed to prune fee events: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

// PGSink is a types.EventSink that persists events to PostgreSQL. Failures
// are logged and swallowed so persistence never blocks a hook.
type PGSink struct{}

// NewPGSink returns a sink backed by the global DB connection.
func NewPGSink() *PGSink {
	return &PGSink{}
}

func (s *PGSink) FeeChanged(ev types.FeeChangeEvent) {
	if err := SaveFeeChangeEvent(ev); err != nil {
		log.Error().Err(err).Str("pool", string(ev.PoolID)).Msg("Failed to persist fee change event")
	}
}

func (s *PGSink) Detected(ev types.DetectionEvent) {
	if err := SaveDetectionEvent(ev); err != nil {
		log.Error().Err(err).Str("pool", string(ev.PoolID)).Msg("Failed to persist detection event")
	}
}
