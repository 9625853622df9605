// ./internal/state/batch_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/meridian-dex/mevshield/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveBatch persists a newly submitted order batch. Saving an already known
// batch id is a no-op so retries after a crash are safe.
func SaveBatch(batch types.OrderBatch) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	ordersJSON, err := json.Marshal(batch.Orders)
	if err != nil {
		return fmt.Errorf("failed to marshal orders for batch %s: %w", batch.BatchID, err)
	}

	stmt := `
        INSERT INTO order_batches (batch_id, orders, submitted_at, processed, result_hash, is_local)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (batch_id) DO NOTHING;`

	_, err = DB.Exec(stmt, batch.BatchID, ordersJSON, batch.SubmittedAt, batch.Processed, nullableString(batch.ResultHash), batch.IsLocal())
	if err != nil {
		return fmt.Errorf("failed to insert order batch %s: %w", batch.BatchID, err)
	}

	log.Debug().
		Str("batch_id", batch.BatchID).
		Int("orders", len(batch.Orders)).
		Bool("local", batch.IsLocal()).
		Msg("Saved order batch")
	return nil
}

// MarkBatchProcessed records settlement of a pending batch. The single UPDATE
// guarded on processed = FALSE is what enforces exactly-once at the store
// layer: the second caller sees zero rows affected.
func MarkBatchProcessed(batchID string, resultHash string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        UPDATE order_batches
        SET processed = TRUE, result_hash = $2
        WHERE batch_id = $1 AND processed = FALSE;`

	res, err := DB.Exec(stmt, batchID, nullableString(resultHash))
	if err != nil {
		return fmt.Errorf("failed to mark batch %s processed: %w", batchID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for batch %s: %w", batchID, err)
	}
	if rows == 0 {
		var exists bool
		if scanErr := DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM order_batches WHERE batch_id = $1);`, batchID).Scan(&exists); scanErr == nil && !exists {
			return fmt.Errorf("batch %s: %w", batchID, types.ErrValidation)
		}
		return fmt.Errorf("batch %s: %w", batchID, types.ErrBatchAlreadyProcessed)
	}

	log.Info().Str("batch_id", batchID).Msg("Marked order batch processed")
	return nil
}

// LoadPendingBatches returns all batches that have not been processed yet,
// oldest first. Used at startup to rebuild the in-memory pending registry.
func LoadPendingBatches() ([]types.OrderBatch, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT batch_id, orders, submitted_at, processed, COALESCE(result_hash, '')
        FROM order_batches
        WHERE processed = FALSE
        ORDER BY submitted_at ASC;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending batches: %w", err)
	}
	defer rows.Close()

	var batches []types.OrderBatch
	for rows.Next() {
		var b types.OrderBatch
		var ordersJSON []byte
		if err := rows.Scan(&b.BatchID, &ordersJSON, &b.SubmittedAt, &b.Processed, &b.ResultHash); err != nil {
			return nil, fmt.Errorf("failed to scan order batch: %w", err)
		}
		if err := json.Unmarshal(ordersJSON, &b.Orders); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders for batch %s: %w", b.BatchID, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending batches: %w", err)
	}
	return batches, nil
}

// GetBatch loads a single batch by id.
func GetBatch(batchID string) (*types.OrderBatch, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT batch_id, orders, submitted_at, processed, COALESCE(result_hash, '')
        FROM order_batches
        WHERE batch_id = $1;`

	var b types.OrderBatch
	var ordersJSON []byte
	err := DB.QueryRow(query, batchID).Scan(&b.BatchID, &ordersJSON, &b.SubmittedAt, &b.Processed, &b.ResultHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("batch %s: %w", batchID, types.ErrValidation)
		}
		return nil, fmt.Errorf("failed to load batch %s: %w", batchID, err)
	}
	if err := json.Unmarshal(ordersJSON, &b.Orders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal orders for batch %s: %w", b.BatchID, err)
	}
	return &b, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
