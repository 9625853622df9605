/*

This file contains the order batch types handed to the secure execution
network when an operation is deflected off the inline path.

*/

package types

import (
	"strings"
	"time"
)

// LocalBatchPrefix namespaces batch ids synthesized locally after a failed
// execution-network submit. Remote ids never carry this prefix, so callers
// can always tell a degraded submission apart from a real one.
const LocalBatchPrefix = "local-"

// BatchTimeout is how long a batch may stay pending before an administrator
// is allowed to force-resolve it. The engine itself never force-resolves.
const BatchTimeout = 300 * time.Second

// EncryptedOrder is one deflected swap packaged for out-of-band execution.
// Amount and minimum-out are commitment handles; the execution network is
// the only party that can act on them.
type EncryptedOrder struct {
	PoolID       PoolID    `json:"pool_id"`
	Trader       string    `json:"trader"`
	AmountHandle Handle    `json:"amount_handle"`
	MinOutHandle Handle    `json:"min_out_handle"`
	Deadline     time.Time `json:"deadline"`
}

// OrderBatch groups deflected orders for a single submission. A batch
// transitions pending -> processed exactly once.
type OrderBatch struct {
	BatchID     string           `json:"batch_id"` // Content-derived, or local-* on fallback.
	Orders      []EncryptedOrder `json:"orders"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Processed   bool             `json:"processed"`
	ResultHash  string           `json:"result_hash,omitempty"`
}

// IsLocal reports whether the batch id was synthesized locally because the
// execution-network submit failed.
func (b *OrderBatch) IsLocal() bool {
	return strings.HasPrefix(b.BatchID, LocalBatchPrefix)
}

// TimedOut reports whether the batch is pending past the timeout window.
func (b *OrderBatch) TimedOut(now time.Time) bool {
	return !b.Processed && now.Sub(b.SubmittedAt) > BatchTimeout
}
