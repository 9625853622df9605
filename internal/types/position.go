/*

This file contains the encrypted position record kept per liquidity
provision. Amounts and tick bounds are held only as opaque commitment
handles; the plaintext never enters this process's state.

*/

package types

import (
	"time"
)

// PositionID is a content-derived identifier, unique per
// (pool, owner, per-pool counter, timestamp).
type PositionID string

// Handle references a value held by the confidential-computation
// collaborator. Width tags the integer width the committed value was
// registered with; operations across mismatched widths fail.
type Handle struct {
	Ref   string `json:"ref"`
	Width uint16 `json:"width"` // 32, 64 or 256.
}

// IsZero reports whether the handle was never initialized.
func (h Handle) IsZero() bool {
	return h.Ref == ""
}

// EncryptedPosition tracks one liquidity provision. The amount handle is
// updated through commitment arithmetic on removals and overwritten from the
// settled delta on reconciliation; it is never decrypted locally.
//
// A position is deactivated only on an explicit external confirmation that
// the full committed amount was consumed. The engine never infers "empty"
// locally, because the comparison would require a decrypt it cannot perform
// synchronously. A position may therefore remain active indefinitely if the
// confirmation never arrives.
type EncryptedPosition struct {
	ID             PositionID `json:"id"`
	PoolID         PoolID     `json:"pool_id"`
	Owner          string     `json:"owner"`
	AmountHandle   Handle     `json:"amount_handle"`
	StrategyHandle Handle     `json:"strategy_handle"`
	TickLower      Handle     `json:"tick_lower_handle"`
	TickUpper      Handle     `json:"tick_upper_handle"`
	CreatedAt      time.Time  `json:"created_at"`
	IsActive       bool       `json:"is_active"`
}
