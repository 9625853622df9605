/*

This file contains the per-pool protection state tracked by the engine,
along with the tunable MEV protection configuration attached to each pool.

*/

package types

import (
	"time"

	"cosmossdk.io/math"
)

type PoolID string

// Basis points: 10000 == 100%.
const (
	BpsOne = int64(10000)

	// MaxRiskScore bounds every risk and volatility score stored on a pool.
	MaxRiskScore = int64(10000)

	// VolatilityHistoryCap is the maximum number of retained impact samples
	// per pool. Oldest samples are evicted first.
	VolatilityHistoryCap = 100

	// AbsoluteFeeCeiling is the hard upper bound on any computed fee,
	// expressed in hundredths of a bip (1,000,000 == 100%). No configuration
	// can push a fee above this.
	AbsoluteFeeCeiling = int64(1_000_000)
)

// MEVProtectionConfig holds the tunable thresholds for a single pool.
// Multipliers are expressed in hundredths: 100 == 1.0x, 500 == 5.0x.
type MEVProtectionConfig struct {
	VolatilityThreshold int64 `json:"volatility_threshold"` // Basis points [0,10000] above which volatility is considered elevated.
	BaseFeeMultiplier   int64 `json:"base_fee_multiplier"`  // Baseline fee multiplier in hundredths (100 == 1x).
	MaxFeeMultiplier    int64 `json:"max_fee_multiplier"`   // Upper fee multiplier in hundredths, capped at 500 (5x).
	MEVDetectionWindow  int64 `json:"mev_detection_window"` // Lookback window in seconds, capped at 3600.
	IsEnabled           bool  `json:"is_enabled"`           // Disables dynamic fees entirely when false.
}

// Validate enforces the configuration invariants before a config may be
// attached to a pool. Invalid configs are rejected with ErrValidation.
func (c MEVProtectionConfig) Validate() error {
	if c.MaxFeeMultiplier < c.BaseFeeMultiplier {
		return ErrValidation
	}
	if c.MaxFeeMultiplier > 500 {
		return ErrValidation
	}
	if c.VolatilityThreshold < 0 || c.VolatilityThreshold > MaxRiskScore {
		return ErrValidation
	}
	if c.MEVDetectionWindow < 0 || c.MEVDetectionWindow > 3600 {
		return ErrValidation
	}
	if c.BaseFeeMultiplier < 0 {
		return ErrValidation
	}
	return nil
}

// PoolState is the complete protection state for one pool. It is owned by
// the engine's keyed store and mutated only through the engine's hook and
// admin surfaces; nothing else holds a reference to it.
type PoolState struct {
	ID             PoolID   `json:"id"`
	TotalLiquidity math.Int `json:"total_liquidity"` // Aggregate liquidity in base units.

	// VolatilityHistory is a bounded FIFO of basis-point impact samples,
	// insertion order == time order, length <= VolatilityHistoryCap.
	VolatilityHistory []int64 `json:"volatility_history"`

	CurrentFee int64 `json:"current_fee"` // Active fee in hundredths of a bip.
	BaseFee    int64 `json:"base_fee"`    // Floor fee in hundredths of a bip.

	VolatilityScore int64 `json:"volatility_score"` // Basis points [0,10000].
	MEVRiskScore    int64 `json:"mev_risk_score"`   // Basis points [0,10000].

	LastUpdate time.Time `json:"last_update"` // Timestamp of the last committed fee/risk update.

	Config MEVProtectionConfig `json:"config"`

	EmergencyPaused bool `json:"emergency_paused"`

	// RewardAccumulator holds captured-MEV rewards credited to the pool on
	// settled swaps, in base units.
	RewardAccumulator math.Int `json:"reward_accumulator"`
}

// NewPoolState returns a zeroed pool state with the supplied config already
// validated by the caller.
func NewPoolState(id PoolID, baseFee int64, cfg MEVProtectionConfig) *PoolState {
	return &PoolState{
		ID:                id,
		TotalLiquidity:    math.ZeroInt(),
		VolatilityHistory: make([]int64, 0, VolatilityHistoryCap),
		CurrentFee:        baseFee,
		BaseFee:           baseFee,
		LastUpdate:        time.Time{},
		Config:            cfg,
		RewardAccumulator: math.ZeroInt(),
	}
}

// Clone returns a deep copy of the pool state. The engine mutates clones and
// swaps them in only when an operation fully succeeds, which is how the
// no-partial-writes contract is kept.
func (p *PoolState) Clone() *PoolState {
	cp := *p
	cp.VolatilityHistory = make([]int64, len(p.VolatilityHistory), cap(p.VolatilityHistory))
	copy(cp.VolatilityHistory, p.VolatilityHistory)
	cp.TotalLiquidity = p.TotalLiquidity
	cp.RewardAccumulator = p.RewardAccumulator
	return &cp
}
