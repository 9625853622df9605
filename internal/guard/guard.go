/*

This file contains the liquidity guard. Suspicious adds (JIT-style or
oversized) are rejected outright; suspicious removals are allowed but
flagged, because blocking withdrawals is a worse failure mode than
tolerating one flagged exit.

*/

package guard

import (
	"cosmossdk.io/math"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var guardLogger = logger.GetForComponent("liquidity_guard")

const (
	// maxTickSpan: positions wider than this are a proxy for
	// manipulation-oriented liquidity.
	maxTickSpan = int64(10000)

	// removalFlagNumerator / 100: removals above 30% of current liquidity
	// are flagged.
	removalFlagNumerator = int64(30)

	// RemovalRiskPenalty is added to the pool's MEV risk score when a
	// flagged removal goes through, as a cooldown-like deterrent.
	RemovalRiskPenalty = int64(2000)
)

// TickRange is the price range of a concentrated liquidity position.
type TickRange struct {
	Lower int64 `json:"tick_lower"`
	Upper int64 `json:"tick_upper"`
}

// Span returns the tick width of the range.
func (r TickRange) Span() int64 {
	return r.Upper - r.Lower
}

// IsSuspiciousAdd reports whether a liquidity add should be rejected: the
// delta exceeds half the pool's existing liquidity, or the position range is
// abnormally wide.
func IsSuspiciousAdd(pool *types.PoolState, delta math.Int, ticks TickRange) bool {
	if pool.TotalLiquidity.IsPositive() && delta.GT(pool.TotalLiquidity.QuoRaw(2)) {
		guardLogger.Warn().
			Str("poolID", string(pool.ID)).
			Str("delta", delta.String()).
			Str("totalLiquidity", pool.TotalLiquidity.String()).
			Msg("Oversized liquidity add detected")
		return true
	}
	if ticks.Span() > maxTickSpan {
		guardLogger.Warn().
			Str("poolID", string(pool.ID)).
			Int64("tickSpan", ticks.Span()).
			Msg("Abnormally wide position range detected")
		return true
	}
	return false
}

// IsSuspiciousRemoval reports whether a removal should be flagged: more than
// 30% of current liquidity leaving in a single operation. Flagged removals
// are not blocked; the caller applies RemovalRiskPenalty and emits a
// detection event instead.
func IsSuspiciousRemoval(pool *types.PoolState, delta math.Int) bool {
	if !pool.TotalLiquidity.IsPositive() {
		return false
	}
	abs := delta
	if abs.IsNegative() {
		abs = abs.Neg()
	}
	flagged := abs.MulRaw(100).GT(pool.TotalLiquidity.MulRaw(removalFlagNumerator))
	if flagged {
		guardLogger.Warn().
			Str("poolID", string(pool.ID)).
			Str("delta", abs.String()).
			Str("totalLiquidity", pool.TotalLiquidity.String()).
			Msg("Oversized liquidity removal flagged")
	}
	return flagged
}

// ApplyRemovalPenalty bumps the pool's risk score for a flagged removal,
// capped at the score bound.
func ApplyRemovalPenalty(pool *types.PoolState) {
	pool.MEVRiskScore += RemovalRiskPenalty
	if pool.MEVRiskScore > types.MaxRiskScore {
		pool.MEVRiskScore = types.MaxRiskScore
	}
}
