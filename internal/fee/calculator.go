/*

This file contains the dynamic fee calculator. Fees are expressed in
hundredths of a bip; multipliers in basis points. The calculator is rate
limited, monotonic in risk, and clamped both by the pool's configured
multiplier and by an absolute ceiling.

*/

package fee

import (
	"time"

	"cosmossdk.io/math"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/tracker"
	"github.com/meridian-dex/mevshield/internal/types"
)

var feeLogger = logger.GetForComponent("fee_calculator")

const (
	// MinUpdateInterval rate-limits fee recomputation; calls inside the
	// window return the current fee untouched and do not advance the
	// pool's last-update timestamp.
	MinUpdateInterval = 30 * time.Second

	toxicMultiplier    = int64(15000) // 1.5x for toxic flow.
	elevatedMultiplier = int64(12500) // 1.25x above the elevated threshold.

	lowLiquidityMultiplier = int64(13000) // 1.3x below 1000 units of depth.
	midLiquidityMultiplier = int64(11000) // 1.1x below 10000 units.

	peakHoursMultiplier = int64(11000) // 1.1x during peak windows.

	// significantChangeDivisor: emit a change event only when the fee moved
	// by more than a tenth of its prior value.
	significantChangeDivisor = int64(10)
)

// Calculator derives pool fees from risk assessments. Liquidity thresholds
// are configured in whole units and scaled once at construction.
type Calculator struct {
	lowLiquidity math.Int // 1000 units.
	midLiquidity math.Int // 10000 units.
	clock        func() time.Time
}

// NewCalculator builds a fee calculator for the given unit scale. The clock
// is injectable for tests; nil uses the wall clock.
func NewCalculator(unitScale math.Int, clock func() time.Time) *Calculator {
	if clock == nil {
		clock = time.Now
	}
	return &Calculator{
		lowLiquidity: unitScale.MulRaw(1000),
		midLiquidity: unitScale.MulRaw(10000),
		clock:        clock,
	}
}

// Result reports a fee computation. Changed is false when rate limiting
// short-circuited the computation; Reason is only meaningful for
// significant moves.
type Result struct {
	Fee         int64
	Changed     bool
	Significant bool
	Reason      types.FeeChangeReason
}

// Compute derives the new fee for a pool from a risk assessment and commits
// it onto the pool state (current fee, last update, volatility score).
//
// Returns the base fee untouched when protection is disabled, and the
// current fee untouched when called again inside the rate-limit window.
func (c *Calculator) Compute(pool *types.PoolState, risk types.MEVRisk) Result {
	if !pool.Config.IsEnabled {
		return Result{Fee: pool.BaseFee}
	}

	now := c.clock()
	if !pool.LastUpdate.IsZero() && now.Sub(pool.LastUpdate) < MinUpdateInterval {
		return Result{Fee: pool.CurrentFee}
	}

	oldFee := pool.CurrentFee

	// Step 1: risk multiplier. Toxic flow dominates the elevated threshold.
	newFee := pool.BaseFee
	reason := types.ReasonMarketConditions
	switch {
	case risk.IsToxic:
		newFee = applyBps(newFee, toxicMultiplier)
		reason = types.ReasonToxicFlow
	case risk.RiskScore > types.ElevatedRiskThreshold:
		newFee = applyBps(newFee, elevatedMultiplier)
		reason = types.ReasonHighMEVRisk
	}

	// Step 2: recent-volatility multiplier.
	volMult := tracker.RecentMultiplier(pool)
	if volMult != tracker.MultiplierNeutral {
		newFee = applyBps(newFee, volMult)
		if reason == types.ReasonMarketConditions {
			reason = types.ReasonHighVolatility
		}
	}

	// Step 3: thin pools get extra protection.
	liqMult := c.liquidityMultiplier(pool.TotalLiquidity)
	if liqMult != types.BpsOne {
		newFee = applyBps(newFee, liqMult)
		if reason == types.ReasonMarketConditions {
			reason = types.ReasonLowLiquidity
		}
	}

	// Step 4: time-of-day placeholder signal, not a market-data feed.
	if isPeakHour(now.UTC().Hour()) {
		newFee = applyBps(newFee, peakHoursMultiplier)
	}

	// Step 5: clamp to [baseFee, baseFee * maxMultiplier], then the
	// absolute ceiling.
	maxFee := pool.BaseFee * pool.Config.MaxFeeMultiplier / 100
	if newFee > maxFee {
		newFee = maxFee
	}
	if newFee < pool.BaseFee {
		newFee = pool.BaseFee
	}
	if newFee > types.AbsoluteFeeCeiling {
		newFee = types.AbsoluteFeeCeiling
	}

	// Step 6: persist onto the pool.
	pool.CurrentFee = newFee
	pool.LastUpdate = now
	pool.VolatilityScore = risk.RiskScore

	significant := false
	if oldFee > 0 {
		delta := newFee - oldFee
		if delta < 0 {
			delta = -delta
		}
		significant = delta > oldFee/significantChangeDivisor
	} else {
		significant = newFee != oldFee
	}

	feeLogger.Debug().
		Str("poolID", string(pool.ID)).
		Int64("oldFee", oldFee).
		Int64("newFee", newFee).
		Int64("riskScore", risk.RiskScore).
		Str("reason", string(reason)).
		Msg("Dynamic fee computed")

	return Result{Fee: newFee, Changed: newFee != oldFee, Significant: significant, Reason: reason}
}

// liquidityMultiplier maps pool depth onto a protection multiplier.
func (c *Calculator) liquidityMultiplier(liquidity math.Int) int64 {
	switch {
	case liquidity.LT(c.lowLiquidity):
		return lowLiquidityMultiplier
	case liquidity.LT(c.midLiquidity):
		return midLiquidityMultiplier
	default:
		return types.BpsOne
	}
}

// isPeakHour reports the two UTC windows treated as peak activity.
func isPeakHour(hour int) bool {
	return (hour >= 13 && hour <= 16) || (hour >= 8 && hour <= 11)
}

// applyBps multiplies a fee by a basis-point factor.
func applyBps(fee, bps int64) int64 {
	return fee * bps / types.BpsOne
}
