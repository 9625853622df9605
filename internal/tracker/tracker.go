/*

This file contains the volatility history tracker. Each pool keeps a bounded
FIFO of basis-point impact samples; the tracker derives a recency-weighted
volatility estimate and a short-horizon fee multiplier from it.

*/

package tracker

import (
	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var trackerLogger = logger.GetForComponent("volatility_tracker")

// Recent-window multiplier mapping, in basis points.
const (
	recentWindow = 10

	MultiplierNeutral  = int64(10000) // 1.0x
	MultiplierElevated = int64(12000) // 1.2x
	MultiplierHigh     = int64(15000) // 1.5x

	recentHighThreshold     = int64(5000)
	recentElevatedThreshold = int64(2000)
)

// Record appends an impact sample to the pool's volatility history, evicting
// the oldest sample once the history exceeds its capacity, and refreshes the
// pool's volatility score from the full retained history.
func Record(pool *types.PoolState, sample int64) {
	if sample < 0 {
		sample = -sample
	}
	if sample > types.MaxRiskScore {
		sample = types.MaxRiskScore
	}

	pool.VolatilityHistory = append(pool.VolatilityHistory, sample)
	if len(pool.VolatilityHistory) > types.VolatilityHistoryCap {
		// Shift-down eviction keeps insertion order == time order.
		pool.VolatilityHistory = pool.VolatilityHistory[len(pool.VolatilityHistory)-types.VolatilityHistoryCap:]
	}

	pool.VolatilityScore = Current(pool)

	trackerLogger.Debug().
		Str("poolID", string(pool.ID)).
		Int64("sample", sample).
		Int64("volatilityScore", pool.VolatilityScore).
		Int("historyLen", len(pool.VolatilityHistory)).
		Msg("Volatility sample recorded")
}

// Current returns the recency-weighted average volatility over the full
// retained history: the i-th oldest sample carries weight i+1, so the most
// recent sample weighs heaviest. An empty history yields zero.
func Current(pool *types.PoolState) int64 {
	n := len(pool.VolatilityHistory)
	if n == 0 {
		return 0
	}

	var weightedSum, weightTotal int64
	for i, sample := range pool.VolatilityHistory {
		weight := int64(i + 1)
		weightedSum += sample * weight
		weightTotal += weight
	}
	return weightedSum / weightTotal
}

// RecentMultiplier examines only the most recent samples (at most ten) and
// maps their plain average onto a fee multiplier in basis points. An empty
// history is neutral.
func RecentMultiplier(pool *types.PoolState) int64 {
	n := len(pool.VolatilityHistory)
	if n == 0 {
		return MultiplierNeutral
	}

	window := recentWindow
	if n < window {
		window = n
	}

	var sum int64
	for _, sample := range pool.VolatilityHistory[n-window:] {
		sum += sample
	}
	avg := sum / int64(window)

	switch {
	case avg > recentHighThreshold:
		return MultiplierHigh
	case avg > recentElevatedThreshold:
		return MultiplierElevated
	default:
		return MultiplierNeutral
	}
}
