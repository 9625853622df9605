/*

This file contains the MEV risk scorer. It aggregates volatility, volume,
swap-size, timing, liquidity-depth and reputation signals into a bounded
basis-point risk score with an attached confidence estimate.

*/

package risk

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var riskLogger = logger.GetForComponent("risk_scorer")

// Signal thresholds and contributions. All scores are basis points.
const (
	// TimeWindow is the staleness reference window for pool state.
	TimeWindow = 60 * time.Second

	priceMovementThreshold = int64(500)  // 5% move before volatility contributes.
	volumeSpikeThreshold   = int64(1000) // 10x baseline volume.
	volumeSpikeContribution = int64(2000)

	swapSizeMinorContribution = int64(1000)
	swapSizeMajorContribution = int64(2000)

	stalenessContribution = int64(500)
	crossPoolContribution = int64(1000)
	timingContribution    = int64(500)

	liquidityImpactThreshold = int64(1000) // Swap exceeding 10% of pool depth.

	crossPoolVolatilityGate = int64(3000)
	timingVolatilityGate    = int64(2000)

	// SimpleConfidence is the flat confidence of the history-blind path.
	SimpleConfidence = int64(8000)

	confidenceStaleAfter = 600 * time.Second
	minHealthyOperators  = 3
)

// ReputationScorer supplies the historical-behavior contribution for a
// sender. The concrete policy is deliberately pluggable; the default returns
// zero for everyone, matching the reference behavior until a reputation
// system exists.
type ReputationScorer interface {
	RiskContribution(sender string, poolID types.PoolID) int64
}

// OperatorCounter reports how many execution-network operators are live.
// Used only to degrade confidence; errors mean the network is unreachable.
type OperatorCounter interface {
	ActiveOperators(ctx context.Context) (int, error)
}

// zeroReputation is the stub policy: no penalty for anyone.
type zeroReputation struct{}

func (zeroReputation) RiskContribution(string, types.PoolID) int64 { return 0 }

// Scorer assesses per-swap MEV risk against pool state. Swap-size thresholds
// are configured in whole ether-equivalent units and scaled once at
// construction.
type Scorer struct {
	reputation ReputationScorer
	trusted    map[string]struct{}

	swapSizeMinor math.Int // 100 units: first size bump.
	swapSizeMajor math.Int // 1000 units: second, cumulative size bump.
	largeSwap     math.Int // LARGE_SWAP_THRESHOLD for cross-pool flagging.
}

// NewScorer builds a scorer with the given unit scale (base units per
// ether-equivalent unit) and an optional reputation policy. A nil policy
// falls back to the zero-contribution stub.
func NewScorer(unitScale math.Int, reputation ReputationScorer) *Scorer {
	if reputation == nil {
		reputation = zeroReputation{}
	}
	return &Scorer{
		reputation:    reputation,
		trusted:       make(map[string]struct{}),
		swapSizeMinor: unitScale.MulRaw(100),
		swapSizeMajor: unitScale.MulRaw(1000),
		largeSwap:     unitScale.MulRaw(1000),
	}
}

// Trust marks a sender as exempt from the historical-behavior contribution.
func (s *Scorer) Trust(sender string) {
	s.trusted[sender] = struct{}{}
}

// Untrust removes a sender from the trusted set.
func (s *Scorer) Untrust(sender string) {
	delete(s.trusted, sender)
}

// Assess computes the risk of a swap against the pool's current state and
// stores the resulting score on the pool, so the fee calculation that
// follows in the same operation reads the fresh value. swapSizeAbs must be
// non-negative.
//
// The additive model caps at 10000; each contribution is documented next to
// its guard.
func (s *Scorer) Assess(pool *types.PoolState, swapSizeAbs math.Int, sender string, volData types.VolatilityData, now time.Time) types.MEVRisk {
	score := int64(0)

	// Volatility: sustained price movement above 5% scales in at 20%.
	if volData.PriceMovement > priceMovementThreshold {
		score += volData.PriceMovement * 2000 / types.BpsOne
	}

	// Volume spike: a flat bump once volume exceeds 10x baseline.
	if volData.VolumeSpike > volumeSpikeThreshold {
		score += volumeSpikeContribution
	}

	// Swap size: cumulative bumps at 100 and 1000 units.
	if swapSizeAbs.GT(s.swapSizeMinor) {
		score += swapSizeMinorContribution
	}
	if swapSizeAbs.GT(s.swapSizeMajor) {
		score += swapSizeMajorContribution
	}

	// Staleness: state older than two reference windows is easier to game.
	sinceUpdate := now.Sub(pool.LastUpdate)
	if !pool.LastUpdate.IsZero() && sinceUpdate > 2*TimeWindow {
		score += stalenessContribution
	}

	// Historical behavior: trusted senders contribute nothing; everyone else
	// goes through the pluggable reputation policy.
	if _, ok := s.trusted[sender]; !ok {
		score += s.reputation.RiskContribution(sender, pool.ID)
	}

	// Cross-pool: large swaps into an already volatile pool.
	if swapSizeAbs.GT(s.largeSwap) && pool.VolatilityScore > crossPoolVolatilityGate {
		score += crossPoolContribution
	}

	// Timing: rapid successive activity while volatility is elevated.
	if !pool.LastUpdate.IsZero() && sinceUpdate < TimeWindow && pool.VolatilityScore > timingVolatilityGate {
		score += timingContribution
	}

	// Liquidity impact: swaps consuming a large share of pool depth.
	if pool.TotalLiquidity.IsPositive() {
		impactInt := swapSizeAbs.MulRaw(types.BpsOne).Quo(pool.TotalLiquidity)
		impact := types.MaxRiskScore * 2
		if impactInt.IsInt64() && impactInt.Int64() < impact {
			impact = impactInt.Int64()
		}
		if impact > liquidityImpactThreshold {
			score += impact / 2
		}
	}

	if score > types.MaxRiskScore {
		score = types.MaxRiskScore
	}

	risk := types.MEVRisk{
		RiskScore:  score,
		Confidence: SimpleConfidence,
		IsToxic:    types.Toxic(score, SimpleConfidence),
	}

	pool.MEVRiskScore = score

	riskLogger.Debug().
		Str("poolID", string(pool.ID)).
		Str("sender", sender).
		Int64("riskScore", score).
		Int64("confidence", risk.Confidence).
		Bool("isToxic", risk.IsToxic).
		Msg("Swap risk assessed")

	return risk
}

// AssessAdvanced runs the same scoring model but derives confidence from
// history depth, data staleness and execution-network health instead of the
// flat base. Toxicity still uses the 7500/8000 pair.
func (s *Scorer) AssessAdvanced(ctx context.Context, pool *types.PoolState, swapSizeAbs math.Int, sender string, volData types.VolatilityData, now time.Time, operators OperatorCounter) types.MEVRisk {
	risk := s.Assess(pool, swapSizeAbs, sender, volData, now)
	risk.Confidence = s.confidence(ctx, pool, now, operators)
	risk.IsToxic = types.Toxic(risk.RiskScore, risk.Confidence)
	return risk
}

// confidence starts from a history-depth base and degrades on stale data and
// a thin or unreachable operator set.
func (s *Scorer) confidence(ctx context.Context, pool *types.PoolState, now time.Time, operators OperatorCounter) int64 {
	conf := types.BpsOne
	switch n := len(pool.VolatilityHistory); {
	case n < 10:
		conf = 5000
	case n < 20:
		conf = 7000
	}

	if !pool.LastUpdate.IsZero() && now.Sub(pool.LastUpdate) > confidenceStaleAfter {
		conf = conf * 80 / 100
	}

	if operators != nil {
		count, err := operators.ActiveOperators(ctx)
		switch {
		case err != nil:
			conf = conf * 50 / 100
		case count < minHealthyOperators:
			conf = conf * 60 / 100
		}
	}

	if conf > types.BpsOne {
		conf = types.BpsOne
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
