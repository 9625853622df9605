package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/mevshield/internal/types"
)

var unitScale = math.NewIntWithDecimal(1, 18)

func units(n int64) math.Int {
	return unitScale.MulRaw(n)
}

func newTestPool() *types.PoolState {
	pool := types.NewPoolState("pool-1", 3000, types.MEVProtectionConfig{
		VolatilityThreshold: 3000,
		BaseFeeMultiplier:   100,
		MaxFeeMultiplier:    200,
		MEVDetectionWindow:  300,
		IsEnabled:           true,
	})
	pool.TotalLiquidity = units(100000)
	return pool
}

type fixedReputation struct{ score int64 }

func (r fixedReputation) RiskContribution(string, types.PoolID) int64 { return r.score }

type fixedOperators struct {
	count int
	err   error
}

func (o fixedOperators) ActiveOperators(context.Context) (int, error) { return o.count, o.err }

func TestAssessCalmSwapScoresZero(t *testing.T) {
	s := NewScorer(unitScale, nil)
	pool := newTestPool()

	risk := s.Assess(pool, units(10), "trader", types.VolatilityData{}, time.Now())

	assert.Equal(t, int64(0), risk.RiskScore)
	assert.Equal(t, SimpleConfidence, risk.Confidence)
	assert.False(t, risk.IsToxic)
	assert.Equal(t, int64(0), pool.MEVRiskScore)
}

func TestAssessVolatilityContribution(t *testing.T) {
	s := NewScorer(unitScale, nil)
	pool := newTestPool()

	// 20% of the observed movement, only above the 5% gate.
	risk := s.Assess(pool, units(10), "trader", types.VolatilityData{PriceMovement: 1000}, time.Now())
	assert.Equal(t, int64(200), risk.RiskScore)

	pool = newTestPool()
	risk = s.Assess(pool, units(10), "trader", types.VolatilityData{PriceMovement: 500}, time.Now())
	assert.Equal(t, int64(0), risk.RiskScore)
}

func TestAssessVolumeSpikeContribution(t *testing.T) {
	s := NewScorer(unitScale, nil)
	pool := newTestPool()

	risk := s.Assess(pool, units(10), "trader", types.VolatilityData{VolumeSpike: 1500}, time.Now())
	assert.Equal(t, int64(2000), risk.RiskScore)
}

func TestAssessSwapSizeBumpsAreCumulative(t *testing.T) {
	s := NewScorer(unitScale, nil)

	risk := s.Assess(newTestPool(), units(100), "trader", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(0), risk.RiskScore, "boundary 100 units does not bump")

	risk = s.Assess(newTestPool(), units(500), "trader", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(1000), risk.RiskScore)

	risk = s.Assess(newTestPool(), units(2000), "trader", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(3000), risk.RiskScore, "both size bumps apply")
}

func TestAssessStalenessContribution(t *testing.T) {
	s := NewScorer(unitScale, nil)
	now := time.Now()

	pool := newTestPool()
	pool.LastUpdate = now.Add(-3 * time.Minute)
	risk := s.Assess(pool, units(10), "trader", types.VolatilityData{}, now)
	assert.Equal(t, int64(500), risk.RiskScore)

	// A zero LastUpdate means the pool has never been touched, not stale.
	pool = newTestPool()
	risk = s.Assess(pool, units(10), "trader", types.VolatilityData{}, now)
	assert.Equal(t, int64(0), risk.RiskScore)
}

func TestAssessReputationAndTrust(t *testing.T) {
	s := NewScorer(unitScale, fixedReputation{score: 1500})
	pool := newTestPool()

	risk := s.Assess(pool, units(10), "known-bad", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(1500), risk.RiskScore)

	s.Trust("known-bad")
	risk = s.Assess(newTestPool(), units(10), "known-bad", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(0), risk.RiskScore)

	s.Untrust("known-bad")
	risk = s.Assess(newTestPool(), units(10), "known-bad", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(1500), risk.RiskScore)
}

func TestAssessCrossPoolAndTimingContributions(t *testing.T) {
	s := NewScorer(unitScale, nil)
	now := time.Now()

	pool := newTestPool()
	pool.VolatilityScore = 3500
	risk := s.Assess(pool, units(1500), "trader", types.VolatilityData{}, now)
	// Size bumps (1000+2000) + cross-pool (1000).
	assert.Equal(t, int64(4000), risk.RiskScore)

	pool = newTestPool()
	pool.VolatilityScore = 2500
	pool.LastUpdate = now.Add(-10 * time.Second)
	risk = s.Assess(pool, units(10), "trader", types.VolatilityData{}, now)
	assert.Equal(t, int64(500), risk.RiskScore)
}

func TestAssessLiquidityImpact(t *testing.T) {
	s := NewScorer(unitScale, nil)

	// 600 units into a 500-unit pool: impact 12000 bps, contributing 6000,
	// plus the minor size bump.
	pool := newTestPool()
	pool.TotalLiquidity = units(500)
	risk := s.Assess(pool, units(600), "trader", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(7000), risk.RiskScore)
	assert.Greater(t, risk.RiskScore, types.DefaultRouteRiskThreshold,
		"disproportionate swaps must cross the routing gate")

	// Impact at or below 10% contributes nothing.
	pool = newTestPool()
	pool.TotalLiquidity = units(1000)
	risk = s.Assess(pool, units(50), "trader", types.VolatilityData{}, time.Now())
	assert.Equal(t, int64(0), risk.RiskScore)
}

func TestAssessScoreCapsAtMax(t *testing.T) {
	s := NewScorer(unitScale, fixedReputation{score: 5000})
	pool := newTestPool()
	pool.TotalLiquidity = units(100)
	pool.VolatilityScore = 6000
	pool.LastUpdate = time.Now().Add(-3 * time.Minute)

	risk := s.Assess(pool, units(5000), "trader", types.VolatilityData{PriceMovement: 9000, VolumeSpike: 2000}, time.Now())

	assert.Equal(t, types.MaxRiskScore, risk.RiskScore)
	// The simple path's flat confidence of 8000 does not clear the strict
	// confidence gate; only the advanced path can flag toxicity.
	assert.False(t, risk.IsToxic)
}

func TestAdvancedConfidenceFromHistoryDepth(t *testing.T) {
	s := NewScorer(unitScale, nil)
	ctx := context.Background()

	pool := newTestPool()
	risk := s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), nil)
	assert.Equal(t, int64(5000), risk.Confidence, "thin history")

	pool = newTestPool()
	pool.VolatilityHistory = make([]int64, 15)
	risk = s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), nil)
	assert.Equal(t, int64(7000), risk.Confidence)

	pool = newTestPool()
	pool.VolatilityHistory = make([]int64, 30)
	risk = s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), nil)
	assert.Equal(t, types.BpsOne, risk.Confidence)
}

func TestAdvancedConfidenceDegradesOnStaleData(t *testing.T) {
	s := NewScorer(unitScale, nil)
	now := time.Now()

	pool := newTestPool()
	pool.VolatilityHistory = make([]int64, 30)
	pool.LastUpdate = now.Add(-11 * time.Minute)

	risk := s.AssessAdvanced(context.Background(), pool, units(10), "trader", types.VolatilityData{}, now, nil)
	assert.Equal(t, int64(8000), risk.Confidence)
}

func TestAdvancedConfidenceDegradesOnOperatorHealth(t *testing.T) {
	s := NewScorer(unitScale, nil)
	ctx := context.Background()

	pool := newTestPool()
	pool.VolatilityHistory = make([]int64, 30)
	risk := s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), fixedOperators{count: 2})
	assert.Equal(t, int64(6000), risk.Confidence, "thin operator set")

	risk = s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), fixedOperators{err: errors.New("unreachable")})
	assert.Equal(t, int64(5000), risk.Confidence, "unreachable network")

	risk = s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), fixedOperators{count: 5})
	assert.Equal(t, types.BpsOne, risk.Confidence)
}

func TestAdvancedToxicityNeedsBothGates(t *testing.T) {
	s := NewScorer(unitScale, fixedReputation{score: 8000})
	ctx := context.Background()

	// Score crosses 7500 but confidence 5000 stays below 8000: not toxic.
	pool := newTestPool()
	risk := s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), nil)
	require.Greater(t, risk.RiskScore, types.ToxicRiskThreshold)
	assert.False(t, risk.IsToxic)

	// Deep history pushes confidence to 10000: toxic.
	pool = newTestPool()
	pool.VolatilityHistory = make([]int64, 30)
	risk = s.AssessAdvanced(ctx, pool, units(10), "trader", types.VolatilityData{}, time.Now(), nil)
	assert.True(t, risk.IsToxic)
}
