package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/mevshield/internal/types"
)

func newTestPool() *types.PoolState {
	return types.NewPoolState("pool-1", 3000, types.MEVProtectionConfig{
		VolatilityThreshold: 3000,
		BaseFeeMultiplier:   100,
		MaxFeeMultiplier:    200,
		MEVDetectionWindow:  300,
		IsEnabled:           true,
	})
}

func TestRecordAppendsAndScores(t *testing.T) {
	pool := newTestPool()

	Record(pool, 1000)
	require.Len(t, pool.VolatilityHistory, 1)
	assert.Equal(t, int64(1000), pool.VolatilityScore)

	Record(pool, 3000)
	require.Len(t, pool.VolatilityHistory, 2)
	// Weighted average: (1000*1 + 3000*2) / 3 = 2333
	assert.Equal(t, int64(2333), pool.VolatilityScore)
}

func TestRecordClampsSamples(t *testing.T) {
	pool := newTestPool()

	Record(pool, -500)
	assert.Equal(t, int64(500), pool.VolatilityHistory[0])

	Record(pool, 250000)
	assert.Equal(t, types.MaxRiskScore, pool.VolatilityHistory[1])
}

func TestRecordEvictsOldestBeyondCap(t *testing.T) {
	pool := newTestPool()

	for i := 0; i < 150; i++ {
		Record(pool, int64(i))
	}

	require.Len(t, pool.VolatilityHistory, types.VolatilityHistoryCap)
	// Samples 0..49 evicted; history holds 50..149 in insertion order.
	assert.Equal(t, int64(50), pool.VolatilityHistory[0])
	assert.Equal(t, int64(149), pool.VolatilityHistory[len(pool.VolatilityHistory)-1])
}

func TestCurrentEmptyHistory(t *testing.T) {
	pool := newTestPool()
	assert.Equal(t, int64(0), Current(pool))
}

func TestCurrentWeighsRecentSamplesHeavier(t *testing.T) {
	calm := newTestPool()
	for i := 0; i < 10; i++ {
		Record(calm, 8000)
	}
	Record(calm, 0)

	spiking := newTestPool()
	for i := 0; i < 10; i++ {
		Record(spiking, 0)
	}
	Record(spiking, 8000)

	// Same multiset of samples; the one whose spike is most recent must
	// score higher.
	assert.Greater(t, Current(spiking), Current(calm))
}

func TestRecentMultiplierMapping(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int64
		expected int64
	}{
		{"empty history is neutral", nil, MultiplierNeutral},
		{"calm pool is neutral", []int64{100, 200, 300}, MultiplierNeutral},
		{"boundary 2000 stays neutral", []int64{2000, 2000, 2000}, MultiplierNeutral},
		{"elevated volatility", []int64{3000, 3000, 3000}, MultiplierElevated},
		{"boundary 5000 stays elevated", []int64{5000, 5000}, MultiplierElevated},
		{"high volatility", []int64{7000, 7000, 7000}, MultiplierHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newTestPool()
			for _, s := range tt.samples {
				Record(pool, s)
			}
			assert.Equal(t, tt.expected, RecentMultiplier(pool))
		})
	}
}

func TestRecentMultiplierOnlyLooksAtRecentWindow(t *testing.T) {
	pool := newTestPool()

	// Old turbulence followed by ten calm samples.
	for i := 0; i < 20; i++ {
		Record(pool, 9000)
	}
	for i := 0; i < 10; i++ {
		Record(pool, 100)
	}

	assert.Equal(t, MultiplierNeutral, RecentMultiplier(pool))
}
