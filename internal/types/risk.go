/*

This file contains the ephemeral risk assessment produced per swap and the
observed market data it is derived from. Assessments are never persisted;
only the resulting pool-level scores are.

*/

package types

// Named score thresholds. The reference design deliberately keeps two
// distinct toxicity gates: the 7500/8000 pair drives the fee multiplier and
// the toxic flag, while ElevatedRiskThreshold drives the 1.25x fee step and
// the coordinated-attack volatility check. They are not interchangeable.
const (
	ToxicRiskThreshold       = int64(7500)
	ToxicConfidenceThreshold = int64(8000)
	ElevatedRiskThreshold    = int64(5000)

	// DefaultRouteRiskThreshold is the default deflection gate; pools may
	// override it through engine configuration.
	DefaultRouteRiskThreshold = int64(3000)
)

// MEVRisk is the outcome of a single risk assessment.
type MEVRisk struct {
	RiskScore  int64 `json:"risk_score"` // Basis points [0,10000].
	Confidence int64 `json:"confidence"` // Basis points [0,10000].
	IsToxic    bool  `json:"is_toxic"`
}

// Toxic reports whether a score/confidence pair crosses the toxicity gate.
func Toxic(riskScore, confidence int64) bool {
	return riskScore > ToxicRiskThreshold && confidence > ToxicConfidenceThreshold
}

// VolatilityData carries the externally observed market signals consumed by
// the risk scorer alongside the pool's own tracked history.
type VolatilityData struct {
	// PriceMovement is the recent absolute price movement in basis points.
	PriceMovement int64 `json:"price_movement"`

	// VolumeSpike expresses current volume as a percentage of baseline:
	// 100 == normal, 1000 == 10x baseline.
	VolumeSpike int64 `json:"volume_spike"`
}
