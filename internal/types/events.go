/*

This file contains the observability events emitted by the engine: fee
changes and MEV detections. Events are best-effort; dropping one never
affects the outcome of the operation that produced it.

*/

package types

import "time"

// FeeChangeReason labels why a fee moved, in priority order: toxic flow
// beats high MEV risk, which beats volatility, which beats low liquidity.
type FeeChangeReason string

const (
	ReasonToxicFlow        FeeChangeReason = "toxic-flow"
	ReasonHighMEVRisk      FeeChangeReason = "high-mev-risk"
	ReasonHighVolatility   FeeChangeReason = "high-volatility-adjustment"
	ReasonLowLiquidity     FeeChangeReason = "low-liquidity-protection"
	ReasonMarketConditions FeeChangeReason = "market-conditions"
)

// FeeChangeEvent is emitted when a pool's fee moves by more than 10% of its
// prior value. Smaller moves are committed silently to avoid event spam.
type FeeChangeEvent struct {
	EventID   string          `json:"event_id"`
	PoolID    PoolID          `json:"pool_id"`
	OldFee    int64           `json:"old_fee"`
	NewFee    int64           `json:"new_fee"`
	RiskScore int64           `json:"risk_score"`
	Reason    FeeChangeReason `json:"reason"`
	At        time.Time       `json:"at"`
}

// DetectionKind labels the guard that fired.
type DetectionKind string

const (
	DetectSuspiciousAdd     DetectionKind = "suspicious-liquidity-add"
	DetectSuspiciousRemoval DetectionKind = "suspicious-liquidity-removal"
	DetectCoordinatedAttack DetectionKind = "coordinated-attack"
	DetectCrossPoolArb      DetectionKind = "cross-pool-arbitrage"
	DetectRoutedSwap        DetectionKind = "routed-swap"
)

// DetectionEvent records a guard trigger together with the risk score that
// was computed at the time.
type DetectionEvent struct {
	EventID   string        `json:"event_id"`
	PoolID    PoolID        `json:"pool_id"`
	Kind      DetectionKind `json:"kind"`
	Sender    string        `json:"sender,omitempty"`
	RiskScore int64         `json:"risk_score"`
	Detail    string        `json:"detail,omitempty"`
	At        time.Time     `json:"at"`
}

// EventSink receives engine events. Implementations must not block the
// calling operation; persistence failures are logged and swallowed.
type EventSink interface {
	FeeChanged(FeeChangeEvent)
	Detected(DetectionEvent)
}
