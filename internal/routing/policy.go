/*

This file contains the routing policy: the decision to deflect a swap to the
secure execution network instead of executing it inline, and the
coordinated-attack check that rejects an operation outright. Routing defers;
a detected attack fails.

*/

package routing

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/meridian-dex/mevshield/internal/enclave"
	"github.com/meridian-dex/mevshield/internal/execnet"
	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var routingLogger = logger.GetForComponent("routing_policy")

const (
	// coordinatedSwapCount: a sender with this many recent swaps trips the
	// coordinated-attack check.
	coordinatedSwapCount = 5

	// coordinatedVolatilityGate gates the size-based attack heuristic.
	coordinatedVolatilityGate = int64(5000)

	// orderDeadline is how long a deflected order stays valid.
	orderDeadline = 5 * time.Minute
)

// ActivityLog supplies per-sender swap history. The reference leaves this
// unimplemented; the default policy reports no history, so only the
// size/volatility heuristic fires.
type ActivityLog interface {
	RecentSwapCount(sender string, poolID types.PoolID, window time.Duration) int
}

// noActivity is the stub log: nobody has history.
type noActivity struct{}

func (noActivity) RecentSwapCount(string, types.PoolID, time.Duration) int { return 0 }

// Committer packages order amounts into opaque handles before submission.
type Committer interface {
	Commit(value math.Int, width uint16, owner string) (types.Handle, error)
}

// Policy decides routing and packages deflected orders.
type Policy struct {
	activity  ActivityLog
	committer Committer
	submitter execnet.Submitter

	riskThreshold int64    // Deflect above this risk score.
	routeSize     math.Int // Deflect above this swap size (10000 units).
	largeSwap     math.Int // LARGE_SWAP_THRESHOLD for the attack heuristic.

	clock func() time.Time
}

// NewPolicy builds a routing policy. A nil activity log falls back to the
// no-history stub; riskThreshold <= 0 uses the default deflection gate.
func NewPolicy(unitScale math.Int, riskThreshold int64, committer Committer, submitter execnet.Submitter, activity ActivityLog, clock func() time.Time) *Policy {
	if activity == nil {
		activity = noActivity{}
	}
	if riskThreshold <= 0 {
		riskThreshold = types.DefaultRouteRiskThreshold
	}
	if clock == nil {
		clock = time.Now
	}
	return &Policy{
		activity:      activity,
		committer:     committer,
		submitter:     submitter,
		riskThreshold: riskThreshold,
		routeSize:     unitScale.MulRaw(10000),
		largeSwap:     unitScale.MulRaw(1000),
		clock:         clock,
	}
}

// ShouldRoute reports whether a swap must be deflected to the execution
// network: elevated risk, or sheer size.
func (p *Policy) ShouldRoute(risk types.MEVRisk, swapSizeAbs math.Int) bool {
	return risk.RiskScore > p.riskThreshold || swapSizeAbs.GT(p.routeSize)
}

// DetectCoordinatedAttack reports whether the sender's pattern looks like a
// coordinated attack: a burst of recent swaps, or a large swap into an
// already hot pool. A detection fails the operation outright, which is
// distinct from routing.
func (p *Policy) DetectCoordinatedAttack(pool *types.PoolState, sender string, swapSizeAbs math.Int) bool {
	window := time.Duration(pool.Config.MEVDetectionWindow) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	if p.activity.RecentSwapCount(sender, pool.ID, window) >= coordinatedSwapCount {
		routingLogger.Warn().
			Str("poolID", string(pool.ID)).
			Str("sender", sender).
			Msg("Coordinated attack detected from swap burst")
		return true
	}
	if swapSizeAbs.GT(p.largeSwap) && pool.VolatilityScore > coordinatedVolatilityGate {
		routingLogger.Warn().
			Str("poolID", string(pool.ID)).
			Str("sender", sender).
			Int64("volatilityScore", pool.VolatilityScore).
			Msg("Coordinated attack detected from size and volatility")
		return true
	}
	return false
}

// Deflect packages the swap as an encrypted order, submits a single-order
// batch to the execution network and returns the resulting batch record.
//
// Submission failure is non-fatal: the batch comes back under a local-*
// id and the swap proceeds inline with zero price impact, true execution
// being deferred to the network. Callers distinguish the two by the id
// namespace.
func (p *Policy) Deflect(ctx context.Context, pool *types.PoolState, sender string, swapSizeAbs, minOut math.Int) (*types.OrderBatch, error) {
	amountHandle, err := p.committer.Commit(swapSizeAbs, enclave.Width256, sender)
	if err != nil {
		return nil, err
	}
	minOutHandle, err := p.committer.Commit(minOut, enclave.Width256, sender)
	if err != nil {
		return nil, err
	}

	now := p.clock()
	batch := &types.OrderBatch{
		Orders: []types.EncryptedOrder{{
			PoolID:       pool.ID,
			Trader:       sender,
			AmountHandle: amountHandle,
			MinOutHandle: minOutHandle,
			Deadline:     now.Add(orderDeadline),
		}},
		SubmittedAt: now,
	}

	id, err := p.submitter.Submit(ctx, batch)
	if err != nil {
		batch.BatchID = execnet.LocalBatchID(batch.Orders, now)
		routingLogger.Warn().
			Err(err).
			Str("poolID", string(pool.ID)).
			Str("batchID", batch.BatchID).
			Msg("Execution network submit failed; falling back to local batch id")
		return batch, nil
	}

	batch.BatchID = id
	routingLogger.Info().
		Str("poolID", string(pool.ID)).
		Str("batchID", id).
		Msg("Swap deflected to execution network")
	return batch, nil
}
