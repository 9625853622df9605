/*

This file contains the protection engine: the hook surface invoked by the
settlement platform around pool initialize, liquidity and swap operations,
plus the administrative surface. The engine owns the keyed pool-state store;
every hook either fully commits or leaves all state untouched.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/mevshield/internal/config"
	"github.com/meridian-dex/mevshield/internal/enclave"
	"github.com/meridian-dex/mevshield/internal/execnet"
	"github.com/meridian-dex/mevshield/internal/fee"
	"github.com/meridian-dex/mevshield/internal/guard"
	"github.com/meridian-dex/mevshield/internal/ledger"
	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/metrics"
	"github.com/meridian-dex/mevshield/internal/risk"
	"github.com/meridian-dex/mevshield/internal/routing"
	"github.com/meridian-dex/mevshield/internal/tracker"
	"github.com/meridian-dex/mevshield/internal/types"
)

// crossPoolVolatilityGate flags arbitrage legs into other hot pools.
const crossPoolVolatilityGate = int64(3000)

// Config holds the dependencies for creating an Engine instance.
type Config struct {
	Enclave   *enclave.Store
	Submitter execnet.Submitter
	Sink      types.EventSink

	// UnitScale is the number of base units per ether-equivalent unit.
	// Nil defaults to 10^18.
	UnitScale *math.Int

	// DefaultBaseFee seeds new pools, in hundredths of a bip.
	DefaultBaseFee int64

	// DefaultConfig seeds new pools' protection configuration.
	DefaultConfig types.MEVProtectionConfig

	// RouteRiskThreshold overrides the deflection gate; <= 0 keeps the
	// default.
	RouteRiskThreshold int64

	// Admin is the initially authorized manager identity.
	Admin string

	// Reputation and Activity are the pluggable strategy points; nil keeps
	// the stub behavior.
	Reputation risk.ReputationScorer
	Activity   routing.ActivityLog

	// Clock is injectable for tests; nil uses the wall clock.
	Clock func() time.Time
}

// SwapDecision is the outcome of the before-swap hook: either an inline fee
// or a deflection to the execution network.
type SwapDecision struct {
	Routed bool              `json:"routed"`
	Batch  *types.OrderBatch `json:"batch,omitempty"`
	Fee    int64             `json:"fee"`
	Risk   types.MEVRisk     `json:"risk"`
}

// Engine owns all per-pool protection state. All operations on a given pool
// are serialized; a failed operation leaves no partial writes.
type Engine struct {
	mu sync.Mutex

	logger    zerolog.Logger
	pools     map[types.PoolID]*types.PoolState
	scorer    *risk.Scorer
	feeCalc   *fee.Calculator
	policy    *routing.Policy
	positions *ledger.Ledger
	enclave   *enclave.Store
	submitter execnet.Submitter
	sink      types.EventSink
	metrics   *metrics.Collector

	managers     map[string]struct{}
	globalPaused bool

	pending map[string]*types.OrderBatch

	unitScale      math.Int
	defaultBaseFee int64
	defaultConfig  types.MEVProtectionConfig
	clock          func() time.Time
}

// New creates an engine instance with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, errors.Join(types.ErrValidation, err)
	}

	unitScale := math.NewIntWithDecimal(1, 18)
	if cfg.UnitScale != nil {
		unitScale = *cfg.UnitScale
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	defaultConfig := cfg.DefaultConfig
	if defaultConfig == (types.MEVProtectionConfig{}) {
		defaultConfig = config.DefaultProtectionConfig
	}
	if err := defaultConfig.Validate(); err != nil {
		return nil, err
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NewLogSink()
	}

	e := &Engine{
		logger:         logger.GetForComponent("protection_engine"),
		pools:          make(map[types.PoolID]*types.PoolState),
		scorer:         risk.NewScorer(unitScale, cfg.Reputation),
		feeCalc:        fee.NewCalculator(unitScale, clock),
		positions:      ledger.New(cfg.Enclave, clock),
		enclave:        cfg.Enclave,
		submitter:      cfg.Submitter,
		sink:           sink,
		metrics:        metrics.GetCollector(),
		managers:       map[string]struct{}{cfg.Admin: {}},
		pending:        make(map[string]*types.OrderBatch),
		unitScale:      unitScale,
		defaultBaseFee: cfg.DefaultBaseFee,
		defaultConfig:  defaultConfig,
		clock:          clock,
	}
	e.policy = routing.NewPolicy(unitScale, cfg.RouteRiskThreshold, cfg.Enclave, cfg.Submitter, cfg.Activity, clock)

	e.logger.Info().
		Str("admin", cfg.Admin).
		Int64("defaultBaseFee", cfg.DefaultBaseFee).
		Msg("Protection engine created")

	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Enclave == nil {
		return fmt.Errorf("enclave store cannot be nil")
	}
	if cfg.Submitter == nil {
		return fmt.Errorf("execution network submitter cannot be nil")
	}
	if cfg.Admin == "" {
		return fmt.Errorf("admin identity cannot be empty")
	}
	if cfg.DefaultBaseFee <= 0 {
		return fmt.Errorf("default base fee must be positive")
	}
	return nil
}

// Ledger exposes the position ledger for read paths.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.positions
}

// pool fetches a live pool under the engine lock.
func (e *Engine) pool(id types.PoolID) (*types.PoolState, error) {
	p, ok := e.pools[id]
	if !ok {
		return nil, errors.Join(types.ErrPoolNotFound, fmt.Errorf("pool %q", id))
	}
	return p, nil
}

// guardOperational rejects operations against paused pools.
func (e *Engine) guardOperational(p *types.PoolState) error {
	if e.globalPaused || p.EmergencyPaused {
		return errors.Join(types.ErrPoolPaused, fmt.Errorf("pool %q", p.ID))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Hook surface (inbound from the settlement platform)
// ---------------------------------------------------------------------------

// OnBeforeInitialize registers a pool with zeroed fee/volatility state and
// the default protection configuration, which it returns for the settlement
// platform to record.
func (e *Engine) OnBeforeInitialize(poolID types.PoolID) (types.MEVProtectionConfig, error) {
	if poolID == "" {
		return types.MEVProtectionConfig{}, errors.Join(types.ErrValidation, errors.New("empty pool id"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pools[poolID]; exists {
		return types.MEVProtectionConfig{}, errors.Join(types.ErrValidation, fmt.Errorf("pool %q already initialized", poolID))
	}

	e.pools[poolID] = types.NewPoolState(poolID, e.defaultBaseFee, e.defaultConfig)

	e.logger.Info().
		Str("poolID", string(poolID)).
		Msg("Pool initialized with default protection config")

	return e.defaultConfig, nil
}

// OnBeforeAddLiquidity runs the liquidity guard against the requested add.
// Suspicious adds are rejected outright as toxic order flow; accepted adds
// open an encrypted position and return its id.
func (e *Engine) OnBeforeAddLiquidity(poolID types.PoolID, delta math.Int, ticks guard.TickRange, provider string, strategyBlob []byte) (types.PositionID, error) {
	if delta.IsNil() || !delta.IsPositive() {
		return "", errors.Join(types.ErrValidation, errors.New("liquidity delta must be positive"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pool(poolID)
	if err != nil {
		return "", err
	}
	if err := e.guardOperational(p); err != nil {
		return "", err
	}

	if guard.IsSuspiciousAdd(p, delta, ticks) {
		e.metrics.AddsRejected.WithLabelValues(string(poolID)).Inc()
		e.emitDetection(poolID, types.DetectSuspiciousAdd, provider, p.MEVRiskScore,
			fmt.Sprintf("delta=%s liquidity=%s span=%d", delta, p.TotalLiquidity, ticks.Span()))
		return "", errors.Join(types.ErrToxicOrderFlow, errors.New("suspicious liquidity add"))
	}

	id, err := e.positions.Open(poolID, provider, delta, ticks.Lower, ticks.Upper, strategyBlob)
	if err != nil {
		return "", err
	}
	e.metrics.PositionsOpened.WithLabelValues(string(poolID)).Inc()
	return id, nil
}

// OnAfterAddLiquidity reconciles the position against the settled delta,
// grows pool liquidity and records the liquidity-change ratio as a
// volatility sample.
func (e *Engine) OnAfterAddLiquidity(poolID types.PoolID, positionID types.PositionID, settledDelta math.Int) error {
	if settledDelta.IsNil() || settledDelta.IsNegative() {
		return errors.Join(types.ErrValidation, errors.New("settled delta must be non-negative"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pool(poolID)
	if err != nil {
		return err
	}

	if err := e.positions.Reconcile(positionID, settledDelta); err != nil {
		return err
	}

	work := p.Clone()
	if work.TotalLiquidity.IsPositive() {
		tracker.Record(work, impactBps(settledDelta, work.TotalLiquidity))
	}
	work.TotalLiquidity = work.TotalLiquidity.Add(settledDelta)
	e.pools[poolID] = work
	return nil
}

// OnBeforeSwap runs the risk scorer, routing policy and fee calculator in
// sequence. The decision is either a deflection to the execution network or
// an inline fee. A detected coordinated attack fails the operation and
// leaves all state untouched.
func (e *Engine) OnBeforeSwap(ctx context.Context, poolID types.PoolID, amountSpecified math.Int, sender string, volData types.VolatilityData) (SwapDecision, error) {
	if amountSpecified.IsNil() || amountSpecified.IsZero() {
		return SwapDecision{}, errors.Join(types.ErrValidation, errors.New("swap amount cannot be zero"))
	}
	swapSizeAbs := amountSpecified.Abs()

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pool(poolID)
	if err != nil {
		return SwapDecision{}, err
	}
	if err := e.guardOperational(p); err != nil {
		return SwapDecision{}, err
	}

	e.metrics.SwapsEvaluated.WithLabelValues(string(poolID)).Inc()

	// All scoring and fee mutation happens on a working copy; it is swapped
	// in only when the operation succeeds.
	work := p.Clone()
	now := e.clock()

	assessment := e.scorer.AssessAdvanced(ctx, work, swapSizeAbs, sender, volData, now, e.submitter)

	if e.policy.DetectCoordinatedAttack(work, sender, swapSizeAbs) {
		e.metrics.SwapsRejected.WithLabelValues(string(poolID)).Inc()
		e.emitDetection(poolID, types.DetectCoordinatedAttack, sender, assessment.RiskScore, "")
		return SwapDecision{}, errors.Join(types.ErrToxicOrderFlow, errors.New("coordinated attack detected"))
	}

	feeResult := e.feeCalc.Compute(work, assessment)
	if feeResult.Significant {
		e.emitFeeChange(poolID, p.CurrentFee, feeResult.Fee, assessment.RiskScore, feeResult.Reason)
	}

	decision := SwapDecision{Fee: feeResult.Fee, Risk: assessment}

	if e.policy.ShouldRoute(assessment, swapSizeAbs) {
		// Deflection is non-fatal even when the network submit fails: the
		// batch falls back to a local id and the swap proceeds inline with
		// zero price impact applied locally.
		batch, err := e.policy.Deflect(ctx, work, sender, swapSizeAbs, math.ZeroInt())
		if err != nil {
			return SwapDecision{}, err
		}
		decision.Routed = true
		decision.Batch = batch
		e.pending[batch.BatchID] = batch

		e.metrics.SwapsRouted.WithLabelValues(string(poolID)).Inc()
		if batch.IsLocal() {
			e.metrics.BatchesFallback.WithLabelValues(string(poolID)).Inc()
		} else {
			e.metrics.BatchesSubmitted.WithLabelValues(string(poolID)).Inc()
		}
		e.emitDetection(poolID, types.DetectRoutedSwap, sender, assessment.RiskScore, batch.BatchID)
	}

	e.pools[poolID] = work
	e.metrics.CurrentFee.WithLabelValues(string(poolID)).Set(float64(work.CurrentFee))
	e.metrics.RiskScore.WithLabelValues(string(poolID)).Set(float64(work.MEVRiskScore))

	return decision, nil
}

// OnAfterSwap updates volatility history from the realized price impact,
// flags potential cross-pool arbitrage read-only against other pools, and
// accrues any captured-MEV reward to the pool.
func (e *Engine) OnAfterSwap(poolID types.PoolID, settledDelta math.Int, capturedReward math.Int) error {
	if settledDelta.IsNil() {
		return errors.Join(types.ErrValidation, errors.New("settled delta is required"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pool(poolID)
	if err != nil {
		return err
	}

	work := p.Clone()
	settledAbs := settledDelta.Abs()

	if work.TotalLiquidity.IsPositive() {
		tracker.Record(work, impactBps(settledAbs, work.TotalLiquidity))
	}
	if !capturedReward.IsNil() && capturedReward.IsPositive() {
		work.RewardAccumulator = work.RewardAccumulator.Add(capturedReward)
	}

	// Cross-pool arbitrage flagging: a large settled swap while another
	// pool is already hot. Other pools are read-only here; each pool's
	// invariants stay independent.
	if settledAbs.GT(e.unitScale.MulRaw(1000)) {
		for otherID, other := range e.pools {
			if otherID == poolID {
				continue
			}
			if other.VolatilityScore > crossPoolVolatilityGate {
				e.emitDetection(poolID, types.DetectCrossPoolArb, "", work.MEVRiskScore, string(otherID))
				break
			}
		}
	}

	e.pools[poolID] = work
	return nil
}

// OnBeforeRemoveLiquidity mirrors the add path with the removal guard:
// suspicious removals are allowed but flagged, with a transient risk bump
// applied as a cooldown-like deterrent. Blocking withdrawals is a worse
// failure mode than tolerating one flagged exit, so this never rejects on
// size alone.
func (e *Engine) OnBeforeRemoveLiquidity(poolID types.PoolID, positionID types.PositionID, delta math.Int, owner string) error {
	if delta.IsNil() || !delta.IsPositive() {
		return errors.Join(types.ErrValidation, errors.New("removal delta must be positive"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pool(poolID)
	if err != nil {
		return err
	}
	if err := e.guardOperational(p); err != nil {
		return err
	}

	pos, err := e.positions.Get(positionID)
	if err != nil {
		return err
	}
	if pos.Owner != owner {
		return errors.Join(types.ErrUnauthorized, errors.New("position owned by another identity"))
	}

	if guard.IsSuspiciousRemoval(p, delta) {
		work := p.Clone()
		guard.ApplyRemovalPenalty(work)
		e.metrics.RemovalsFlagged.WithLabelValues(string(poolID)).Inc()
		e.emitDetection(poolID, types.DetectSuspiciousRemoval, owner, work.MEVRiskScore,
			fmt.Sprintf("delta=%s liquidity=%s", delta, work.TotalLiquidity))
		e.pools[poolID] = work
	}
	return nil
}

// OnAfterRemoveLiquidity applies the settled removal to the committed
// position amount via opaque subtraction, shrinks pool liquidity and records
// the removal ratio as a volatility sample. An underflow in the subtraction
// propagates as ComputationFailed with no partial commit.
func (e *Engine) OnAfterRemoveLiquidity(poolID types.PoolID, positionID types.PositionID, settledDelta math.Int) error {
	if settledDelta.IsNil() || !settledDelta.IsPositive() {
		return errors.Join(types.ErrValidation, errors.New("settled delta must be positive"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pool(poolID)
	if err != nil {
		return err
	}

	if err := e.positions.ApplyRemoval(positionID, settledDelta); err != nil {
		return err
	}

	work := p.Clone()
	if work.TotalLiquidity.IsPositive() {
		tracker.Record(work, impactBps(settledDelta, work.TotalLiquidity))
	}
	work.TotalLiquidity = work.TotalLiquidity.Sub(settledDelta)
	if work.TotalLiquidity.IsNegative() {
		work.TotalLiquidity = math.ZeroInt()
	}

	e.pools[poolID] = work
	return nil
}

// ---------------------------------------------------------------------------
// Batch lifecycle
// ---------------------------------------------------------------------------

// ProcessOrderBatch is the callback path from the execution network. A batch
// transitions pending -> processed exactly once.
func (e *Engine) ProcessOrderBatch(batchID, resultHash string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch, ok := e.pending[batchID]
	if !ok {
		return errors.Join(types.ErrValidation, fmt.Errorf("unknown batch %q", batchID))
	}
	if batch.Processed {
		e.metrics.BatchesResolved.WithLabelValues("duplicate").Inc()
		return types.ErrBatchAlreadyProcessed
	}

	batch.Processed = true
	batch.ResultHash = resultHash
	e.metrics.BatchesResolved.WithLabelValues("processed").Inc()

	e.logger.Info().
		Str("batchID", batchID).
		Str("resultHash", resultHash).
		Msg("Order batch processed")
	return nil
}

// ForceResolveBatch lets an authorized administrator resolve a batch stuck
// pending past the timeout window. The engine never does this on its own.
func (e *Engine) ForceResolveBatch(manager, batchID, resultHash string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireManager(manager); err != nil {
		return err
	}

	batch, ok := e.pending[batchID]
	if !ok {
		return errors.Join(types.ErrValidation, fmt.Errorf("unknown batch %q", batchID))
	}
	if batch.Processed {
		return types.ErrBatchAlreadyProcessed
	}
	if !batch.TimedOut(e.clock()) {
		return types.ErrBatchTimeout
	}

	batch.Processed = true
	batch.ResultHash = resultHash
	e.metrics.BatchesResolved.WithLabelValues("forced").Inc()

	e.logger.Warn().
		Str("batchID", batchID).
		Str("manager", manager).
		Msg("Order batch force-resolved by administrator")
	return nil
}

// PendingBatches returns copies of all batches still awaiting resolution.
func (e *Engine) PendingBatches() []types.OrderBatch {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.OrderBatch, 0, len(e.pending))
	for _, b := range e.pending {
		if !b.Processed {
			cp := *b
			cp.Orders = append([]types.EncryptedOrder(nil), b.Orders...)
			out = append(out, cp)
		}
	}
	return out
}

// RestorePendingBatches reloads persisted, still-unprocessed batches into
// the pending registry after a restart, so deflected orders survive the
// process. Already-known and already-processed batches are skipped; returns
// the number restored.
func (e *Engine) RestorePendingBatches(batches []types.OrderBatch) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	restored := 0
	for _, b := range batches {
		if b.Processed {
			continue
		}
		if _, ok := e.pending[b.BatchID]; ok {
			continue
		}
		cp := b
		cp.Orders = append([]types.EncryptedOrder(nil), b.Orders...)
		e.pending[cp.BatchID] = &cp
		restored++
	}
	if restored > 0 {
		e.logger.Info().
			Int("restored", restored).
			Msg("Pending batches restored from store")
	}
	return restored
}

// AuditStaleBatches logs batches pending past the timeout window and
// returns their ids. Resolution remains an administrator decision.
func (e *Engine) AuditStaleBatches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	var stale []string
	for id, b := range e.pending {
		if b.TimedOut(now) {
			stale = append(stale, id)
			e.logger.Warn().
				Str("batchID", id).
				Time("submittedAt", b.SubmittedAt).
				Msg("Batch pending past timeout; administrator resolution required")
		}
	}
	return stale
}

// ---------------------------------------------------------------------------
// Administrative surface
// ---------------------------------------------------------------------------

func (e *Engine) requireManager(identity string) error {
	if _, ok := e.managers[identity]; !ok {
		return errors.Join(types.ErrUnauthorized, fmt.Errorf("identity %q is not an authorized manager", identity))
	}
	return nil
}

// AuthorizeManager adds a manager identity. Caller must already be one.
func (e *Engine) AuthorizeManager(caller, identity string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if identity == "" {
		return errors.Join(types.ErrValidation, errors.New("empty manager identity"))
	}
	e.managers[identity] = struct{}{}
	return nil
}

// DeauthorizeManager removes a manager identity.
func (e *Engine) DeauthorizeManager(caller, identity string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	delete(e.managers, identity)
	return nil
}

// SetPoolPaused pauses or resumes a single pool.
func (e *Engine) SetPoolPaused(caller string, poolID types.PoolID, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	p, err := e.pool(poolID)
	if err != nil {
		return err
	}
	p.EmergencyPaused = paused
	e.logger.Warn().
		Str("poolID", string(poolID)).
		Bool("paused", paused).
		Str("manager", caller).
		Msg("Pool pause state changed")
	return nil
}

// SetGlobalPaused pauses or resumes the whole engine.
func (e *Engine) SetGlobalPaused(caller string, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	e.globalPaused = paused
	e.logger.Warn().
		Bool("paused", paused).
		Str("manager", caller).
		Msg("Global pause state changed")
	return nil
}

// UpdateConfig replaces a pool's protection configuration after validating
// the invariants; invalid configs never reach pool state.
func (e *Engine) UpdateConfig(caller string, poolID types.PoolID, cfg types.MEVProtectionConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p, err := e.pool(poolID)
	if err != nil {
		return err
	}
	p.Config = cfg
	e.logger.Info().
		Str("poolID", string(poolID)).
		Str("manager", caller).
		Msg("Protection config updated")
	return nil
}

// TrustSender exempts a sender from the historical-behavior contribution.
func (e *Engine) TrustSender(caller, sender string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	e.scorer.Trust(sender)
	return nil
}

// UntrustSender reverses TrustSender, restoring the historical-behavior
// contribution for the sender.
func (e *Engine) UntrustSender(caller, sender string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	e.scorer.Untrust(sender)
	return nil
}

// ConfirmPositionClosed is the external confirmation signal that a
// position's full committed amount was consumed; only this deactivates a
// position.
func (e *Engine) ConfirmPositionClosed(caller string, positionID types.PositionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	return e.positions.Deactivate(positionID)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// PoolSnapshot returns a deep copy of a pool's state.
func (e *Engine) PoolSnapshot(poolID types.PoolID) (*types.PoolState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(poolID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// RevealPositionAmount seals a position's committed amount to the owner's
// recipient key. Only the position owner may request the reveal; the value
// comes back as a sealed box only the matching private key can open.
func (e *Engine) RevealPositionAmount(owner string, positionID types.PositionID, recipientPub *[32]byte) ([]byte, error) {
	pos, err := e.positions.Get(positionID)
	if err != nil {
		return nil, err
	}
	if pos.Owner != owner {
		return nil, errors.Join(types.ErrUnauthorized, errors.New("position owned by another identity"))
	}
	return e.enclave.Reveal(pos.AmountHandle, owner, recipientPub)
}

// PoolIDs lists all initialized pools.
func (e *Engine) PoolIDs() []types.PoolID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.PoolID, 0, len(e.pools))
	for id := range e.pools {
		out = append(out, id)
	}
	return out
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// impactBps converts an amount change into a basis-point impact against
// current liquidity, clamped to the score bound.
func impactBps(amount, liquidity math.Int) int64 {
	impact := amount.MulRaw(types.BpsOne).Quo(liquidity)
	if !impact.IsInt64() || impact.Int64() > types.MaxRiskScore {
		return types.MaxRiskScore
	}
	return impact.Int64()
}

func (e *Engine) emitDetection(poolID types.PoolID, kind types.DetectionKind, sender string, score int64, detail string) {
	e.sink.Detected(types.DetectionEvent{
		EventID:   newEventID(),
		PoolID:    poolID,
		Kind:      kind,
		Sender:    sender,
		RiskScore: score,
		Detail:    detail,
		At:        e.clock(),
	})
}

func (e *Engine) emitFeeChange(poolID types.PoolID, oldFee, newFee, score int64, reason types.FeeChangeReason) {
	e.sink.FeeChanged(types.FeeChangeEvent{
		EventID:   newEventID(),
		PoolID:    poolID,
		OldFee:    oldFee,
		NewFee:    newFee,
		RiskScore: score,
		Reason:    reason,
		At:        e.clock(),
	})
	e.metrics.FeeChanges.WithLabelValues(string(poolID), string(reason)).Inc()
}
