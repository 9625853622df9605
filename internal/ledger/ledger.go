/*

This file contains the position ledger. It owns the encrypted position
records (id -> position) and keeps a separate non-owning index from owner
identity to position ids, so deactivation can never leave dangling or
duplicate index entries.

*/

package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/zeebo/blake3"

	"github.com/meridian-dex/mevshield/internal/enclave"
	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var ledgerLogger = logger.GetForComponent("position_ledger")

var ErrPositionNotFound = errors.New("position not found")

// tickOffset shifts signed ticks into the unsigned range the commitment
// store accepts.
const tickOffset = int64(1) << 32

// Committer is the slice of the confidential-computation surface the ledger
// needs: register values and run opaque subtraction on amounts.
type Committer interface {
	Commit(value math.Int, width uint16, owner string) (types.Handle, error)
	Sub(a, b types.Handle) (types.Handle, error)
}

// Ledger tracks per-pool encrypted positions. Safe for concurrent use; the
// engine serializes per-pool operations on top of this anyway.
type Ledger struct {
	mu        sync.Mutex
	committer Committer

	positions  map[types.PositionID]*types.EncryptedPosition
	ownerIndex map[string][]types.PositionID
	counters   map[types.PoolID]uint64

	clock func() time.Time
}

// New builds an empty ledger over the given commitment backend. The clock is
// injectable for tests; nil uses the wall clock.
func New(committer Committer, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		committer:  committer,
		positions:  make(map[types.PositionID]*types.EncryptedPosition),
		ownerIndex: make(map[string][]types.PositionID),
		counters:   make(map[types.PoolID]uint64),
		clock:      clock,
	}
}

// positionID derives a deterministic unique id from the pool, the owner, the
// pool's monotonic counter and the creation time.
func positionID(poolID types.PoolID, owner string, counter uint64, at time.Time) types.PositionID {
	h := blake3.New()
	h.Write([]byte(poolID))
	h.Write([]byte{0})
	h.Write([]byte(owner))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], counter)
	binary.BigEndian.PutUint64(buf[8:], uint64(at.UnixNano()))
	h.Write(buf[:])
	return types.PositionID(hex.EncodeToString(h.Sum(nil)[:20]))
}

// Open creates an encrypted position for a liquidity provision. The amount,
// tick bounds and strategy blob are committed immediately; the ledger never
// stores their plaintext. Returns the new position id.
func (l *Ledger) Open(poolID types.PoolID, owner string, amount math.Int, tickLower, tickUpper int64, strategyBlob []byte) (types.PositionID, error) {
	if owner == "" {
		return "", errors.Join(types.ErrValidation, errors.New("owner identity is required"))
	}
	if amount.IsNil() || !amount.IsPositive() {
		return "", errors.Join(types.ErrValidation, errors.New("position amount must be positive"))
	}

	amountHandle, err := l.committer.Commit(amount, enclave.Width256, owner)
	if err != nil {
		return "", err
	}
	lowerHandle, err := l.committer.Commit(math.NewInt(tickLower+tickOffset), enclave.Width64, owner)
	if err != nil {
		return "", err
	}
	upperHandle, err := l.committer.Commit(math.NewInt(tickUpper+tickOffset), enclave.Width64, owner)
	if err != nil {
		return "", err
	}

	// The strategy blob is committed by digest; the backend holds the blob
	// itself out of band.
	digest := blake3.Sum256(strategyBlob)
	strategyHandle, err := l.committer.Commit(math.NewIntFromBigInt(new(big.Int).SetBytes(digest[:31])), enclave.Width256, owner)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[poolID]++
	now := l.clock()
	id := positionID(poolID, owner, l.counters[poolID], now)

	l.positions[id] = &types.EncryptedPosition{
		ID:             id,
		PoolID:         poolID,
		Owner:          owner,
		AmountHandle:   amountHandle,
		StrategyHandle: strategyHandle,
		TickLower:      lowerHandle,
		TickUpper:      upperHandle,
		CreatedAt:      now,
		IsActive:       true,
	}
	l.ownerIndex[owner] = append(l.ownerIndex[owner], id)

	ledgerLogger.Info().
		Str("poolID", string(poolID)).
		Str("owner", owner).
		Str("positionID", string(id)).
		Msg("Encrypted position opened")

	return id, nil
}

// Get returns a copy of a position record.
func (l *Ledger) Get(id types.PositionID) (types.EncryptedPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[id]
	if !ok {
		return types.EncryptedPosition{}, errors.Join(types.ErrValidation, ErrPositionNotFound)
	}
	return *pos, nil
}

// OwnerPositions returns the ids of all positions opened by an owner,
// including deactivated ones. The slice is a copy.
func (l *Ledger) OwnerPositions(owner string) []types.PositionID {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.ownerIndex[owner]
	out := make([]types.PositionID, len(ids))
	copy(out, ids)
	return out
}

// ApplyRemoval subtracts a removal delta from the stored amount handle via
// opaque arithmetic. No zero-check happens here: deciding whether the
// position is now empty would need a decrypt the ledger cannot perform, so
// deactivation waits for the external confirmation signal.
func (l *Ledger) ApplyRemoval(id types.PositionID, delta math.Int) error {
	if delta.IsNil() || !delta.IsPositive() {
		return errors.Join(types.ErrValidation, errors.New("removal delta must be positive"))
	}

	l.mu.Lock()
	pos, ok := l.positions[id]
	l.mu.Unlock()
	if !ok {
		return errors.Join(types.ErrValidation, ErrPositionNotFound)
	}

	deltaHandle, err := l.committer.Commit(delta, enclave.Width256, pos.Owner)
	if err != nil {
		return err
	}
	newAmount, err := l.committer.Sub(pos.AmountHandle, deltaHandle)
	if err != nil {
		// Underflow propagates as ComputationFailed; the enclosing
		// operation fails with no partial commit.
		return err
	}

	l.mu.Lock()
	pos.AmountHandle = newAmount
	l.mu.Unlock()

	ledgerLogger.Debug().
		Str("positionID", string(id)).
		Msg("Removal applied to committed amount")
	return nil
}

// Reconcile overwrites the stored amount handle with the settlement-derived
// value, so the committed amount tracks realized state rather than the
// originally requested delta.
func (l *Ledger) Reconcile(id types.PositionID, settled math.Int) error {
	if settled.IsNil() || settled.IsNegative() {
		return errors.Join(types.ErrValidation, errors.New("settled amount must be non-negative"))
	}

	l.mu.Lock()
	pos, ok := l.positions[id]
	l.mu.Unlock()
	if !ok {
		return errors.Join(types.ErrValidation, ErrPositionNotFound)
	}

	handle, err := l.committer.Commit(settled, enclave.Width256, pos.Owner)
	if err != nil {
		return err
	}

	l.mu.Lock()
	pos.AmountHandle = handle
	l.mu.Unlock()
	return nil
}

// Deactivate marks a position inactive on the external confirmation that its
// full committed amount was consumed. Positions are never deleted, and the
// owner index keeps the id for audit.
func (l *Ledger) Deactivate(id types.PositionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[id]
	if !ok {
		return errors.Join(types.ErrValidation, ErrPositionNotFound)
	}
	pos.IsActive = false
	ledgerLogger.Info().
		Str("positionID", string(id)).
		Msg("Position deactivated on external confirmation")
	return nil
}
