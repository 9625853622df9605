package ledger

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/mevshield/internal/enclave"
	"github.com/meridian-dex/mevshield/internal/types"
)

func newTestLedger() *Ledger {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	return New(enclave.NewStore(), clock)
}

func TestOpenCreatesEncryptedPosition(t *testing.T) {
	l := newTestLedger()

	id, err := l.Open("pool-1", "alice", math.NewInt(5000), -100, 100, []byte("strategy"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pos, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.PoolID("pool-1"), pos.PoolID)
	assert.Equal(t, "alice", pos.Owner)
	assert.True(t, pos.IsActive)
	assert.False(t, pos.AmountHandle.IsZero())
	assert.False(t, pos.StrategyHandle.IsZero())
	assert.False(t, pos.TickLower.IsZero())
	assert.False(t, pos.TickUpper.IsZero())
	assert.NotContains(t, string(id), "5000", "id must not leak the amount")
}

func TestOpenValidatesInput(t *testing.T) {
	l := newTestLedger()

	_, err := l.Open("pool-1", "", math.NewInt(1), -1, 1, nil)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = l.Open("pool-1", "alice", math.ZeroInt(), -1, 1, nil)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = l.Open("pool-1", "alice", math.NewInt(-5), -1, 1, nil)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestOpenAllowsNegativeTicks(t *testing.T) {
	l := newTestLedger()

	_, err := l.Open("pool-1", "alice", math.NewInt(100), -887272, 887272, nil)
	assert.NoError(t, err)
}

func TestPositionIDsAreUnique(t *testing.T) {
	l := newTestLedger()

	seen := make(map[types.PositionID]struct{})
	for i := 0; i < 20; i++ {
		id, err := l.Open("pool-1", "alice", math.NewInt(100), -10, 10, nil)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate position id %s", id)
		seen[id] = struct{}{}
	}
}

func TestOwnerPositionsIndex(t *testing.T) {
	l := newTestLedger()

	a, err := l.Open("pool-1", "alice", math.NewInt(100), -10, 10, nil)
	require.NoError(t, err)
	b, err := l.Open("pool-2", "alice", math.NewInt(200), -10, 10, nil)
	require.NoError(t, err)
	_, err = l.Open("pool-1", "bob", math.NewInt(300), -10, 10, nil)
	require.NoError(t, err)

	ids := l.OwnerPositions("alice")
	assert.ElementsMatch(t, []types.PositionID{a, b}, ids)
	assert.Empty(t, l.OwnerPositions("carol"))
}

func TestApplyRemovalUpdatesHandle(t *testing.T) {
	l := newTestLedger()
	id, err := l.Open("pool-1", "alice", math.NewInt(1000), -10, 10, nil)
	require.NoError(t, err)

	before, err := l.Get(id)
	require.NoError(t, err)

	require.NoError(t, l.ApplyRemoval(id, math.NewInt(400)))

	after, err := l.Get(id)
	require.NoError(t, err)
	assert.NotEqual(t, before.AmountHandle.Ref, after.AmountHandle.Ref)
	assert.True(t, after.IsActive, "partial removal must not deactivate")
}

func TestApplyRemovalUnderflowLeavesHandleUntouched(t *testing.T) {
	l := newTestLedger()
	id, err := l.Open("pool-1", "alice", math.NewInt(1000), -10, 10, nil)
	require.NoError(t, err)

	before, err := l.Get(id)
	require.NoError(t, err)

	err = l.ApplyRemoval(id, math.NewInt(2000))
	assert.ErrorIs(t, err, types.ErrComputationFailed)

	after, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, before.AmountHandle, after.AmountHandle)
}

func TestApplyRemovalValidation(t *testing.T) {
	l := newTestLedger()

	err := l.ApplyRemoval("missing", math.NewInt(1))
	assert.ErrorIs(t, err, types.ErrValidation)

	id, err := l.Open("pool-1", "alice", math.NewInt(1000), -10, 10, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, l.ApplyRemoval(id, math.ZeroInt()), types.ErrValidation)
}

func TestReconcileOverwritesHandle(t *testing.T) {
	l := newTestLedger()
	id, err := l.Open("pool-1", "alice", math.NewInt(1000), -10, 10, nil)
	require.NoError(t, err)

	before, err := l.Get(id)
	require.NoError(t, err)

	require.NoError(t, l.Reconcile(id, math.NewInt(950)))

	after, err := l.Get(id)
	require.NoError(t, err)
	assert.NotEqual(t, before.AmountHandle.Ref, after.AmountHandle.Ref)
}

func TestDeactivateOnlyOnConfirmation(t *testing.T) {
	l := newTestLedger()
	id, err := l.Open("pool-1", "alice", math.NewInt(1000), -10, 10, nil)
	require.NoError(t, err)

	require.NoError(t, l.Deactivate(id))

	pos, err := l.Get(id)
	require.NoError(t, err)
	assert.False(t, pos.IsActive)

	// Deactivated positions stay queryable and indexed for audit.
	assert.Contains(t, l.OwnerPositions("alice"), id)
}

func TestDeactivateUnknownPosition(t *testing.T) {
	l := newTestLedger()
	assert.ErrorIs(t, l.Deactivate("missing"), types.ErrValidation)
}
