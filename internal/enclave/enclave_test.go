package enclave

import (
	"crypto/rand"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/meridian-dex/mevshield/internal/types"
)

func TestCommitReturnsOpaqueHandle(t *testing.T) {
	s := NewStore()

	h, err := s.Commit(math.NewInt(42), Width64, "alice")
	require.NoError(t, err)
	assert.False(t, h.IsZero())
	assert.Equal(t, Width64, h.Width)
	assert.NotContains(t, h.Ref, "42", "handle must not leak the value")
}

func TestCommitRejectsUnsupportedWidth(t *testing.T) {
	s := NewStore()

	_, err := s.Commit(math.NewInt(1), 128, "alice")
	assert.ErrorIs(t, err, types.ErrEncryptionFailed)
}

func TestCommitRejectsNegativeValue(t *testing.T) {
	s := NewStore()

	_, err := s.Commit(math.NewInt(-1), Width64, "alice")
	assert.ErrorIs(t, err, types.ErrEncryptionFailed)
}

func TestCommitRejectsValueExceedingWidth(t *testing.T) {
	s := NewStore()

	tooWide := math.NewIntWithDecimal(1, 12) // Over 2^32.
	_, err := s.Commit(tooWide, Width32, "alice")
	assert.ErrorIs(t, err, types.ErrEncryptionFailed)

	_, err = s.Commit(tooWide, Width64, "alice")
	assert.NoError(t, err)
}

func TestAddCommitsSum(t *testing.T) {
	s := NewStore()
	a, err := s.Commit(math.NewInt(30), Width64, "alice")
	require.NoError(t, err)
	b, err := s.Commit(math.NewInt(12), Width64, "alice")
	require.NoError(t, err)

	sum, err := s.Add(a, b)
	require.NoError(t, err)

	pub, priv := testKeyPair(t)
	assert.Equal(t, "42", openReveal(t, s, sum, "alice", pub, priv))
}

func TestAddOverflowFails(t *testing.T) {
	s := NewStore()
	maxish := math.NewIntFromUint64(1<<63 - 1).MulRaw(2).AddRaw(1) // 2^64 - 1
	a, err := s.Commit(maxish, Width64, "alice")
	require.NoError(t, err)
	b, err := s.Commit(math.OneInt(), Width64, "alice")
	require.NoError(t, err)

	_, err = s.Add(a, b)
	assert.ErrorIs(t, err, types.ErrComputationFailed)
}

func TestSubUnderflowFails(t *testing.T) {
	s := NewStore()
	a, err := s.Commit(math.NewInt(5), Width64, "alice")
	require.NoError(t, err)
	b, err := s.Commit(math.NewInt(6), Width64, "alice")
	require.NoError(t, err)

	_, err = s.Sub(a, b)
	assert.ErrorIs(t, err, types.ErrComputationFailed)

	diff, err := s.Sub(b, a)
	require.NoError(t, err)

	pub, priv := testKeyPair(t)
	assert.Equal(t, "1", openReveal(t, s, diff, "alice", pub, priv))
}

func TestBinaryOpsRejectWidthMismatch(t *testing.T) {
	s := NewStore()
	a, err := s.Commit(math.NewInt(5), Width64, "alice")
	require.NoError(t, err)
	b, err := s.Commit(math.NewInt(6), Width256, "alice")
	require.NoError(t, err)

	_, err = s.Add(a, b)
	assert.ErrorIs(t, err, ErrWidthMismatch)
	_, err = s.Sub(a, b)
	assert.ErrorIs(t, err, ErrWidthMismatch)
	_, err = s.Compare(a, b)
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestBinaryOpsRejectUnknownHandle(t *testing.T) {
	s := NewStore()
	a, err := s.Commit(math.NewInt(5), Width64, "alice")
	require.NoError(t, err)

	_, err = s.Add(a, types.Handle{Ref: "missing", Width: Width64})
	assert.ErrorIs(t, err, ErrUnknownHandle)
	_, err = s.Add(a, types.Handle{})
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestCompareStaysOpaque(t *testing.T) {
	s := NewStore()
	a, err := s.Commit(math.NewInt(9), Width64, "alice")
	require.NoError(t, err)
	b, err := s.Commit(math.NewInt(3), Width64, "alice")
	require.NoError(t, err)

	outcome, err := s.Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, Width32, outcome.Width)

	pub, priv := testKeyPair(t)
	assert.Equal(t, "1", openReveal(t, s, outcome, "alice", pub, priv))

	outcome, err = s.Compare(b, a)
	require.NoError(t, err)
	assert.Equal(t, "0", openReveal(t, s, outcome, "alice", pub, priv))
}

func TestRevealRoundTrip(t *testing.T) {
	s := NewStore()
	h, err := s.Commit(math.NewInt(123456), Width256, "alice")
	require.NoError(t, err)

	pub, priv := testKeyPair(t)
	sealed, err := s.Reveal(h, "alice", pub)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "123456")

	opened, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	require.True(t, ok)
	assert.Equal(t, "123456", string(opened))
}

func TestRevealRejectsNonOwner(t *testing.T) {
	s := NewStore()
	h, err := s.Commit(math.NewInt(7), Width64, "alice")
	require.NoError(t, err)

	pub, _ := testKeyPair(t)
	_, err = s.Reveal(h, "mallory", pub)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func testKeyPair(t *testing.T) (*[32]byte, *[32]byte) {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func openReveal(t *testing.T, s *Store, h types.Handle, owner string, pub, priv *[32]byte) string {
	t.Helper()
	sealed, err := s.Reveal(h, owner, pub)
	require.NoError(t, err)
	opened, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	require.True(t, ok)
	return string(opened)
}
