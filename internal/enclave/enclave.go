/*

This file contains the client-side model of the confidential-computation
collaborator. Values are committed into the store and thereafter referenced
only by opaque handles; the permitted operations are width-checked
arithmetic, comparison, and an owner-gated reveal that seals the value to a
recipient key. There is no synchronous decrypt.

*/

package enclave

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var enclaveLogger = logger.GetForComponent("enclave")

// Supported commitment widths.
const (
	Width32  = uint16(32)
	Width64  = uint16(64)
	Width256 = uint16(256)
)

var ErrUnknownHandle = errors.New("unknown or uninitialized handle")
var ErrWidthMismatch = errors.New("operand width mismatch")

// committed is one stored value. The plaintext lives only inside the store,
// which stands in for the external backend; nothing outside this package can
// read it except through Reveal.
type committed struct {
	value math.Int
	width uint16
	owner string
}

// Store is an in-process commitment store. All operations are safe for
// concurrent use.
type Store struct {
	mu     sync.Mutex
	values map[string]committed
}

// NewStore returns an empty commitment store.
func NewStore() *Store {
	return &Store{values: make(map[string]committed)}
}

// supportedWidth reports whether a width is one of the three the backend
// exposes.
func supportedWidth(width uint16) bool {
	return width == Width32 || width == Width64 || width == Width256
}

// fitsWidth reports whether a non-negative value fits in width bits.
func fitsWidth(v math.Int, width uint16) bool {
	return v.BigInt().BitLen() <= int(width)
}

// Commit registers a value under a fresh opaque handle. Negative values and
// values outside the width's range are refused with ErrEncryptionFailed.
func (s *Store) Commit(value math.Int, width uint16, owner string) (types.Handle, error) {
	if !supportedWidth(width) {
		return types.Handle{}, errors.Join(types.ErrEncryptionFailed, fmt.Errorf("unsupported width %d", width))
	}
	if value.IsNegative() || !fitsWidth(value, width) {
		return types.Handle{}, errors.Join(types.ErrEncryptionFailed, fmt.Errorf("value out of range for width %d", width))
	}

	ref := uuid.NewString()
	s.mu.Lock()
	s.values[ref] = committed{value: value, width: width, owner: owner}
	s.mu.Unlock()

	enclaveLogger.Debug().
		Str("ref", ref).
		Uint16("width", width).
		Msg("Value committed")

	return types.Handle{Ref: ref, Width: width}, nil
}

// lookup fetches a stored value for a handle.
func (s *Store) lookup(h types.Handle) (committed, error) {
	if h.IsZero() {
		return committed{}, errors.Join(types.ErrComputationFailed, ErrUnknownHandle)
	}
	s.mu.Lock()
	c, ok := s.values[h.Ref]
	s.mu.Unlock()
	if !ok {
		return committed{}, errors.Join(types.ErrComputationFailed, ErrUnknownHandle)
	}
	return c, nil
}

// binary fetches both operands, enforcing equal widths.
func (s *Store) binary(a, b types.Handle) (committed, committed, error) {
	ca, err := s.lookup(a)
	if err != nil {
		return committed{}, committed{}, err
	}
	cb, err := s.lookup(b)
	if err != nil {
		return committed{}, committed{}, err
	}
	if ca.width != cb.width {
		return committed{}, committed{}, errors.Join(types.ErrComputationFailed, ErrWidthMismatch)
	}
	return ca, cb, nil
}

// Add commits the sum of two committed values. The result does not wrap:
// exceeding the width's range fails.
func (s *Store) Add(a, b types.Handle) (types.Handle, error) {
	ca, cb, err := s.binary(a, b)
	if err != nil {
		return types.Handle{}, err
	}
	sum := new(big.Int).Add(ca.value.BigInt(), cb.value.BigInt())
	if sum.BitLen() > int(ca.width) {
		return types.Handle{}, errors.Join(types.ErrComputationFailed, errors.New("addition overflow"))
	}
	return s.Commit(math.NewIntFromBigInt(sum), ca.width, ca.owner)
}

// Sub commits the difference of two committed values. Underflow (b > a) is a
// hard ComputationFailed, matching the backend's unsigned semantics.
func (s *Store) Sub(a, b types.Handle) (types.Handle, error) {
	ca, cb, err := s.binary(a, b)
	if err != nil {
		return types.Handle{}, err
	}
	if cb.value.GT(ca.value) {
		return types.Handle{}, errors.Join(types.ErrComputationFailed, errors.New("subtraction underflow"))
	}
	return s.Commit(ca.value.Sub(cb.value), ca.width, ca.owner)
}

// Compare commits an opaque boolean (a >= b) as a width-32 commitment owned
// by a's owner. The caller cannot read the outcome locally; only a reveal
// recipient can.
func (s *Store) Compare(a, b types.Handle) (types.Handle, error) {
	ca, cb, err := s.binary(a, b)
	if err != nil {
		return types.Handle{}, err
	}
	outcome := math.ZeroInt()
	if ca.value.GTE(cb.value) {
		outcome = math.OneInt()
	}
	return s.Commit(outcome, Width32, ca.owner)
}

// Reveal seals the committed value to the recipient's public key, gated on
// ownership. The returned bytes are an anonymous sealed box over the
// value's decimal encoding; only the holder of the matching private key can
// open them. The plaintext never leaves the store unsealed.
func (s *Store) Reveal(h types.Handle, owner string, recipientPub *[32]byte) ([]byte, error) {
	c, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	if c.owner != owner {
		return nil, errors.Join(types.ErrUnauthorized, errors.New("reveal requested by non-owner"))
	}

	sealed, err := box.SealAnonymous(nil, []byte(c.value.String()), recipientPub, rand.Reader)
	if err != nil {
		return nil, errors.Join(types.ErrEncryptionFailed, err)
	}

	enclaveLogger.Debug().
		Str("ref", h.Ref).
		Str("owner", owner).
		Msg("Committed value revealed to recipient key")

	return sealed, nil
}
