package curve

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

// maxSampleAttempts bounds rejection sampling. The chance of a single 32-byte
// draw landing outside [1, q-1] is below 2^-127.
const maxSampleAttempts = 64

// Scalar is an integer modulo the secp256k1 group order. The zero value is 0.
//
// Methods never mutate their arguments; arithmetic returns a fresh Scalar.
type Scalar struct {
	s btcec.ModNScalar
}

// NewScalar returns a scalar holding v.
func NewScalar(v uint32) *Scalar {
	var k Scalar
	k.s.SetInt(v)
	return &k
}

// RandomScalar returns a uniformly random scalar in [1, q-1] read from rng.
// A nil rng selects crypto/rand.Reader.
func RandomScalar(rng io.Reader) (*Scalar, error) {
	if rng == nil {
		rng = rand.Reader
	}
	var buf [ScalarSize]byte
	defer pairsig.ZeroizeBytes(buf[:])

	for i := 0; i < maxSampleAttempts; i++ {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return nil, fmt.Errorf("curve: read randomness: %w", err)
		}
		var k Scalar
		if overflow := k.s.SetBytes(&buf); overflow != 0 || k.s.IsZero() {
			continue
		}
		return &k, nil
	}
	return nil, errors.New("curve: random source produced no valid scalar")
}

// ParseScalar decodes a 32-byte big-endian scalar. Values not below q are
// rejected rather than reduced.
func ParseScalar(b []byte) (*Scalar, error) {
	if len(b) != ScalarSize {
		return nil, pairsig.Errorf(ErrMalformedScalar, "want %d bytes, got %d", ScalarSize, len(b))
	}
	var k Scalar
	if overflow := k.s.SetByteSlice(b); overflow {
		return nil, pairsig.Errorf(ErrMalformedScalar, "value not below group order")
	}
	return &k, nil
}

// ReduceScalar interprets up to 32 big-endian bytes as an integer and reduces
// it modulo q.
func ReduceScalar(b []byte) (*Scalar, error) {
	if len(b) > ScalarSize {
		return nil, pairsig.Errorf(ErrMalformedScalar, "want at most %d bytes, got %d", ScalarSize, len(b))
	}
	var k Scalar
	k.s.SetByteSlice(b)
	return &k, nil
}

// HashToScalar returns SHA-256 over the concatenation of parts, interpreted as
// a big-endian integer and reduced modulo q.
func HashToScalar(parts ...[]byte) *Scalar {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var digest [sha256.Size]byte
	h.Sum(digest[:0])

	var k Scalar
	k.s.SetBytes(&digest)
	return &k
}

// Bytes returns the 32-byte big-endian encoding of k.
func (k *Scalar) Bytes() []byte {
	b := k.s.Bytes()
	return b[:]
}

// Add returns k + o mod q.
func (k *Scalar) Add(o *Scalar) *Scalar {
	var r Scalar
	r.s.Add2(&k.s, &o.s)
	return &r
}

// Mul returns k * o mod q.
func (k *Scalar) Mul(o *Scalar) *Scalar {
	var r Scalar
	r.s.Mul2(&k.s, &o.s)
	return &r
}

// Negate returns -k mod q.
func (k *Scalar) Negate() *Scalar {
	var r Scalar
	r.s.NegateVal(&k.s)
	return &r
}

// Equal reports whether k and o hold the same value.
func (k *Scalar) Equal(o *Scalar) bool {
	return k.s.Equals(&o.s)
}

// IsZero reports whether k is 0.
func (k *Scalar) IsZero() bool {
	return k.s.IsZero()
}

// Clone returns an independent copy of k.
func (k *Scalar) Clone() *Scalar {
	var r Scalar
	r.s.Set(&k.s)
	return &r
}

// Zeroize overwrites the value held by k. A nil receiver is a no-op.
func (k *Scalar) Zeroize() {
	if k == nil {
		return
	}
	k.s.Zero()
}
