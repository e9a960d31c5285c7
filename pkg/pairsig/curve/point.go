package curve

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

// Point is a secp256k1 group element kept in affine form. The zero value is
// the identity.
type Point struct {
	p btcec.JacobianPoint
}

func isInfinity(j *btcec.JacobianPoint) bool {
	return j.Z.IsZero() || (j.X.IsZero() && j.Y.IsZero())
}

// newPoint takes ownership of j and normalizes it to affine coordinates.
func newPoint(j *btcec.JacobianPoint) *Point {
	if isInfinity(j) {
		return &Point{}
	}
	j.ToAffine()
	return &Point{p: *j}
}

// Identity returns the point at infinity.
func Identity() *Point {
	return &Point{}
}

// ParsePoint decodes a 33-byte SEC1 compressed point.
func ParsePoint(b []byte) (*Point, error) {
	if len(b) != PointSize {
		return nil, pairsig.Errorf(ErrMalformedPoint, "want %d bytes, got %d", PointSize, len(b))
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return nil, pairsig.Errorf(ErrMalformedPoint, "bad compression prefix")
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, pairsig.Errorf(ErrMalformedPoint, "%v", err)
	}
	var j btcec.JacobianPoint
	pub.AsJacobian(&j)
	return newPoint(&j), nil
}

// LiftX returns the point with the given 32-byte x-coordinate and y parity.
func LiftX(x []byte, odd bool) (*Point, error) {
	if len(x) != ScalarSize {
		return nil, pairsig.Errorf(ErrMalformedPoint, "want %d-byte x, got %d", ScalarSize, len(x))
	}
	enc := make([]byte, PointSize)
	enc[0] = 0x02
	if odd {
		enc[0] = 0x03
	}
	copy(enc[1:], x)
	return ParsePoint(enc)
}

// ScalarBaseMult returns k*G.
func ScalarBaseMult(k *Scalar) *Point {
	var r btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k.s, &r)
	return newPoint(&r)
}

// ScalarMult returns k*p.
func ScalarMult(p *Point, k *Scalar) *Point {
	if p.IsIdentity() {
		return Identity()
	}
	in := p.p
	var r btcec.JacobianPoint
	btcec.ScalarMultNonConst(&k.s, &in, &r)
	return newPoint(&r)
}

// Add returns a + b.
func Add(a, b *Point) *Point {
	return a.Add(b)
}

// Add returns p + o.
func (p *Point) Add(o *Point) *Point {
	switch {
	case p.IsIdentity():
		return o.Clone()
	case o.IsIdentity():
		return p.Clone()
	}
	a, b := p.p, o.p
	var r btcec.JacobianPoint
	btcec.AddNonConst(&a, &b, &r)
	return newPoint(&r)
}

// Bytes returns the 33-byte compressed encoding of p. The identity has no
// such encoding.
func (p *Point) Bytes() ([]byte, error) {
	if p.IsIdentity() {
		return nil, pairsig.Errorf(ErrMalformedPoint, "identity has no compressed encoding")
	}
	x, y := p.p.X, p.p.Y
	return btcec.NewPublicKey(&x, &y).SerializeCompressed(), nil
}

// UncompressedBytes returns the 65-byte SEC1 uncompressed encoding of p.
func (p *Point) UncompressedBytes() ([]byte, error) {
	if p.IsIdentity() {
		return nil, pairsig.Errorf(ErrMalformedPoint, "identity has no uncompressed encoding")
	}
	x, y := p.p.X, p.p.Y
	return btcec.NewPublicKey(&x, &y).SerializeUncompressed(), nil
}

// XBytes returns the 32-byte big-endian x-coordinate of p, or 32 zero bytes
// for the identity.
func (p *Point) XBytes() []byte {
	var out [32]byte
	if p.IsIdentity() {
		return out[:]
	}
	x := p.p.X
	x.Normalize()
	x.PutBytes(&out)
	return out[:]
}

// Equal reports whether p and o are the same group element.
func (p *Point) Equal(o *Point) bool {
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() == o.IsIdentity()
	}
	px, py := p.p.X, p.p.Y
	ox, oy := o.p.X, o.p.Y
	px.Normalize()
	py.Normalize()
	ox.Normalize()
	oy.Normalize()
	return px.Equals(&ox) && py.Equals(&oy)
}

// IsIdentity reports whether p is the point at infinity.
func (p *Point) IsIdentity() bool {
	return isInfinity(&p.p)
}

// Clone returns an independent copy of p.
func (p *Point) Clone() *Point {
	c := *p
	return &c
}
