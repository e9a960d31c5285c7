package schnorr2p

import (
	"crypto/subtle"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/curve"
)

// Signature is a combined two-party Schnorr signature.
type Signature struct {
	// RPoint is the aggregated nonce point R_agg, SEC1 compressed.
	RPoint []byte
	// R is x(R_agg) mod q, 32 bytes big-endian.
	R []byte
	// S is s_A + s_B mod q, 32 bytes big-endian.
	S []byte
}

// KeyExchangeResult reports the outcome of the key exchange.
type KeyExchangeResult struct {
	Session       string
	PublicShare   []byte // own compressed share
	PeerShare     []byte // counterparty's compressed share
	AggregatedKey []byte // P_agg, compressed
}

// SignResult reports one completed signing round.
type SignResult struct {
	Session       string // round identifier carried by SIGN_REQUEST
	Message       []byte
	AggregatedKey []byte
	Signature     *Signature
	// Valid is the local verification result. A round that reaches the
	// caller always has Valid set; invalid rounds fail with
	// pairsig.ErrInvalidSignature instead.
	Valid bool
}

// Challenge computes c = SHA256(x(rAgg) || pAgg || message) mod q, where pAgg
// is the 33-byte compressed aggregated key.
func Challenge(rAgg, pAgg *curve.Point, message []byte) (*curve.Scalar, error) {
	if rAgg.IsIdentity() {
		return nil, pairsig.Errorf(pairsig.ErrMalformedPoint, "aggregated nonce is the identity")
	}
	pb, err := pAgg.Bytes()
	if err != nil {
		return nil, err
	}
	return curve.HashToScalar(rAgg.XBytes(), pb, message), nil
}

// rFromPoint returns x(R) mod q.
func rFromPoint(p *curve.Point) []byte {
	r, _ := curve.ReduceScalar(p.XBytes())
	return r.Bytes()
}

// verifyEquation checks s*G == R + c*P.
func verifyEquation(pub, rPoint *curve.Point, s *curve.Scalar, message []byte) (bool, error) {
	c, err := Challenge(rPoint, pub, message)
	if err != nil {
		return false, err
	}
	lhs := curve.ScalarBaseMult(s)
	rhs := curve.Add(rPoint, curve.ScalarMult(pub, c))
	return lhs.Equal(rhs), nil
}

// Verify checks sig against the compressed aggregated key pub. It returns nil
// for a valid signature and an error wrapping pairsig.ErrInvalidSignature,
// ErrMalformedPoint or ErrMalformedScalar otherwise.
//
// The equation is checked against sig.RPoint. sig.R is optional: when set it
// must equal x(RPoint) mod q, and when empty it is not checked, since it is
// derived from RPoint. Use VerifyRS for signatures that carry only (r, s).
func Verify(pub, message []byte, sig *Signature) error {
	if sig == nil {
		return pairsig.Errorf(pairsig.ErrInvalidSignature, "nil signature")
	}
	p, err := curve.ParsePoint(pub)
	if err != nil {
		return err
	}
	rPoint, err := curve.ParsePoint(sig.RPoint)
	if err != nil {
		return err
	}
	s, err := curve.ParseScalar(sig.S)
	if err != nil {
		return err
	}
	if len(sig.R) != 0 && subtle.ConstantTimeCompare(sig.R, rFromPoint(rPoint)) != 1 {
		return pairsig.Errorf(pairsig.ErrInvalidSignature, "r does not match nonce point")
	}
	ok, err := verifyEquation(p, rPoint, s, message)
	if err != nil {
		return err
	}
	if !ok {
		return pairsig.Errorf(pairsig.ErrInvalidSignature, "verification equation failed")
	}
	return nil
}

// VerifyRS checks the bare (r, s) form of a signature. The nonce point is
// recovered from r by trying both y parities, so r must be the x-coordinate
// itself; values of x(R_agg) at or above q (probability about 2^-128) do not
// survive the reduction and fail to verify.
func VerifyRS(pub, message, r, s []byte) error {
	p, err := curve.ParsePoint(pub)
	if err != nil {
		return err
	}
	sc, err := curve.ParseScalar(s)
	if err != nil {
		return err
	}
	for _, odd := range []bool{false, true} {
		rPoint, err := curve.LiftX(r, odd)
		if err != nil {
			return err
		}
		ok, err := verifyEquation(p, rPoint, sc, message)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return pairsig.Errorf(pairsig.ErrInvalidSignature, "no nonce point for r satisfies the verification equation")
}
