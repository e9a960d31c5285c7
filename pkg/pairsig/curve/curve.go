package curve

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

const (
	// ScalarSize is the encoded length of a scalar.
	ScalarSize = 32
	// PointSize is the encoded length of a compressed point.
	PointSize = 33
)

// Re-exported so callers of this package alone can match on them.
var (
	ErrMalformedPoint  = pairsig.ErrMalformedPoint
	ErrMalformedScalar = pairsig.ErrMalformedScalar
)

// Order returns a copy of the secp256k1 group order q.
func Order() *big.Int {
	return new(big.Int).Set(btcec.S256().Params().N)
}

// Generator returns the base point G.
func Generator() *Point {
	var one btcec.ModNScalar
	one.SetInt(1)
	var g btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&one, &g)
	return newPoint(&g)
}
