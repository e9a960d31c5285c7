// Package curve provides the secp256k1 group arithmetic used by the two-party
// Schnorr protocol.
//
// It wraps github.com/btcsuite/btcd/btcec/v2 behind two small value types:
//
//   - Scalar: an integer modulo the group order q
//   - Point: an element of the secp256k1 group, or the identity
//
// # Encodings
//
// Scalars are encoded as fixed-width 32-byte big-endian values, zero padded.
// Points are encoded in 33-byte SEC1 compressed form (0x02/0x03 parity prefix
// followed by the 32-byte x-coordinate). Both encodings round-trip exactly:
//
//	k, _ := curve.ParseScalar(s.Bytes())  // k.Equal(s)
//	q, _ := curve.ParsePoint(pBytes)      // q.Bytes() == pBytes
//
// Decoding never substitutes a default. Bytes of the wrong length, a bad
// prefix, or an x-coordinate with no point on the curve fail with
// ErrMalformedPoint; scalars that are not exactly 32 bytes or are not below q
// fail with ErrMalformedScalar. The identity has no compressed encoding and
// (*Point).Bytes reports ErrMalformedPoint for it.
//
// # Randomness
//
// RandomScalar draws from a caller-supplied io.Reader, which must be a CSPRNG.
// Passing nil selects crypto/rand.Reader. Samples outside [1, q-1] are
// rejected and redrawn.
//
// # Common Operations
//
//	x, _ := curve.RandomScalar(nil)
//	P := curve.ScalarBaseMult(x)
//	agg := curve.Add(P, other)
//	c := curve.HashToScalar(agg.XBytes(), message)
package curve
