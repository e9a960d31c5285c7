package curve_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/curve"
)

type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

func mustRandom(t *testing.T) *curve.Scalar {
	t.Helper()
	k, err := curve.RandomScalar(nil)
	require.NoError(t, err)
	return k
}

func TestGeneratorMatchesBtcec(t *testing.T) {
	g, err := curve.Generator().Bytes()
	require.NoError(t, err)
	require.Equal(t, btcec.Generator().SerializeCompressed(), g)
}

func TestPointRoundTrip(t *testing.T) {
	for i := 0; i < 32; i++ {
		p := curve.ScalarBaseMult(mustRandom(t))
		enc, err := p.Bytes()
		require.NoError(t, err)
		require.Len(t, enc, curve.PointSize)

		back, err := curve.ParsePoint(enc)
		require.NoError(t, err)
		require.True(t, back.Equal(p))

		again, err := back.Bytes()
		require.NoError(t, err)
		require.Equal(t, enc, again)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	qMinus1 := new(big.Int).Sub(curve.Order(), big.NewInt(1))
	edge := [][]byte{
		make([]byte, 32),
		qMinus1.FillBytes(make([]byte, 32)),
		big.NewInt(1).FillBytes(make([]byte, 32)),
	}
	for _, b := range edge {
		k, err := curve.ParseScalar(b)
		require.NoError(t, err)
		require.Equal(t, b, k.Bytes())
	}
	for i := 0; i < 32; i++ {
		k := mustRandom(t)
		back, err := curve.ParseScalar(k.Bytes())
		require.NoError(t, err)
		require.True(t, back.Equal(k))
	}
}

func TestParseScalarRejects(t *testing.T) {
	cases := map[string][]byte{
		"short":    make([]byte, 31),
		"long":     make([]byte, 33),
		"order":    curve.Order().FillBytes(make([]byte, 32)),
		"all ones": bytes.Repeat([]byte{0xff}, 32),
		"empty":    nil,
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := curve.ParseScalar(b)
			require.ErrorIs(t, err, curve.ErrMalformedScalar)
			require.ErrorIs(t, err, pairsig.ErrMalformedScalar)
		})
	}
}

func TestParsePointRejects(t *testing.T) {
	good, err := curve.ScalarBaseMult(mustRandom(t)).Bytes()
	require.NoError(t, err)

	badPrefix := append([]byte(nil), good...)
	badPrefix[0] = 0x04

	uncompressed, err := curve.ScalarBaseMult(mustRandom(t)).UncompressedBytes()
	require.NoError(t, err)

	cases := map[string][]byte{
		"ten bytes":    make([]byte, 10),
		"empty":        nil,
		"bad prefix":   badPrefix,
		"uncompressed": uncompressed,
		"truncated":    good[:32],
	}

	// Roughly half of all x values have no point on the curve.
	for x := byte(1); x < 255; x++ {
		enc := make([]byte, 33)
		enc[0] = 0x02
		enc[32] = x
		if _, err := btcec.ParsePubKey(enc); err != nil {
			cases["off curve"] = enc
			break
		}
	}
	require.Contains(t, cases, "off curve")

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := curve.ParsePoint(b)
			require.Nil(t, p)
			require.True(t, errors.Is(err, curve.ErrMalformedPoint), "got %v", err)
		})
	}
}

func TestGroupLaws(t *testing.T) {
	a, b := mustRandom(t), mustRandom(t)

	sum := curve.ScalarBaseMult(a.Add(b))
	require.True(t, sum.Equal(curve.Add(curve.ScalarBaseMult(a), curve.ScalarBaseMult(b))))

	prod := curve.ScalarBaseMult(a.Mul(b))
	require.True(t, prod.Equal(curve.ScalarMult(curve.ScalarBaseMult(a), b)))

	require.True(t, curve.ScalarMult(curve.Generator(), a).Equal(curve.ScalarBaseMult(a)))

	P := curve.ScalarBaseMult(a)
	require.True(t, P.Add(curve.Identity()).Equal(P))
	require.True(t, curve.Identity().Add(P).Equal(P))

	inf := P.Add(curve.ScalarBaseMult(a.Negate()))
	require.True(t, inf.IsIdentity())
	_, err := inf.Bytes()
	require.ErrorIs(t, err, curve.ErrMalformedPoint)
	require.Equal(t, make([]byte, 32), inf.XBytes())

	require.True(t, curve.ScalarBaseMult(curve.NewScalar(0)).IsIdentity())
}

func TestHashToScalarReducesDigest(t *testing.T) {
	msg := []byte("example message")
	prefix := []byte{0x01, 0x02}
	digest := sha256.Sum256(append(append([]byte(nil), prefix...), msg...))
	want := new(big.Int).Mod(new(big.Int).SetBytes(digest[:]), curve.Order())

	got := curve.HashToScalar(prefix, msg)
	require.Equal(t, want.FillBytes(make([]byte, 32)), got.Bytes())
}

func TestReduceScalar(t *testing.T) {
	q := curve.Order().FillBytes(make([]byte, 32))
	k, err := curve.ReduceScalar(q)
	require.NoError(t, err)
	require.True(t, k.IsZero())

	_, err = curve.ReduceScalar(make([]byte, 33))
	require.ErrorIs(t, err, curve.ErrMalformedScalar)
}

func TestRandomScalarRange(t *testing.T) {
	// A source stuck at zero never yields a valid scalar.
	_, err := curve.RandomScalar(constReader(0x00))
	require.Error(t, err)

	// A source stuck above q never yields a valid scalar either.
	_, err = curve.RandomScalar(constReader(0xff))
	require.Error(t, err)

	k, err := curve.RandomScalar(constReader(0x01))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x01}, 32), k.Bytes())

	a, b := mustRandom(t), mustRandom(t)
	require.False(t, a.Equal(b))
}

func TestLiftX(t *testing.T) {
	P := curve.ScalarBaseMult(mustRandom(t))
	enc, err := P.Bytes()
	require.NoError(t, err)

	lifted, err := curve.LiftX(P.XBytes(), enc[0] == 0x03)
	require.NoError(t, err)
	require.True(t, lifted.Equal(P))

	other, err := curve.LiftX(P.XBytes(), enc[0] == 0x02)
	require.NoError(t, err)
	require.False(t, other.Equal(P))
}

func TestZeroize(t *testing.T) {
	k := mustRandom(t)
	k.Zeroize()
	require.True(t, k.IsZero())

	var nilScalar *curve.Scalar
	nilScalar.Zeroize()
}

// Mutating an encoding must not reach back into the value it came from.
func TestEncodingsAreCopies(t *testing.T) {
	k := mustRandom(t)
	want := append([]byte(nil), k.Bytes()...)
	kb := k.Bytes()
	for i := range kb {
		kb[i] = 0xff
	}
	require.Equal(t, want, k.Bytes())

	P := curve.ScalarBaseMult(k)
	pb, err := P.Bytes()
	require.NoError(t, err)
	wantP := append([]byte(nil), pb...)
	for i := range pb {
		pb[i] = 0
	}
	again, err := P.Bytes()
	require.NoError(t, err)
	require.Equal(t, wantP, again)

	x := P.XBytes()
	x[0] ^= 0xff
	require.Equal(t, wantP[1:], P.XBytes())
}
