// Package ethsign adapts Ethereum transactions to the two-party signing
// round: the message signed is the transaction's signing hash, rendered as a
// 0x-prefixed lowercase hex string so it travels as a valid wire message.
//
// The result is a two-party Schnorr signature over that hash. Ethereum does
// not accept Schnorr signatures natively; a verifier contract or wallet layer
// has to check them with Challenge/Verify semantics from schnorr2p.
package ethsign

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"

	"github.com/pairsig/pairsig-go/pkg/pairsig/curve"
	"github.com/pairsig/pairsig-go/pkg/pairsig/schnorr2p"
)

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Address derives the Ethereum address of a compressed secp256k1 key: the
// last 20 bytes of Keccak-256 over the uncompressed X||Y.
func Address(key []byte) (common.Address, error) {
	p, err := curve.ParsePoint(key)
	if err != nil {
		return common.Address{}, err
	}
	uncompressed, err := p.UncompressedBytes()
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(Keccak256(uncompressed[1:])[12:]), nil
}

// TxDigest returns the hash a signer for chainID signs for tx.
func TxDigest(tx *types.Transaction, chainID *big.Int) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, errors.New("ethsign: nil transaction")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("ethsign: invalid chain id %v", chainID)
	}
	return types.LatestSignerForChainID(chainID).Hash(tx), nil
}

// Message renders a digest as the wire message that is signed.
func Message(digest common.Hash) []byte {
	return []byte("0x" + hex.EncodeToString(digest[:]))
}

// TxSignature is a signed transaction digest.
type TxSignature struct {
	Digest common.Hash
	From   common.Address
	Result *schnorr2p.SignResult
}

// SignTx runs one signing round over the digest of tx. The initiator must
// have completed its handshake.
func SignTx(ctx context.Context, in *schnorr2p.Initiator, tx *types.Transaction, chainID *big.Int) (*TxSignature, error) {
	key := in.Session().AggregatedKey()
	if key == nil {
		return nil, errors.New("ethsign: handshake not completed")
	}
	from, err := Address(key)
	if err != nil {
		return nil, err
	}
	digest, err := TxDigest(tx, chainID)
	if err != nil {
		return nil, err
	}
	res, err := in.Sign(ctx, Message(digest))
	if err != nil {
		return nil, fmt.Errorf("ethsign: sign %s: %w", digest.Hex(), err)
	}
	return &TxSignature{Digest: digest, From: from, Result: res}, nil
}

// VerifyTx checks sig against the aggregated key for tx on chainID.
func VerifyTx(key []byte, tx *types.Transaction, chainID *big.Int, sig *schnorr2p.Signature) error {
	digest, err := TxDigest(tx, chainID)
	if err != nil {
		return err
	}
	return schnorr2p.Verify(key, Message(digest), sig)
}
