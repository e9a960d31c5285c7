// Package pairsig is the root of a two-party threshold Schnorr signing library
// over secp256k1. Two peers, an initiator and a responder, each hold one
// additive share of a logical private key. Neither ever learns the other's
// share, and a signature valid under the aggregated public key P_A + P_B can
// only be produced when both run the signing handshake together.
//
// This package holds the pieces shared by every subpackage: the Transport
// contract the protocol drivers talk through, the Role of each peer, the error
// taxonomy, protocol configuration and memory hygiene helpers.
//
// # Subpackages
//
//   - curve: secp256k1 scalar and point arithmetic, encodings, hash-to-scalar
//   - wire: tagged JSON messages exchanged by the peers
//   - schnorr2p: the per-peer state machine plus Initiator/Responder drivers
//   - mocknet: in-memory transport for tests and in-process demos
//   - tlsnet: mutually authenticated TLS transport
//   - wsnet: WebSocket transport
//   - ethsign: adapter from Ethereum transactions to signing digests
//   - logging: slog-backed logging facade with redaction helpers
//
// # Security Model
//
// The scheme is a simplified two-of-two additive key split. Nonces are
// exchanged commit-then-reveal, which prevents a peer from choosing its nonce
// after seeing the counterparty's. There are no zero-knowledge proofs of nonce
// validity, so the protocol protects against an unreliable counterparty but not
// against a malicious one. Key shares are generated fresh for every process
// and are never persisted.
package pairsig
