// Package schnorr2p implements the two-party threshold Schnorr protocol on
// secp256k1.
//
// Each peer holds an additive share x_i of a key that never exists in one
// place. The aggregated public key is P_agg = P_A + P_B. To sign a message the
// peers exchange nonce commitments, reveal their nonce points, exchange
// partial signatures s_i = k_i + c*x_i and add them up:
//
//	c = SHA256(x(R_agg) || P_agg || message) mod q
//	s = s_A + s_B
//	r = x(R_agg) mod q
//
// Both peers verify s*G == R_agg + c*P_agg locally before reporting DONE.
//
// # Roles
//
// The initiator opens the connection, drives the key exchange and names the
// message of every signing round. The responder answers. The message order
// per direction is fixed:
//
//	initiator -> responder: HELLO, PUB | SIGN_REQUEST, COMMIT, NONCE, PARTIAL_S, DONE
//	responder -> initiator: PUB, PUB_ACK | COMMIT, NONCE, PARTIAL_S, DONE
//
// A peer reveals its nonce point only after it holds the counterparty's
// commitment, and checks the revealed point against that commitment unless
// pairsig.Config.TrustPeerNonce is set.
//
// # Layers
//
// Session is the pure state machine: it consumes decoded wire messages and
// returns the messages to send, without doing any I/O. Initiator and
// Responder drive a Session over a pairsig.Transport, applying the per-phase
// timeout and reporting fatal errors to the peer with an ERROR message.
//
// # Usage Example
//
//	party, _ := schnorr2p.NewParty(pairsig.RoleInitiator, pairsig.DefaultConfig())
//	defer party.Close()
//
//	in, _ := schnorr2p.NewInitiator(party, transport)
//	if _, err := in.Handshake(ctx); err != nil {
//	    return err
//	}
//	res, err := in.Sign(ctx, []byte("example message"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(hex.EncodeToString(res.Signature.R), hex.EncodeToString(res.Signature.S))
//
// # Security Notes
//
// Nonces are drawn fresh for every round and zeroized as soon as the partial
// signature has been computed, or when the session aborts. There are no
// zero-knowledge proofs of share or nonce knowledge, so a malicious peer can
// bias the aggregated key or nonce. Both devices are assumed to belong to the
// same user and to talk over an authenticated channel.
package schnorr2p
