package schnorr2p

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/curve"
	"github.com/pairsig/pairsig-go/pkg/pairsig/wire"
)

// Session is the explicit protocol state of one connection. It performs no
// I/O: callers feed it decoded messages and send whatever it returns, in
// order.
//
// Every error aborts the session. An aborted session has its nonce zeroized
// and fails every later call with pairsig.ErrSessionAborted.
//
// A Session is not safe for concurrent use.
type Session struct {
	role  pairsig.Role
	share *KeyShare
	trust bool
	admit func(string) error

	id    string
	state State
	err   error

	// Key exchange.
	begun     bool
	hello     bool
	pubSelf   *curve.Point
	pubPeer   *curve.Point
	pAgg      *curve.Point
	pAggBytes []byte

	rnd    *round
	result *SignResult
	rounds int
}

// round is the state of one signing round. It is discarded when the next
// SIGN_REQUEST starts.
type round struct {
	id      string
	message []byte

	local        *nonceCommitment
	remoteCommit []byte
	remoteR      *curve.Point

	rAgg    *curve.Point
	c       *curve.Scalar
	partial *curve.Scalar

	result   *SignResult
	peerDone bool
}

// ID returns the connection-level session identifier.
func (s *Session) ID() string { return s.id }

// Role returns the local role.
func (s *Session) Role() pairsig.Role { return s.role }

// State returns the current protocol state.
func (s *Session) State() State { return s.state }

// Err returns the error that aborted the session, if any.
func (s *Session) Err() error { return s.err }

// Round returns the identifier of the current or last signing round.
func (s *Session) Round() string {
	if s.rnd == nil {
		return ""
	}
	return s.rnd.id
}

// Rounds returns how many signing rounds have completed.
func (s *Session) Rounds() int { return s.rounds }

// AggregatedKey returns the compressed P_agg, or nil before aggregation.
func (s *Session) AggregatedKey() []byte {
	if s.pAggBytes == nil {
		return nil
	}
	return append([]byte(nil), s.pAggBytes...)
}

// KeyExchange reports the key exchange, or nil before aggregation.
func (s *Session) KeyExchange() *KeyExchangeResult {
	if s.pAgg == nil {
		return nil
	}
	self, _ := s.pubSelf.Bytes()
	peer, _ := s.pubPeer.Bytes()
	return &KeyExchangeResult{
		Session:       s.id,
		PublicShare:   self,
		PeerShare:     peer,
		AggregatedKey: s.AggregatedKey(),
	}
}

// Result returns the last completed signing round, or nil.
func (s *Session) Result() *SignResult { return s.result }

// Complete reports whether the current round has finished: the local
// signature is combined and verified and the peer's DONE has arrived.
func (s *Session) Complete() bool {
	return s.state == StateSigned && s.rnd != nil && s.rnd.peerDone
}

// Idle reports whether the session sits between rounds: the key is
// aggregated and no signing round is in flight.
func (s *Session) Idle() bool {
	return s.state == StateAggregated || s.Complete()
}

// Abort terminates the session with cause and zeroizes its nonce. Aborting
// an aborted session keeps the first cause.
func (s *Session) Abort(cause error) {
	if s.state == StateAborted {
		return
	}
	if cause == nil {
		cause = pairsig.ErrSessionAborted
	}
	s.err = cause
	s.state = StateAborted
	if s.rnd != nil {
		s.rnd.local.zeroize()
		s.rnd.partial.Zeroize()
		s.rnd.partial = nil
	}
}

func (s *Session) fail(op string, err error) error {
	perr := &pairsig.ProtocolError{Op: op, State: s.state.String(), Err: err}
	s.Abort(perr)
	return perr
}

func (s *Session) aborted(op string) error {
	return &pairsig.ProtocolError{
		Op:    op,
		State: StateAborted.String(),
		Err:   fmt.Errorf("%w: %v", pairsig.ErrSessionAborted, s.err),
	}
}

// Begin opens the key exchange. Initiator only.
func (s *Session) Begin() ([]wire.Message, error) {
	const op = "begin"
	if s.state == StateAborted {
		return nil, s.aborted(op)
	}
	if s.role != pairsig.RoleInitiator {
		return nil, s.fail(op, pairsig.Errorf(pairsig.ErrInvalidRole, "only the initiator opens a session"))
	}
	if s.begun || s.state != StateIdle {
		return nil, s.fail(op, pairsig.Errorf(pairsig.ErrUnexpectedMessageType, "session already started"))
	}
	s.begun = true
	s.pubSelf = s.share.pub
	pub, err := s.pubSelf.Bytes()
	if err != nil {
		return nil, s.fail(op, err)
	}
	return []wire.Message{wire.Hello(s.id), wire.Pub(s.id, pub)}, nil
}

// Request starts a signing round over message. Initiator only; valid once the
// key is aggregated and no other round is in flight.
func (s *Session) Request(message []byte) ([]wire.Message, error) {
	const op = "request"
	if s.state == StateAborted {
		return nil, s.aborted(op)
	}
	if s.role != pairsig.RoleInitiator {
		return nil, s.fail(op, pairsig.Errorf(pairsig.ErrInvalidRole, "only the initiator requests signatures"))
	}
	if !s.Idle() {
		return nil, s.fail(op, pairsig.Errorf(pairsig.ErrUnexpectedMessageType, "cannot sign in state %s", s.state))
	}
	if !wire.ValidMessage(message) {
		return nil, s.fail(op, pairsig.Errorf(pairsig.ErrMalformedMessage, "message is not valid UTF-8"))
	}
	if err := s.startRound(uuid.NewString(), message); err != nil {
		return nil, s.fail(op, err)
	}
	return []wire.Message{
		wire.SignRequest(s.rnd.id, s.rnd.message),
		wire.Commit(s.rnd.id, s.rnd.local.commit),
	}, nil
}

func (s *Session) startRound(id string, message []byte) error {
	nc, err := newNonceCommitment()
	if err != nil {
		return fmt.Errorf("draw nonce: %w", err)
	}
	s.rnd = &round{
		id:      id,
		message: append([]byte{}, message...),
		local:   nc,
	}
	s.state = StateNonceCommitted
	return nil
}

// Handle applies one inbound message and returns the messages to send in
// reply. On a failed final verification it returns both DONE{valid:false}
// and an error wrapping pairsig.ErrInvalidSignature; the caller should send
// the message before tearing the session down.
func (s *Session) Handle(msg wire.Message) ([]wire.Message, error) {
	op := "handle " + string(msg.Type)
	if s.state == StateAborted {
		return nil, s.aborted(op)
	}
	if err := msg.Validate(); err != nil {
		return nil, s.fail(op, err)
	}
	if msg.Type == wire.TypeError {
		return nil, s.fail(op, peerError(msg))
	}

	var (
		out []wire.Message
		err error
	)
	switch s.state {
	case StateIdle:
		out, err = s.handleIdle(msg)
	case StateKeysExchanged:
		out, err = s.handleKeysExchanged(msg)
	case StateAggregated:
		out, err = s.handleAggregated(msg)
	case StateNonceCommitted:
		out, err = s.handleNonceCommitted(msg)
	case StateNonceRevealed:
		out, err = s.handleNonceRevealed(msg)
	case StatePartialSigSent:
		out, err = s.handlePartialSigSent(msg)
	case StateSigned:
		out, err = s.handleSigned(msg)
	default:
		err = pairsig.Errorf(pairsig.ErrUnexpectedMessageType, "%s in state %s", msg.Type, s.state)
	}
	if err != nil {
		return out, s.fail(op, err)
	}
	return out, nil
}

func peerError(msg wire.Message) error {
	return fmt.Errorf("%w: %s: %s", pairsig.ErrPeerAborted, msg.Kind, msg.Detail)
}

func unexpected(msg wire.Message, st State) error {
	return pairsig.Errorf(pairsig.ErrUnexpectedMessageType, "%s in state %s", msg.Type, st)
}

func (s *Session) checkSession(msg wire.Message, want string) error {
	if msg.Session != want {
		return pairsig.Errorf(pairsig.ErrMalformedMessage, "message for session %q, want %q", msg.Session, want)
	}
	return nil
}

func (s *Session) handleIdle(msg wire.Message) ([]wire.Message, error) {
	switch {
	case s.role == pairsig.RoleResponder && msg.Type == wire.TypeHello && !s.hello:
		if s.id != "" {
			if err := s.checkSession(msg, s.id); err != nil {
				return nil, err
			}
		}
		s.id = msg.Session
		s.hello = true
		return nil, nil

	case s.role == pairsig.RoleResponder && msg.Type == wire.TypePub && s.hello:
		if err := s.acceptPeerPub(msg); err != nil {
			return nil, err
		}
		pub, err := s.share.pub.Bytes()
		if err != nil {
			return nil, err
		}
		s.state = StateAggregated
		return []wire.Message{wire.Pub(s.id, pub), wire.PubAck(s.id)}, nil

	case s.role == pairsig.RoleInitiator && msg.Type == wire.TypePub && s.begun:
		if err := s.acceptPeerPub(msg); err != nil {
			return nil, err
		}
		s.state = StateKeysExchanged
		return nil, nil
	}
	return nil, unexpected(msg, s.state)
}

// acceptPeerPub stores the counterparty's share and aggregates the key.
func (s *Session) acceptPeerPub(msg wire.Message) error {
	if err := s.checkSession(msg, s.id); err != nil {
		return err
	}
	peer, err := msg.PubPoint()
	if err != nil {
		return err
	}
	s.pubSelf = s.share.pub
	agg := curve.Add(s.pubSelf, peer)
	aggBytes, err := agg.Bytes()
	if err != nil {
		return pairsig.Errorf(pairsig.ErrMalformedPoint, "aggregated key is the identity")
	}
	s.pubPeer = peer
	s.pAgg = agg
	s.pAggBytes = aggBytes
	return nil
}

func (s *Session) handleKeysExchanged(msg wire.Message) ([]wire.Message, error) {
	if s.role != pairsig.RoleInitiator || msg.Type != wire.TypePubAck {
		return nil, unexpected(msg, s.state)
	}
	if err := s.checkSession(msg, s.id); err != nil {
		return nil, err
	}
	s.state = StateAggregated
	return nil, nil
}

func (s *Session) handleAggregated(msg wire.Message) ([]wire.Message, error) {
	if s.role != pairsig.RoleResponder || msg.Type != wire.TypeSignRequest {
		return nil, unexpected(msg, s.state)
	}
	return s.acceptSignRequest(msg)
}

// acceptSignRequest opens a responder round and commits to a fresh nonce.
func (s *Session) acceptSignRequest(msg wire.Message) ([]wire.Message, error) {
	if msg.Session == s.id || (s.rnd != nil && msg.Session == s.rnd.id) {
		return nil, pairsig.Errorf(pairsig.ErrSessionReused, "round %q", msg.Session)
	}
	if s.admit != nil {
		if err := s.admit(msg.Session); err != nil {
			return nil, err
		}
	}
	message, _ := msg.MessageBytes()
	if err := s.startRound(msg.Session, message); err != nil {
		return nil, err
	}
	return []wire.Message{wire.Commit(s.rnd.id, s.rnd.local.commit)}, nil
}

func (s *Session) handleNonceCommitted(msg wire.Message) ([]wire.Message, error) {
	if msg.Type != wire.TypeCommit {
		return nil, unexpected(msg, s.state)
	}
	if err := s.checkSession(msg, s.rnd.id); err != nil {
		return nil, err
	}
	commit, err := msg.CommitBytes()
	if err != nil {
		return nil, err
	}
	s.rnd.remoteCommit = commit

	r, err := s.rnd.local.r.Bytes()
	if err != nil {
		return nil, err
	}
	var reveal wire.Message
	if s.role == pairsig.RoleInitiator {
		reveal = wire.Nonce(s.rnd.id, r, s.rnd.message)
	} else {
		reveal = wire.Nonce(s.rnd.id, r, nil)
	}
	s.state = StateNonceRevealed
	return []wire.Message{reveal}, nil
}

func (s *Session) handleNonceRevealed(msg wire.Message) ([]wire.Message, error) {
	if msg.Type != wire.TypeNonce {
		return nil, unexpected(msg, s.state)
	}
	if err := s.checkSession(msg, s.rnd.id); err != nil {
		return nil, err
	}
	if s.role == pairsig.RoleResponder {
		named, ok := msg.MessageBytes()
		if !ok || !bytes.Equal(named, s.rnd.message) {
			return nil, pairsig.Errorf(pairsig.ErrMalformedMessage, "NONCE names a different message than SIGN_REQUEST")
		}
	}
	remote, err := msg.NoncePoint()
	if err != nil {
		return nil, err
	}
	if !s.trust {
		rb, _ := remote.Bytes()
		if subtle.ConstantTimeCompare(commitTo(rb), s.rnd.remoteCommit) != 1 {
			return nil, pairsig.Errorf(pairsig.ErrCommitMismatch, "revealed nonce does not match commitment")
		}
	}
	s.rnd.remoteR = remote

	rAgg := curve.Add(s.rnd.local.r, remote)
	c, err := Challenge(rAgg, s.pAgg, s.rnd.message)
	if err != nil {
		return nil, err
	}
	s.rnd.rAgg = rAgg
	s.rnd.c = c

	// s_i = k_i + c*x_i; the nonce is spent from here on.
	cx := c.Mul(s.share.x)
	s.rnd.partial = s.rnd.local.k.Add(cx)
	cx.Zeroize()
	s.rnd.local.zeroize()

	s.state = StatePartialSigSent
	return []wire.Message{wire.PartialS(s.rnd.id, s.rnd.partial.Bytes())}, nil
}

func (s *Session) handlePartialSigSent(msg wire.Message) ([]wire.Message, error) {
	if msg.Type != wire.TypePartialS {
		return nil, unexpected(msg, s.state)
	}
	if err := s.checkSession(msg, s.rnd.id); err != nil {
		return nil, err
	}
	peerPartial, err := msg.PartialScalar()
	if err != nil {
		return nil, err
	}
	total := s.rnd.partial.Add(peerPartial)
	peerPartial.Zeroize()

	rPoint, _ := s.rnd.rAgg.Bytes()
	sig := &Signature{
		RPoint: rPoint,
		R:      rFromPoint(s.rnd.rAgg),
		S:      total.Bytes(),
	}
	valid, err := verifyEquation(s.pAgg, s.rnd.rAgg, total, s.rnd.message)
	if err != nil {
		return nil, err
	}
	if !valid {
		return []wire.Message{wire.Done(s.rnd.id, false)},
			pairsig.Errorf(pairsig.ErrInvalidSignature, "combined signature does not verify")
	}
	s.rnd.result = &SignResult{
		Session:       s.rnd.id,
		Message:       append([]byte(nil), s.rnd.message...),
		AggregatedKey: s.AggregatedKey(),
		Signature:     sig,
		Valid:         true,
	}
	s.state = StateSigned
	return []wire.Message{wire.Done(s.rnd.id, true)}, nil
}

func (s *Session) handleSigned(msg wire.Message) ([]wire.Message, error) {
	if msg.Type == wire.TypeDone && !s.rnd.peerDone {
		if err := s.checkSession(msg, s.rnd.id); err != nil {
			return nil, err
		}
		if !*msg.Valid {
			return nil, pairsig.Errorf(pairsig.ErrInvalidSignature, "peer rejected the combined signature")
		}
		s.rnd.peerDone = true
		s.result = s.rnd.result
		s.rounds++
		return nil, nil
	}
	if s.role == pairsig.RoleResponder && msg.Type == wire.TypeSignRequest && s.rnd.peerDone {
		return s.acceptSignRequest(msg)
	}
	return nil, unexpected(msg, s.state)
}

// reportable reports whether the counterparty should be told about err with
// an ERROR message. Errors the peer already knows about are excluded.
func reportable(err error) bool {
	return err != nil &&
		!errors.Is(err, pairsig.ErrPeerAborted) &&
		!errors.Is(err, pairsig.ErrTransportClosed) &&
		!errors.Is(err, pairsig.ErrSessionAborted) &&
		!errors.Is(err, pairsig.ErrInvalidSignature)
}
