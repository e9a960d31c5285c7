package pairsig

import (
	"context"
	"errors"
	"fmt"
)

// Session-fatal protocol errors. Every error the protocol reports wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	// ErrMalformedMessage indicates a frame that is not valid JSON, carries an
	// unknown tag, or lacks a field required by its type.
	ErrMalformedMessage = errors.New("pairsig: malformed message")

	// ErrMalformedPoint indicates bytes that are not a 33-byte SEC1 compressed
	// secp256k1 point.
	ErrMalformedPoint = errors.New("pairsig: malformed point")

	// ErrMalformedScalar indicates bytes that are not a 32-byte big-endian
	// scalar below the group order.
	ErrMalformedScalar = errors.New("pairsig: malformed scalar")

	// ErrUnexpectedMessageType indicates a well-formed message that is not
	// valid for the current protocol state.
	ErrUnexpectedMessageType = errors.New("pairsig: unexpected message type")

	// ErrCommitMismatch indicates a revealed nonce point that does not hash to
	// the commitment announced earlier.
	ErrCommitMismatch = errors.New("pairsig: nonce commitment mismatch")

	// ErrInvalidSignature indicates that every phase completed but the
	// combined signature failed local verification.
	ErrInvalidSignature = errors.New("pairsig: invalid signature")

	// ErrTimeout indicates that no message arrived within the phase window.
	ErrTimeout = errors.New("pairsig: phase timeout")

	// ErrPeerAborted indicates that the counterparty reported a fatal error.
	ErrPeerAborted = errors.New("pairsig: peer aborted session")

	// ErrSessionAborted is returned by every call on a session that has
	// already failed.
	ErrSessionAborted = errors.New("pairsig: session aborted")

	// ErrTransportClosed indicates that the connection went away.
	ErrTransportClosed = errors.New("pairsig: transport closed")

	// ErrSessionReused indicates a signing round whose identifier the
	// responder has already seen.
	ErrSessionReused = errors.New("pairsig: session id reused")

	// ErrInvalidRole indicates a role outside initiator/responder.
	ErrInvalidRole = errors.New("pairsig: invalid role")

	// ErrInvalidConfig indicates a configuration that fails validation.
	ErrInvalidConfig = errors.New("pairsig: invalid config")
)

// Error kinds carried in the wire ERROR message.
const (
	KindMalformedMessage      = "MalformedMessage"
	KindMalformedPoint        = "MalformedPoint"
	KindMalformedScalar       = "MalformedScalar"
	KindUnexpectedMessageType = "UnexpectedMessageType"
	KindCommitMismatch        = "CommitMismatch"
	KindInvalidSignature      = "InvalidSignature"
	KindTimeout               = "Timeout"
	KindPeerAborted           = "PeerAborted"
	KindTransportClosed       = "TransportClosed"
	KindSessionReused         = "SessionReused"
	KindInternal              = "Internal"
)

var kinds = []struct {
	kind string
	err  error
}{
	{KindMalformedMessage, ErrMalformedMessage},
	{KindMalformedPoint, ErrMalformedPoint},
	{KindMalformedScalar, ErrMalformedScalar},
	{KindUnexpectedMessageType, ErrUnexpectedMessageType},
	{KindCommitMismatch, ErrCommitMismatch},
	{KindInvalidSignature, ErrInvalidSignature},
	{KindTimeout, ErrTimeout},
	{KindPeerAborted, ErrPeerAborted},
	{KindTransportClosed, ErrTransportClosed},
	{KindSessionReused, ErrSessionReused},
}

// Kind returns the wire name of the taxonomy entry err belongs to, or
// KindInternal when it matches none.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// KindError maps a wire kind back to its sentinel. Unknown kinds map to nil.
func KindError(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// ProtocolError records which step of the protocol failed and in which state.
type ProtocolError struct {
	Op    string // operation that failed, e.g. "handle PUB"
	State string // protocol state when the failure was detected
	Err   error  // underlying error, wraps one of the sentinels above
}

func (e *ProtocolError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("pairsig.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pairsig.%s [%s]: %v", e.Op, e.State, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Errorf wraps sentinel with a formatted detail so that errors.Is(err,
// sentinel) keeps working.
func Errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
