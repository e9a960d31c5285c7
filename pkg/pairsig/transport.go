package pairsig

import "context"

// RoleID identifies a peer on a transport. The initiator is 0 and the
// responder is 1.
type RoleID uint32

// Role enumerates the two fixed peer positions of the protocol.
type Role uint8

const (
	// RoleInitiator connects to the responder and opens every phase.
	RoleInitiator Role = iota
	// RoleResponder listens for the initiator and answers each phase.
	RoleResponder
)

// ID returns the transport identifier of r.
func (r Role) ID() RoleID { return RoleID(r) }

// Valid reports whether r is one of the two protocol roles.
func (r Role) Valid() bool { return r == RoleInitiator || r == RoleResponder }

// Peer returns the counterparty role.
func (r Role) Peer() Role {
	if r == RoleInitiator {
		return RoleResponder
	}
	return RoleInitiator
}

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// ParseRole maps the textual role names used in configuration files.
func ParseRole(s string) (Role, error) {
	switch s {
	case "initiator", "a", "A":
		return RoleInitiator, nil
	case "responder", "b", "B":
		return RoleResponder, nil
	default:
		return 0, ErrInvalidRole
	}
}

// Transport is the ordered, reliable, bidirectional message pipe between the
// two peers. Each call to Send delivers exactly one frame, and frames from one
// sender arrive in the order they were sent.
//
// Concurrency: implementations must allow one goroutine to Send while another
// Receives. Protocol drivers never issue concurrent Sends or concurrent
// Receives on the same transport.
//
// Cancellation: both calls must return promptly once ctx is done. Once the
// underlying connection is closed, Receive returns an error wrapping
// ErrTransportClosed or io.EOF.
type Transport interface {
	Send(ctx context.Context, to RoleID, msg []byte) error
	Receive(ctx context.Context, from RoleID) ([]byte, error)
}
