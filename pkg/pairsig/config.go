package pairsig

import (
	"fmt"
	"time"

	"github.com/pairsig/pairsig-go/pkg/pairsig/logging"
)

// DefaultPhaseTimeout bounds how long a peer waits for the next message of a
// phase before aborting the session.
const DefaultPhaseTimeout = 30 * time.Second

// DefaultRegistrySize bounds how many completed sessions a responder remembers.
const DefaultRegistrySize = 256

// Config holds the protocol knobs shared by both roles.
type Config struct {
	// PhaseTimeout aborts a session with ErrTimeout when the next expected
	// message does not arrive in time. Zero selects DefaultPhaseTimeout.
	PhaseTimeout time.Duration

	// TrustPeerNonce skips checking a revealed nonce point against the
	// commitment the peer sent earlier. It reproduces the trusted-peer
	// behaviour of a wallet that trusts its paired device and should stay false.
	TrustPeerNonce bool

	// RegistrySize bounds the responder's record of completed sessions, which
	// is also used to refuse reused session identifiers. Zero selects
	// DefaultRegistrySize.
	RegistrySize int

	// Logger receives protocol events. Nil discards them.
	Logger logging.Logger
}

// DefaultConfig returns the hardened defaults.
func DefaultConfig() Config {
	return Config{
		PhaseTimeout: DefaultPhaseTimeout,
		RegistrySize: DefaultRegistrySize,
	}
}

// Validate rejects negative durations and sizes.
func (c Config) Validate() error {
	if c.PhaseTimeout < 0 {
		return fmt.Errorf("%w: negative phase timeout %s", ErrInvalidConfig, c.PhaseTimeout)
	}
	if c.RegistrySize < 0 {
		return fmt.Errorf("%w: negative registry size %d", ErrInvalidConfig, c.RegistrySize)
	}
	return nil
}

// WithDefaults fills zero fields with their defaults.
func (c Config) WithDefaults() Config {
	if c.PhaseTimeout == 0 {
		c.PhaseTimeout = DefaultPhaseTimeout
	}
	if c.RegistrySize == 0 {
		c.RegistrySize = DefaultRegistrySize
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	return c
}
