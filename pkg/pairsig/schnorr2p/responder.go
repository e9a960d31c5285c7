package schnorr2p

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

// Outcome is the responder's record of one signing round.
type Outcome struct {
	Session string
	// Done is false while the round is in flight.
	Done   bool
	Result *SignResult
	Err    error
}

// Responder answers initiator connections. Each connection gets its own
// Session; the outcome registry is shared and bounded, and doubles as the
// record of round identifiers that must not be reused.
type Responder struct {
	party    *Party
	registry *lru.Cache[string, Outcome]

	// OnSigned, when set, is called after every completed round. It must be
	// set before Serve and must be safe for concurrent use when several
	// connections are served at once.
	OnSigned func(*SignResult)
}

// NewResponder creates a responder for party, which must hold the responder
// role.
func NewResponder(party *Party) (*Responder, error) {
	if party == nil {
		return nil, fmt.Errorf("%w: nil party", pairsig.ErrInvalidConfig)
	}
	if party.role != pairsig.RoleResponder {
		return nil, fmt.Errorf("%w: responder needs role %s, got %s", pairsig.ErrInvalidRole, pairsig.RoleResponder, party.role)
	}
	registry, err := lru.New[string, Outcome](party.cfg.RegistrySize)
	if err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}
	return &Responder{party: party, registry: registry}, nil
}

// Outcome looks up a signing round by identifier.
func (r *Responder) Outcome(round string) (Outcome, bool) {
	return r.registry.Get(round)
}

func (r *Responder) admit(round string) error {
	if found, _ := r.registry.ContainsOrAdd(round, Outcome{Session: round}); found {
		return pairsig.Errorf(pairsig.ErrSessionReused, "round %q", round)
	}
	return nil
}

// Serve handles one connection until the initiator closes it or the session
// fails. A close between rounds returns nil; any other end returns the error
// that aborted the session.
func (r *Responder) Serve(ctx context.Context, t pairsig.Transport) error {
	s, err := r.party.NewSession(&SessionParams{Admit: r.admit})
	if err != nil {
		return err
	}
	c := newConn(r.party, t, s)

	var recorded string
	for {
		err := c.step(ctx)

		if s.Complete() && s.Round() != recorded {
			recorded = s.Round()
			res := s.Result()
			r.registry.Add(recorded, Outcome{Session: recorded, Done: true, Result: res})
			c.log.Info(ctx, "pairsig: message signed",
				"session", res.Session,
				"r", hex.EncodeToString(res.Signature.R),
				"s", hex.EncodeToString(res.Signature.S),
			)
			if r.OnSigned != nil {
				r.OnSigned(res)
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, pairsig.ErrTransportClosed) && (s.Idle() || s.State() == StateIdle) {
			s.Abort(err)
			c.log.Debug(ctx, "pairsig: connection closed", "session", s.ID())
			return nil
		}
		if round := s.Round(); round != "" && round != recorded {
			r.registry.Add(round, Outcome{Session: round, Done: true, Err: err})
		}
		return c.abort(ctx, err)
	}
}
