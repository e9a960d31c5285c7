package schnorr2p

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

// Initiator runs the initiator side of one connection: a key exchange
// followed by any number of sequential signing rounds.
type Initiator struct {
	party *Party
	t     pairsig.Transport
	conn  *conn
}

// NewInitiator binds party to transport. The party must hold the initiator
// role.
func NewInitiator(party *Party, t pairsig.Transport) (*Initiator, error) {
	if party == nil || t == nil {
		return nil, fmt.Errorf("%w: nil party or transport", pairsig.ErrInvalidConfig)
	}
	if party.role != pairsig.RoleInitiator {
		return nil, fmt.Errorf("%w: initiator needs role %s, got %s", pairsig.ErrInvalidRole, pairsig.RoleInitiator, party.role)
	}
	s, err := party.NewSession(nil)
	if err != nil {
		return nil, err
	}
	return &Initiator{party: party, t: t, conn: newConn(party, t, s)}, nil
}

// Session exposes the underlying state machine.
func (in *Initiator) Session() *Session { return in.conn.session }

// Handshake exchanges public shares and waits until both peers hold P_agg.
func (in *Initiator) Handshake(ctx context.Context) (*KeyExchangeResult, error) {
	s := in.conn.session
	out, err := s.Begin()
	if err != nil {
		return nil, in.conn.abort(ctx, err)
	}
	if err := in.conn.send(ctx, out...); err != nil {
		return nil, in.conn.abort(ctx, err)
	}
	for s.State() != StateAggregated {
		if err := in.conn.step(ctx); err != nil {
			return nil, in.conn.abort(ctx, err)
		}
	}
	res := s.KeyExchange()
	in.conn.log.Info(ctx, "pairsig: key aggregated",
		"session", s.ID(),
		"aggregated_key", hex.EncodeToString(res.AggregatedKey),
	)
	return res, nil
}

// Sign runs one signing round over message and returns the combined,
// locally verified signature.
func (in *Initiator) Sign(ctx context.Context, message []byte) (*SignResult, error) {
	s := in.conn.session
	out, err := s.Request(message)
	if err != nil {
		return nil, in.conn.abort(ctx, err)
	}
	if err := in.conn.send(ctx, out...); err != nil {
		return nil, in.conn.abort(ctx, err)
	}
	for !s.Complete() {
		if err := in.conn.step(ctx); err != nil {
			return nil, in.conn.abort(ctx, err)
		}
	}
	res := s.Result()
	in.conn.log.Info(ctx, "pairsig: message signed",
		"session", res.Session,
		"r", hex.EncodeToString(res.Signature.R),
		"s", hex.EncodeToString(res.Signature.S),
	)
	return res, nil
}

// Close ends the session and closes the transport when it is an io.Closer.
func (in *Initiator) Close() error {
	in.conn.session.Abort(pairsig.ErrSessionAborted)
	if c, ok := in.t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
