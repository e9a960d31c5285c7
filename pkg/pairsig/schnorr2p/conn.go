package schnorr2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/logging"
	"github.com/pairsig/pairsig-go/pkg/pairsig/wire"
)

// errorSendTimeout bounds the best-effort ERROR sent on abort.
const errorSendTimeout = time.Second

// conn drives a Session over a transport.
type conn struct {
	t       pairsig.Transport
	peer    pairsig.RoleID
	timeout time.Duration
	log     logging.Logger
	session *Session
}

func newConn(p *Party, t pairsig.Transport, s *Session) *conn {
	return &conn{
		t:       t,
		peer:    p.role.Peer().ID(),
		timeout: p.cfg.PhaseTimeout,
		log:     p.cfg.Logger.With("role", p.role.String()),
		session: s,
	}
}

func (c *conn) send(ctx context.Context, msgs ...wire.Message) error {
	for _, m := range msgs {
		data, err := wire.Encode(m)
		if err != nil {
			return err
		}
		if err := c.t.Send(ctx, c.peer, data); err != nil {
			return transportError(err)
		}
		c.log.Debug(ctx, "pairsig: sent", "type", string(m.Type), "session", m.Session)
	}
	return nil
}

// receive waits at most one phase timeout for the next message. Between
// rounds there is no deadline: the initiator decides when to sign next.
func (c *conn) receive(ctx context.Context) (wire.Message, error) {
	pctx, cancel := ctx, context.CancelFunc(func() {})
	if !c.session.Idle() {
		pctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer cancel()

	data, err := c.t.Receive(pctx, c.peer)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return wire.Message{}, pairsig.Errorf(pairsig.ErrTimeout, "nothing received within %s in state %s", c.timeout, c.session.State())
		}
		return wire.Message{}, transportError(err)
	}
	msg, err := wire.Decode(data)
	if err != nil {
		return wire.Message{}, err
	}
	c.log.Debug(ctx, "pairsig: received", "type", string(msg.Type), "session", msg.Session)
	return msg, nil
}

// step applies one inbound message and sends the reply. Replies produced
// alongside an error (DONE{valid:false}) are still sent.
func (c *conn) step(ctx context.Context) error {
	msg, err := c.receive(ctx)
	if err != nil {
		return err
	}
	out, herr := c.session.Handle(msg)
	if err := c.send(ctx, out...); err != nil && herr == nil {
		return err
	}
	if herr == nil {
		c.log.Debug(ctx, "pairsig: state", "state", c.session.State().String(), "session", c.session.ID())
	}
	return herr
}

// abort tears the session down and tells the peer why, if it does not know
// already.
func (c *conn) abort(ctx context.Context, err error) error {
	state := c.session.State()
	c.session.Abort(err)
	if reportable(err) {
		id := c.session.Round()
		if id == "" {
			id = c.session.ID()
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorSendTimeout)
		defer cancel()
		if serr := c.send(sctx, wire.Error(id, pairsig.Kind(err), err.Error())); serr != nil {
			c.log.Debug(ctx, "pairsig: could not report error to peer", "error", serr)
		}
	}
	c.log.Error(ctx, "pairsig: session aborted",
		"session", c.session.ID(),
		"state", state.String(),
		"kind", pairsig.Kind(err),
		"error", err,
	)
	return err
}

func transportError(err error) error {
	if errors.Is(err, pairsig.ErrTransportClosed) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", pairsig.ErrTransportClosed, err)
	}
	return err
}
