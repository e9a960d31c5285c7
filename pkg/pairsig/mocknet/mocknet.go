package mocknet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

type Net struct {
	mu sync.Mutex
	q  map[queueKey]chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func New() *Net {
	return &Net{
		q:    make(map[queueKey]chan []byte),
		done: make(chan struct{}),
	}
}

// Pipe returns connected initiator and responder endpoints on a fresh network.
// Closing either endpoint closes both.
func Pipe() (initiator, responder *Endpoint) {
	n := New()
	return n.Ep2P(pairsig.RoleInitiator.ID(), pairsig.RoleResponder.ID()),
		n.Ep2P(pairsig.RoleResponder.ID(), pairsig.RoleInitiator.ID())
}

// Close drops every connection on the network.
func (n *Net) Close() error {
	n.closeOnce.Do(func() { close(n.done) })
	return nil
}

type queueKey struct {
	from pairsig.RoleID
	to   pairsig.RoleID
	seq  uint64
}

func (n *Net) slot(key queueKey) chan []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := n.q[key]
	if ch == nil {
		ch = make(chan []byte, 1)
		n.q[key] = ch
	}
	return ch
}

func (n *Net) deliver(ctx context.Context, key queueKey, payload []byte) error {
	select {
	case <-n.done:
		return pairsig.ErrTransportClosed
	default:
	}
	ch := n.slot(key)
	msg := append([]byte(nil), payload...)
	select {
	case ch <- msg:
		return nil
	case <-n.done:
		return pairsig.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await hands out frames delivered before Close ahead of reporting the close,
// like a socket that drains its buffer before EOF.
func (n *Net) await(ctx context.Context, key queueKey) ([]byte, error) {
	ch := n.slot(key)
	select {
	case msg := <-ch:
		return n.take(key, msg), nil
	default:
	}
	select {
	case msg := <-ch:
		return n.take(key, msg), nil
	case <-n.done:
		return nil, pairsig.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Net) take(key queueKey, msg []byte) []byte {
	n.mu.Lock()
	delete(n.q, key)
	n.mu.Unlock()
	return msg
}

// Endpoint is one side of a two-party connection.
type Endpoint struct {
	net  *Net
	self pairsig.RoleID
	peer pairsig.RoleID

	sendMu  sync.Mutex
	sendSeq uint64
	recvMu  sync.Mutex
	recvSeq uint64
}

// Ep2P returns the endpoint for self talking to peer.
func (n *Net) Ep2P(self, peer pairsig.RoleID) *Endpoint {
	return &Endpoint{net: n, self: self, peer: peer}
}

func (e *Endpoint) Send(ctx context.Context, to pairsig.RoleID, msg []byte) error {
	if to == e.self {
		return errors.New("mocknet: send to self")
	}
	if to != e.peer {
		return fmt.Errorf("mocknet: unknown peer %d", to)
	}
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if err := e.net.deliver(ctx, queueKey{from: e.self, to: to, seq: e.sendSeq}, msg); err != nil {
		return err
	}
	e.sendSeq++
	return nil
}

func (e *Endpoint) Receive(ctx context.Context, from pairsig.RoleID) ([]byte, error) {
	if from == e.self {
		return nil, errors.New("mocknet: receive from self")
	}
	if from != e.peer {
		return nil, fmt.Errorf("mocknet: unknown peer %d", from)
	}
	e.recvMu.Lock()
	defer e.recvMu.Unlock()

	msg, err := e.net.await(ctx, queueKey{from: from, to: e.self, seq: e.recvSeq})
	if err != nil {
		return nil, err
	}
	e.recvSeq++
	return msg, nil
}

// Close drops the connection for both endpoints.
func (e *Endpoint) Close() error {
	return e.net.Close()
}
