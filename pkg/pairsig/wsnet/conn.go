package wsnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

// MaxMessageSize bounds one WebSocket message.
const MaxMessageSize = 1 << 20

const closeGracePeriod = time.Second

// Conn is a pairsig.Transport over a WebSocket.
type Conn struct {
	ws   *websocket.Conn
	self pairsig.RoleID
	peer pairsig.RoleID

	writeMu sync.Mutex
	recv    chan []byte

	closed    chan struct{}
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

func newConn(ws *websocket.Conn, self pairsig.Role) *Conn {
	ws.SetReadLimit(MaxMessageSize)
	c := &Conn{
		ws:     ws,
		self:   self.ID(),
		peer:   self.Peer().ID(),
		recv:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
	go c.reader()
	return c
}

func (c *Conn) reader() {
	defer close(c.recv)
	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		if kind != websocket.TextMessage {
			c.setErr(fmt.Errorf("wsnet: unexpected message kind %d", kind))
			_ = c.Close()
			return
		}
		select {
		case c.recv <- msg:
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) checkPeer(id pairsig.RoleID) error {
	if id == c.self {
		return errors.New("wsnet: self addressed")
	}
	if id != c.peer {
		return fmt.Errorf("wsnet: unknown peer %d", id)
	}
	return nil
}

// Send writes msg as one text frame.
func (c *Conn) Send(ctx context.Context, to pairsig.RoleID, msg []byte) error {
	if err := c.checkPeer(to); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return pairsig.ErrTransportClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: %v", pairsig.ErrTransportClosed, err)
	}
	return nil
}

// Receive returns the next text frame.
func (c *Conn) Receive(ctx context.Context, from pairsig.RoleID) ([]byte, error) {
	if err := c.checkPeer(from); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-c.recv:
		if !ok {
			return nil, fmt.Errorf("%w: %v", pairsig.ErrTransportClosed, c.errOr(websocket.ErrCloseSent))
		}
		return msg, nil
	}
}

// Close sends a close frame and tears the connection down.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Conn) errOr(fallback error) error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return c.err
	}
	return fallback
}
