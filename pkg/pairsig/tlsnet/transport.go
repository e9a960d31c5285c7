package tlsnet

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
)

// MaxFrameSize bounds a single frame.
const MaxFrameSize = 1 << 20

const (
	defaultDialTimeout = 10 * time.Second
	dialRetryInterval  = 200 * time.Millisecond
)

// Config configures one side of the connection.
type Config struct {
	Role pairsig.Role

	// Listen is the responder's listen address.
	Listen string
	// Peer is the responder address the initiator dials.
	Peer string
	// ServerName is the name the initiator expects in the responder's
	// certificate. Defaults to the host part of Peer.
	ServerName string

	Certificate tls.Certificate
	RootCAs     *x509.CertPool

	// DialTimeout bounds Dial's retry loop. Zero selects 10s.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the TLS handshake and role announcement of
	// each accepted connection. Zero selects 10s.
	HandshakeTimeout time.Duration
}

func (c Config) validate() error {
	if !c.Role.Valid() {
		return fmt.Errorf("tlsnet: %w", pairsig.ErrInvalidRole)
	}
	if c.RootCAs == nil {
		return errors.New("tlsnet: root CA pool required")
	}
	if len(c.Certificate.Certificate) == 0 {
		return errors.New("tlsnet: certificate required")
	}
	return nil
}

// Transport implements pairsig.Transport over an mTLS connection.
type Transport struct {
	self pairsig.RoleID
	peer pairsig.RoleID
	conn net.Conn

	writeMu sync.Mutex
	recv    chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// New connects according to cfg.Role: the responder accepts exactly one
// connection and stops listening, the initiator dials.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Role == pairsig.RoleInitiator {
		return Dial(ctx, cfg)
	}
	ln, err := Listen(cfg)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Accept(ctx)
}

// Listener accepts initiator connections.
type Listener struct {
	ln               net.Listener
	handshakeTimeout time.Duration
}

// Listen starts the responder side.
func Listen(cfg Config) (*Listener, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Role != pairsig.RoleResponder {
		return nil, fmt.Errorf("tlsnet: listen as %s: %w", cfg.Role, pairsig.ErrInvalidRole)
	}
	serverTLS := &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    cfg.RootCAs,
		MinVersion:   tls.VersionTLS12,
	}
	ln, err := tls.Listen("tcp", cfg.Listen, serverTLS)
	if err != nil {
		return nil, fmt.Errorf("tlsnet: listen: %w", err)
	}
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	return &Listener{ln: ln, handshakeTimeout: timeout}, nil
}

// Addr returns the listen address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting connections. Established transports stay open.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept waits for the next initiator, completes the TLS handshake and checks
// the announced role. A connection that does not finish both within the
// handshake timeout is dropped with an error; the listener stays open.
// Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (*Transport, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		_ = l.ln.Close()
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.err != nil {
		return nil, fmt.Errorf("tlsnet: accept: %w", res.err)
	}

	tlsConn, ok := res.conn.(*tls.Conn)
	if !ok {
		return nil, closeWithContextErr(res.conn, errors.New("tlsnet: non-TLS connection accepted"))
	}
	hctx, cancel := context.WithTimeout(ctx, l.handshakeTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		return nil, closeWithContextErr(tlsConn, fmt.Errorf("tlsnet: handshake: %w", err))
	}
	_ = tlsConn.SetReadDeadline(time.Now().Add(l.handshakeTimeout))
	peerID, err := readPeerID(tlsConn)
	_ = tlsConn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, closeWithContextErr(tlsConn, fmt.Errorf("tlsnet: read peer id: %w", err))
	}
	if pairsig.RoleID(peerID) != pairsig.RoleInitiator.ID() {
		return nil, closeWithContextErr(tlsConn, fmt.Errorf("tlsnet: unexpected peer id %d", peerID))
	}
	return newTransport(pairsig.RoleResponder, tlsConn), nil
}

// Dial connects the initiator to the responder, retrying until the responder
// answers or the dial timeout expires.
func Dial(ctx context.Context, cfg Config) (*Transport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Role != pairsig.RoleInitiator {
		return nil, fmt.Errorf("tlsnet: dial as %s: %w", cfg.Role, pairsig.ErrInvalidRole)
	}
	serverName := cfg.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(cfg.Peer)
		if err != nil {
			return nil, fmt.Errorf("tlsnet: peer address: %w", err)
		}
		serverName = host
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate},
		RootCAs:      cfg.RootCAs,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	}

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{Config: tlsCfg}
	var lastErr error
	for {
		conn, err := dialer.DialContext(dctx, "tcp", cfg.Peer)
		if err == nil {
			if err := writePeerID(conn, uint32(pairsig.RoleInitiator.ID())); err != nil {
				return nil, closeWithContextErr(conn, fmt.Errorf("tlsnet: write peer id: %w", err))
			}
			return newTransport(pairsig.RoleInitiator, conn), nil
		}
		lastErr = err

		select {
		case <-dctx.Done():
			return nil, fmt.Errorf("tlsnet: dial %s: %w (last error: %v)", cfg.Peer, dctx.Err(), lastErr)
		case <-time.After(dialRetryInterval):
		}
	}
}

func newTransport(self pairsig.Role, conn net.Conn) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		self:   self.ID(),
		peer:   self.Peer().ID(),
		conn:   conn,
		recv:   make(chan []byte, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	go t.reader()
	return t
}

func (t *Transport) reader() {
	defer close(t.recv)
	for {
		msg, err := readFrame(t.conn)
		if err != nil {
			t.setErr(err)
			return
		}
		select {
		case t.recv <- msg:
		case <-t.ctx.Done():
			t.setErr(io.EOF)
			return
		}
	}
}

func (t *Transport) checkPeer(id pairsig.RoleID) error {
	if id == t.self {
		return errors.New("tlsnet: self addressed")
	}
	if id != t.peer {
		return fmt.Errorf("tlsnet: unknown peer %d", id)
	}
	return nil
}

// Send writes one frame. A deadline on ctx becomes the write deadline.
func (t *Transport) Send(ctx context.Context, to pairsig.RoleID, msg []byte) error {
	if err := t.checkPeer(to); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.ctx.Done():
		return pairsig.ErrTransportClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	_ = t.conn.SetWriteDeadline(deadline)
	if err := writeFrame(t.conn, msg); err != nil {
		return fmt.Errorf("%w: %v", pairsig.ErrTransportClosed, err)
	}
	return nil
}

// Receive returns the next frame. Frames that arrived before the connection
// closed are still returned.
func (t *Transport) Receive(ctx context.Context, from pairsig.RoleID) ([]byte, error) {
	if err := t.checkPeer(from); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-t.recv:
		if !ok {
			return nil, fmt.Errorf("%w: %v", pairsig.ErrTransportClosed, t.errOr(io.EOF))
		}
		return msg, nil
	}
}

// PeerCertificate returns the verified leaf certificate of the peer.
func (t *Transport) PeerCertificate() *x509.Certificate {
	tc, ok := t.conn.(*tls.Conn)
	if !ok {
		return nil
	}
	certs := tc.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	return certs[0]
}

// Close terminates the connection. Pending Receive calls fail with
// pairsig.ErrTransportClosed.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) setErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *Transport) errOr(fallback error) error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err != nil {
		return t.err
	}
	return fallback
}

func writeFrame(conn net.Conn, payload []byte) error {
	size := len(payload)
	if size > MaxFrameSize {
		return fmt.Errorf("tlsnet: frame too large (%d bytes)", size)
	}
	buf := make([]byte, 4+size)
	binary.BigEndian.PutUint32(buf[:4], uint32(size))
	copy(buf[4:], payload)
	_, err := conn.Write(buf)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("tlsnet: frame too large (%d bytes)", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writePeerID(conn net.Conn, id uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], id)
	_, err := conn.Write(buf[:])
	return err
}

func readPeerID(conn net.Conn) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func closeWithContextErr(c io.Closer, base error) error {
	if closeErr := c.Close(); closeErr != nil {
		return fmt.Errorf("%w; close error: %v", base, closeErr)
	}
	return base
}
