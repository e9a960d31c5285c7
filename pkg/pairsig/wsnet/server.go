package wsnet

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/logging"
)

// Routes served by Server.
const (
	Path       = "/pairsig"
	HealthPath = "/healthz"
)

const (
	handshakeTimeout = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Handler serves one accepted connection. The connection is closed when the
// handler returns.
type Handler func(ctx context.Context, c *Conn) error

// Server is the responder's HTTP front end.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	handle   Handler
	log      logging.Logger
}

// NewServer routes WebSocket connections on Path to handle.
func NewServer(handle Handler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		handle: handle,
		log:    logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
	router := mux.NewRouter()
	router.Methods(http.MethodGet).Path(HealthPath).HandlerFunc(healthHandler)
	router.Methods(http.MethodGet).Path(Path).HandlerFunc(s.connectHandler)
	s.router = router
	return s
}

// Handler returns the HTTP handler, for embedding in an existing server or
// httptest.
func (s *Server) Handler() http.Handler { return s.router }

type health struct {
	Status   string `json:"status"`
	Protocol string `json:"protocol"`
	Version  string `json:"version"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:   "ok",
		Protocol: pairsig.ProtocolVersion,
		Version:  pairsig.Version,
	})
}

func (s *Server) connectHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Warn(r.Context(), "wsnet: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newConn(ws, pairsig.RoleResponder)
	defer c.Close()

	ctx := r.Context()
	s.log.Info(ctx, "wsnet: peer connected", "remote", r.RemoteAddr)
	if err := s.handle(ctx, c); err != nil {
		s.log.Warn(ctx, "wsnet: connection ended with error", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.log.Info(ctx, "wsnet: peer disconnected", "remote", r.RemoteAddr)
}

// ListenAndServe serves on addr until ctx is done. With a non-nil tlsCfg the
// server speaks TLS, and HTTP/2 is enabled for the non-WebSocket routes.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsCfg *tls.Config) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: handshakeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("wsnet: listen: %w", err)
	}
	if tlsCfg != nil {
		srv.TLSConfig = tlsCfg.Clone()
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			_ = ln.Close()
			return fmt.Errorf("wsnet: configure http2: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg != nil {
			errCh <- srv.ServeTLS(ln, "", "")
			return
		}
		errCh <- srv.Serve(ln)
	}()
	s.log.Info(ctx, "wsnet: listening", "addr", ln.Addr().String(), "tls", tlsCfg != nil)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dial opens the initiator side. url is ws:// or wss://; tlsCfg may be nil
// for ws://.
func Dial(ctx context.Context, url string, tlsCfg *tls.Config) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  tlsCfg,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("wsnet: dial %s: %w", url, err)
	}
	return newConn(ws, pairsig.RoleInitiator), nil
}
