package wsnet_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/schnorr2p"
	"github.com/pairsig/pairsig-go/pkg/pairsig/wsnet"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + wsnet.Path
}

func TestHealthz(t *testing.T) {
	srv := wsnet.NewServer(func(context.Context, *wsnet.Conn) error { return nil }, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + wsnet.HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, pairsig.ProtocolVersion, body["protocol"])

	post, err := http.Post(ts.URL+wsnet.HealthPath, "text/plain", nil)
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestEcho(t *testing.T) {
	srv := wsnet.NewServer(func(ctx context.Context, c *wsnet.Conn) error {
		for {
			msg, err := c.Receive(ctx, pairsig.RoleInitiator.ID())
			if err != nil {
				return nil
			}
			if err := c.Send(ctx, pairsig.RoleInitiator.ID(), msg); err != nil {
				return err
			}
		}
	}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := wsnet.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	defer c.Close()

	peer := pairsig.RoleResponder.ID()
	for _, m := range []string{`{"type":"HELLO","session":"s"}`, "second"} {
		require.NoError(t, c.Send(ctx, peer, []byte(m)))
		got, err := c.Receive(ctx, peer)
		require.NoError(t, err)
		require.Equal(t, m, string(got))
	}

	require.Error(t, c.Send(ctx, pairsig.RoleInitiator.ID(), []byte("self")))
}

func TestServerCloseEndsReceive(t *testing.T) {
	srv := wsnet.NewServer(func(ctx context.Context, c *wsnet.Conn) error {
		return c.Send(ctx, pairsig.RoleInitiator.ID(), []byte("bye"))
	}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := wsnet.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	defer c.Close()

	peer := pairsig.RoleResponder.ID()
	got, err := c.Receive(ctx, peer)
	require.NoError(t, err)
	require.Equal(t, "bye", string(got))

	_, err = c.Receive(ctx, peer)
	require.ErrorIs(t, err, pairsig.ErrTransportClosed)
}

func TestBinaryFramesRejected(t *testing.T) {
	errCh := make(chan error, 1)
	srv := wsnet.NewServer(func(ctx context.Context, c *wsnet.Conn) error {
		_, err := c.Receive(ctx, pairsig.RoleInitiator.ID())
		errCh <- err
		return err
	}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer ws.Close()
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, pairsig.ErrTransportClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not reject binary frame")
	}
}

func TestSignOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pb, err := schnorr2p.NewParty(pairsig.RoleResponder, pairsig.DefaultConfig())
	require.NoError(t, err)
	defer pb.Close()
	responder, err := schnorr2p.NewResponder(pb)
	require.NoError(t, err)

	served := make(chan error, 1)
	srv := wsnet.NewServer(func(ctx context.Context, c *wsnet.Conn) error {
		err := responder.Serve(ctx, c)
		served <- err
		return err
	}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	pa, err := schnorr2p.NewParty(pairsig.RoleInitiator, pairsig.DefaultConfig())
	require.NoError(t, err)
	defer pa.Close()

	c, err := wsnet.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	in, err := schnorr2p.NewInitiator(pa, c)
	require.NoError(t, err)

	kx, err := in.Handshake(ctx)
	require.NoError(t, err)
	res, err := in.Sign(ctx, []byte("example message"))
	require.NoError(t, err)
	require.NoError(t, schnorr2p.Verify(kx.AggregatedKey, []byte("example message"), res.Signature))
	require.NoError(t, in.Close())

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("responder did not finish")
	}

	outcome, ok := responder.Outcome(res.Session)
	require.True(t, ok)
	require.True(t, outcome.Done)
	require.NoError(t, outcome.Err)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := wsnet.NewServer(func(context.Context, *wsnet.Conn) error { return nil }, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
