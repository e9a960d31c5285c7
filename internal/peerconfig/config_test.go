package peerconfig

import (
	"crypto/tls"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/tlsnet"
)

func writeFile(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(body), 0o600))
}

func TestLoadResponder(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "bob.json", `{
		"role": "responder",
		"transport": "mtls",
		"listen": "127.0.0.1:9443",
		"ca_cert": "certs/rootCA.pem",
		"cert": "certs/bob-cert.pem",
		"key": "certs/bob-key.pem",
		"phase_timeout": "5s",
		"registry_size": 16
	}`)

	cfg, err := Load("bob.json")
	require.NoError(t, err)
	require.Equal(t, pairsig.RoleResponder, cfg.PeerRole())

	proto, err := cfg.Protocol(nil)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, proto.PhaseTimeout)
	require.Equal(t, 16, proto.RegistrySize)
	require.False(t, proto.TrustPeerNonce)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base := func() PeerConfig {
		return PeerConfig{
			Role:      "initiator",
			Transport: TransportMTLS,
			Peer:      "127.0.0.1:9443",
			CACert:    "certs/rootCA.pem",
			Cert:      "certs/alice-cert.pem",
			Key:       "certs/alice-key.pem",
		}
	}
	good := base()
	require.NoError(t, good.Validate())

	cases := map[string]func(*PeerConfig){
		"bad role":          func(c *PeerConfig) { c.Role = "observer" },
		"bad transport":     func(c *PeerConfig) { c.Transport = "udp" },
		"missing peer":      func(c *PeerConfig) { c.Peer = "" },
		"peer without port": func(c *PeerConfig) { c.Peer = "localhost" },
		"mtls without key":  func(c *PeerConfig) { c.Key = "" },
		"escaping path":     func(c *PeerConfig) { c.CACert = "../rootCA.pem" },
		"bad timeout":       func(c *PeerConfig) { c.PhaseTimeout = "soon" },
		"negative timeout":  func(c *PeerConfig) { c.PhaseTimeout = "-1s" },
		"responder no listen": func(c *PeerConfig) {
			c.Role = "responder"
		},
		"ws peer not url": func(c *PeerConfig) {
			c.Transport = TransportWebSocket
		},
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		require.Error(t, cfg.Validate(), name)
	}

	var nilCfg *PeerConfig
	require.Error(t, nilCfg.Validate())

	ws := PeerConfig{Role: "a", Transport: TransportWebSocket, Peer: "ws://127.0.0.1:8080/pairsig"}
	require.NoError(t, ws.Validate())
	tlsCfg, err := ws.TLSConfig()
	require.NoError(t, err)
	require.Nil(t, tlsCfg)
}

func TestLoadRejectsEscape(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("../peer.json")
	require.Error(t, err)
}

func TestCertificatesFromGeneratedFiles(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, tlsnet.GenerateCertificates([]string{"alice", "bob"}, "certs", tlsnet.CertOptions{IncludeLocalhost: true}))

	responder := PeerConfig{
		Role:      "responder",
		Transport: TransportWebSocket,
		Listen:    "127.0.0.1:0",
		CACert:    "certs/rootCA.pem",
		Cert:      "certs/bob-cert.pem",
		Key:       "certs/bob-key.pem",
	}
	require.NoError(t, responder.Validate())
	srv, err := responder.TLSConfig()
	require.NoError(t, err)
	require.Equal(t, tls.RequireAndVerifyClientCert, srv.ClientAuth)
	require.NotNil(t, srv.ClientCAs)
	require.Len(t, srv.Certificates, 1)

	initiator := PeerConfig{
		Role:       "initiator",
		Transport:  TransportMTLS,
		Peer:       "127.0.0.1:9443",
		ServerName: "bob",
		CACert:     "certs/rootCA.pem",
		Cert:       "certs/alice-cert.pem",
		Key:        "certs/alice-key.pem",
	}
	tn, err := initiator.TLSNet()
	require.NoError(t, err)
	require.Equal(t, pairsig.RoleInitiator, tn.Role)
	require.Equal(t, "bob", tn.ServerName)
	require.NotNil(t, tn.RootCAs)
	require.NotEmpty(t, tn.Certificate.Certificate)

	_, err = LoadCertPool("certs/alice-key.pem")
	require.Error(t, err)
}
