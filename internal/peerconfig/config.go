// Package peerconfig loads the JSON file that describes one pairsig peer.
package peerconfig

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/logging"
	"github.com/pairsig/pairsig-go/pkg/pairsig/tlsnet"
)

// Transport names accepted in the "transport" field.
const (
	TransportMTLS      = "mtls"
	TransportWebSocket = "ws"
)

// PeerConfig describes a single peer.
type PeerConfig struct {
	Role      string `json:"role"`
	Transport string `json:"transport"`

	// Listen is the responder's listen address.
	Listen string `json:"listen,omitempty"`
	// Peer is the responder address for mtls, or its ws:// / wss:// URL.
	Peer       string `json:"peer,omitempty"`
	ServerName string `json:"server_name,omitempty"`

	CACert string `json:"ca_cert,omitempty"`
	Cert   string `json:"cert,omitempty"`
	Key    string `json:"key,omitempty"`

	PhaseTimeout   string `json:"phase_timeout,omitempty"`
	TrustPeerNonce bool   `json:"trust_peer_nonce,omitempty"`
	RegistrySize   int    `json:"registry_size,omitempty"`
	LogLevel       string `json:"log_level,omitempty"`
}

// Load reads and validates a peer configuration JSON file.
func Load(path string) (*PeerConfig, error) {
	absPath, err := SecurePath(path)
	if err != nil {
		return nil, fmt.Errorf("secure path: %w", err)
	}
	data, err := os.ReadFile(absPath) // #nosec G304 -- absPath validated by SecurePath
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var cfg PeerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs sanity checks and sanitizes file paths. It does not open
// files.
func (c *PeerConfig) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	role, err := pairsig.ParseRole(c.Role)
	if err != nil {
		return fmt.Errorf("role %q: %w", c.Role, err)
	}

	switch c.Transport {
	case TransportMTLS:
		if c.CACert == "" || c.Cert == "" || c.Key == "" {
			return errors.New("mtls transport requires ca_cert, cert and key")
		}
	case TransportWebSocket:
		if (c.Cert == "") != (c.Key == "") {
			return errors.New("cert and key must be set together")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if role == pairsig.RoleResponder {
		if c.Listen == "" {
			return errors.New("responder requires listen")
		}
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %v", c.Listen, err)
		}
	} else {
		if c.Peer == "" {
			return errors.New("initiator requires peer")
		}
		if c.Transport == TransportMTLS {
			if _, _, err := net.SplitHostPort(c.Peer); err != nil {
				return fmt.Errorf("invalid peer address %q: %v", c.Peer, err)
			}
		} else if !strings.HasPrefix(c.Peer, "ws://") && !strings.HasPrefix(c.Peer, "wss://") {
			return fmt.Errorf("peer %q must be a ws:// or wss:// URL", c.Peer)
		}
	}

	for name, p := range map[string]string{"ca_cert": c.CACert, "cert": c.Cert, "key": c.Key} {
		if p == "" {
			continue
		}
		if _, err := SecurePath(p); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if _, err := c.Protocol(nil); err != nil {
		return err
	}
	return nil
}

// PeerRole returns the parsed role.
func (c *PeerConfig) PeerRole() pairsig.Role {
	role, _ := pairsig.ParseRole(c.Role)
	return role
}

// Protocol returns the protocol configuration, logging to logger.
func (c *PeerConfig) Protocol(logger logging.Logger) (pairsig.Config, error) {
	cfg := pairsig.DefaultConfig()
	if c.PhaseTimeout != "" {
		d, err := time.ParseDuration(c.PhaseTimeout)
		if err != nil {
			return pairsig.Config{}, fmt.Errorf("%w: phase_timeout: %v", pairsig.ErrInvalidConfig, err)
		}
		cfg.PhaseTimeout = d
	}
	if c.RegistrySize != 0 {
		cfg.RegistrySize = c.RegistrySize
	}
	cfg.TrustPeerNonce = c.TrustPeerNonce
	cfg.Logger = logger
	if err := cfg.Validate(); err != nil {
		return pairsig.Config{}, err
	}
	return cfg, nil
}

// TLSNet returns the mtls transport configuration.
func (c *PeerConfig) TLSNet() (tlsnet.Config, error) {
	pool, err := LoadCertPool(c.CACert)
	if err != nil {
		return tlsnet.Config{}, err
	}
	cert, err := LoadKeyPair(c.Cert, c.Key)
	if err != nil {
		return tlsnet.Config{}, err
	}
	return tlsnet.Config{
		Role:        c.PeerRole(),
		Listen:      c.Listen,
		Peer:        c.Peer,
		ServerName:  c.ServerName,
		Certificate: cert,
		RootCAs:     pool,
	}, nil
}

// TLSConfig returns the TLS settings for the WebSocket transport, or nil when
// no certificates are configured. The responder requires client certificates
// whenever a CA is configured.
func (c *PeerConfig) TLSConfig() (*tls.Config, error) {
	if c.CACert == "" && c.Cert == "" {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS13, ServerName: c.ServerName}
	if c.Cert != "" {
		cert, err := LoadKeyPair(c.Cert, c.Key)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CACert != "" {
		pool, err := LoadCertPool(c.CACert)
		if err != nil {
			return nil, err
		}
		if c.PeerRole() == pairsig.RoleResponder {
			cfg.ClientCAs = pool
			cfg.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			cfg.RootCAs = pool
		}
	}
	return cfg, nil
}

// LoadCertPool loads a PEM-encoded CA certificate pool from the given path.
func LoadCertPool(path string) (*x509.CertPool, error) {
	absPath, err := SecurePath(path)
	if err != nil {
		return nil, fmt.Errorf("secure path: %w", err)
	}
	pemData, err := os.ReadFile(absPath) // #nosec G304 -- absPath validated by SecurePath
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

// LoadKeyPair loads a TLS certificate and private key from the given paths.
func LoadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	certAbs, err := SecurePath(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("secure cert path: %w", err)
	}
	keyAbs, err := SecurePath(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("secure key path: %w", err)
	}
	cert, err := tls.LoadX509KeyPair(certAbs, keyAbs)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}

// SecurePath validates that a file path doesn't escape the working directory.
func SecurePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}
