package schnorr2p

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/curve"
)

// KeyShare is one additive share of the signing key.
//
// SECURITY WARNING: the secret scalar never leaves the process. It is not
// serializable and is zeroized by Party.Close.
type KeyShare struct {
	x   *curve.Scalar
	pub *curve.Point
}

func newKeyShare() (*KeyShare, error) {
	x, err := curve.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	return &KeyShare{x: x, pub: curve.ScalarBaseMult(x)}, nil
}

// Party is a peer for the lifetime of the process: a role, a key share and
// the protocol configuration. Sessions created from one Party share its key.
type Party struct {
	role  pairsig.Role
	cfg   pairsig.Config
	share *KeyShare
}

// NewParty generates a fresh key share for role.
func NewParty(role pairsig.Role, cfg pairsig.Config) (*Party, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %d", pairsig.ErrInvalidRole, role)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	share, err := newKeyShare()
	if err != nil {
		return nil, fmt.Errorf("generate key share: %w", err)
	}
	return &Party{role: role, cfg: cfg.WithDefaults(), share: share}, nil
}

// Role returns the party's protocol role.
func (p *Party) Role() pairsig.Role { return p.role }

// Config returns the effective configuration.
func (p *Party) Config() pairsig.Config { return p.cfg }

// PublicShare returns the compressed public point of the key share.
func (p *Party) PublicShare() []byte {
	b, _ := p.share.pub.Bytes()
	return b
}

// Close zeroizes the key share. The party cannot sign afterwards.
func (p *Party) Close() error {
	if p == nil || p.share == nil {
		return nil
	}
	p.share.x.Zeroize()
	p.share = nil
	return nil
}

// SessionParams customizes a Session.
type SessionParams struct {
	// ID names the session. The initiator generates a random identifier when
	// empty; the responder learns it from HELLO.
	ID string

	// Admit is called by a responder session with the identifier of every
	// SIGN_REQUEST before any nonce is drawn. A non-nil error aborts the
	// session.
	Admit func(round string) error
}

// NewSession starts a protocol session for one connection.
func (p *Party) NewSession(params *SessionParams) (*Session, error) {
	if p.share == nil {
		return nil, fmt.Errorf("%w: party is closed", pairsig.ErrSessionAborted)
	}
	s := &Session{
		role:  p.role,
		share: p.share,
		trust: p.cfg.TrustPeerNonce,
	}
	if params != nil {
		s.id = params.ID
		s.admit = params.Admit
	}
	if s.id == "" && p.role == pairsig.RoleInitiator {
		s.id = uuid.NewString()
	}
	return s, nil
}

// nonceCommitment is the secret nonce of one signing round together with its
// public point and commitment.
type nonceCommitment struct {
	k      *curve.Scalar
	r      *curve.Point
	commit []byte
}

func newNonceCommitment() (*nonceCommitment, error) {
	k, err := curve.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	r := curve.ScalarBaseMult(k)
	rb, err := r.Bytes()
	if err != nil {
		k.Zeroize()
		return nil, err
	}
	return &nonceCommitment{k: k, r: r, commit: commitTo(rb)}, nil
}

func (n *nonceCommitment) zeroize() {
	if n == nil {
		return
	}
	n.k.Zeroize()
	n.k = nil
}

// commitTo hashes a compressed nonce point.
func commitTo(r []byte) []byte {
	sum := sha256.Sum256(r)
	return sum[:]
}
