package wire

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"

	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/curve"
)

// MaxMessageSize bounds an encoded message.
const MaxMessageSize = 1 << 20

// CommitSize is the length of a nonce commitment.
const CommitSize = 32

// Type tags a message.
type Type string

const (
	TypeHello       Type = "HELLO"
	TypePub         Type = "PUB"
	TypePubAck      Type = "PUB_ACK"
	TypeSignRequest Type = "SIGN_REQUEST"
	TypeCommit      Type = "COMMIT"
	TypeNonce       Type = "NONCE"
	TypePartialS    Type = "PARTIAL_S"
	TypeDone        Type = "DONE"
	TypeError       Type = "ERROR"
)

// Message is the union of every wire record. Only the fields named by Type are
// populated.
type Message struct {
	Type    Type    `json:"type"`
	Session string  `json:"session,omitempty"`
	Pub     string  `json:"pub,omitempty"`
	Message *string `json:"message,omitempty"`
	Commit  string  `json:"commit,omitempty"`
	R       string  `json:"R,omitempty"`
	S       string  `json:"s,omitempty"`
	Valid   *bool   `json:"valid,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Detail  string  `json:"detail,omitempty"`
}

// Hello opens a session.
func Hello(session string) Message {
	return Message{Type: TypeHello, Session: session}
}

// Pub reveals a compressed public key share.
func Pub(session string, pub []byte) Message {
	return Message{Type: TypePub, Session: session, Pub: hex.EncodeToString(pub)}
}

// PubAck tells the initiator that the responder has aggregated the key.
func PubAck(session string) Message {
	return Message{Type: TypePubAck, Session: session}
}

// SignRequest names the message to be signed in a new signing round.
func SignRequest(session string, msg []byte) Message {
	s := string(msg)
	return Message{Type: TypeSignRequest, Session: session, Message: &s}
}

// Commit announces the SHA-256 commitment to a nonce point.
func Commit(session string, commit []byte) Message {
	return Message{Type: TypeCommit, Session: session, Commit: hex.EncodeToString(commit)}
}

// Nonce reveals a nonce point. A nil msg omits the message field.
func Nonce(session string, r []byte, msg []byte) Message {
	m := Message{Type: TypeNonce, Session: session, R: hex.EncodeToString(r)}
	if msg != nil {
		s := string(msg)
		m.Message = &s
	}
	return m
}

// PartialS reveals a partial signature scalar.
func PartialS(session string, s []byte) Message {
	return Message{Type: TypePartialS, Session: session, S: hex.EncodeToString(s)}
}

// Done reports the local verification result.
func Done(session string, valid bool) Message {
	return Message{Type: TypeDone, Session: session, Valid: &valid}
}

// Error reports a session-fatal failure to the counterparty.
func Error(session, kind, detail string) Message {
	return Message{Type: TypeError, Session: session, Kind: kind, Detail: detail}
}

// ValidMessage reports whether msg can be carried in the message field without
// being altered by JSON encoding.
func ValidMessage(msg []byte) bool {
	return utf8.Valid(msg)
}

// Encode validates m and returns its JSON encoding.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, pairsig.Errorf(pairsig.ErrMalformedMessage, "encode %s: %v", m.Type, err)
	}
	if len(data) > MaxMessageSize {
		return nil, pairsig.Errorf(pairsig.ErrMalformedMessage, "%s exceeds %d bytes", m.Type, MaxMessageSize)
	}
	return data, nil
}

// Decode parses and validates one frame.
func Decode(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return Message{}, pairsig.Errorf(pairsig.ErrMalformedMessage, "frame exceeds %d bytes", MaxMessageSize)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return Message{}, pairsig.Errorf(pairsig.ErrMalformedMessage, "%v", err)
	}
	if dec.More() {
		return Message{}, pairsig.Errorf(pairsig.ErrMalformedMessage, "trailing data after message")
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks that m has a known tag and carries the fields its type
// requires. It does not decode field contents.
func (m Message) Validate() error {
	missing := func(field string) error {
		return pairsig.Errorf(pairsig.ErrMalformedMessage, "%s missing %s", m.Type, field)
	}
	switch m.Type {
	case TypeHello:
		if m.Session == "" {
			return missing("session")
		}
	case TypePub:
		if m.Pub == "" {
			return missing("pub")
		}
	case TypePubAck:
	case TypeSignRequest:
		if m.Session == "" {
			return missing("session")
		}
		if m.Message == nil {
			return missing("message")
		}
	case TypeCommit:
		if m.Commit == "" {
			return missing("commit")
		}
	case TypeNonce:
		if m.R == "" {
			return missing("R")
		}
	case TypePartialS:
		if m.S == "" {
			return missing("s")
		}
	case TypeDone:
		if m.Valid == nil {
			return missing("valid")
		}
	case TypeError:
		if m.Kind == "" {
			return missing("kind")
		}
	default:
		return pairsig.Errorf(pairsig.ErrMalformedMessage, "unknown type %q", m.Type)
	}
	return nil
}

// PubPoint decodes the pub field.
func (m Message) PubPoint() (*curve.Point, error) {
	return decodePoint("pub", m.Pub)
}

// NoncePoint decodes the R field.
func (m Message) NoncePoint() (*curve.Point, error) {
	return decodePoint("R", m.R)
}

// CommitBytes decodes the commit field.
func (m Message) CommitBytes() ([]byte, error) {
	b, err := hex.DecodeString(m.Commit)
	if err != nil {
		return nil, pairsig.Errorf(pairsig.ErrMalformedMessage, "commit is not hex")
	}
	if len(b) != CommitSize {
		return nil, pairsig.Errorf(pairsig.ErrMalformedMessage, "commit has %d bytes, want %d", len(b), CommitSize)
	}
	return b, nil
}

// PartialScalar decodes the s field.
func (m Message) PartialScalar() (*curve.Scalar, error) {
	b, err := hex.DecodeString(m.S)
	if err != nil {
		return nil, pairsig.Errorf(pairsig.ErrMalformedScalar, "s is not hex")
	}
	defer pairsig.ZeroizeBytes(b)
	return curve.ParseScalar(b)
}

// MessageBytes returns the message field and whether it was present.
func (m Message) MessageBytes() ([]byte, bool) {
	if m.Message == nil {
		return nil, false
	}
	return []byte(*m.Message), true
}

func decodePoint(field, value string) (*curve.Point, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, pairsig.Errorf(pairsig.ErrMalformedPoint, "%s is not hex", field)
	}
	return curve.ParsePoint(b)
}
