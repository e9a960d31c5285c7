package schnorr2p

// State is the position of a peer in the protocol. States advance strictly in
// declaration order; StateAborted is terminal.
type State uint8

const (
	StateIdle State = iota
	StateKeysExchanged
	StateAggregated
	StateNonceCommitted
	StateNonceRevealed
	StatePartialSigSent
	StateSigned
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateKeysExchanged:
		return "KeysExchanged"
	case StateAggregated:
		return "Aggregated"
	case StateNonceCommitted:
		return "NonceCommitted"
	case StateNonceRevealed:
		return "NonceRevealed"
	case StatePartialSigSent:
		return "PartialSigSent"
	case StateSigned:
		return "Signed"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}
