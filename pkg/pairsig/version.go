package pairsig

// Version is populated at build time via ldflags.
var Version = "v0.0.0-in-progress"

// ProtocolVersion names the wire protocol spoken by this build. Both peers
// must agree on it; it is reported in logs and by the health endpoint.
const ProtocolVersion = "pairsig-schnorr2p/1"
