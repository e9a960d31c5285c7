// Package wire defines the tagged messages exchanged by the two peers.
//
// Every message is a single JSON object carried in one transport frame:
//
//	{"type":"PUB","session":"7c0e…","pub":"02a1…"}
//
// Binary fields are lowercase hex. Points are 33-byte SEC1 compressed
// encodings and scalars are 32-byte big-endian encodings, zero padded.
// Commitments are 32-byte SHA-256 digests.
//
// Decode is strict: unknown fields, unknown tags and missing required fields
// fail with pairsig.ErrMalformedMessage. Field contents are only decoded by
// the typed accessors (PubPoint, NoncePoint, CommitBytes, PartialScalar), which
// report pairsig.ErrMalformedPoint and pairsig.ErrMalformedScalar so the state
// machine can surface the precise failure.
package wire
