// Package tlsnet is a pairsig.Transport over one long-lived, mutually
// authenticated TLS connection between the initiator and the responder.
//
// Frames are length-prefixed with a 4-byte big-endian size. Right after the
// TLS handshake the initiator announces its role ID so the responder can
// refuse a misconfigured peer.
//
// The responder calls Listen and then Accept for every initiator connection;
// the initiator calls Dial, which retries until the responder is reachable.
// New picks the right side from Config.Role for the single-connection case.
//
// GenerateCertificates writes a demo CA plus one certificate per peer usable
// for both client and server authentication.
package tlsnet
