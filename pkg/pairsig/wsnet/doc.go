// Package wsnet carries the protocol over WebSocket, one text frame per wire
// message.
//
// The responder side is an HTTP handler built on a gorilla/mux router:
//
//	GET /pairsig   upgrades to a WebSocket and hands the connection to the
//	               callback as a pairsig.Transport
//	GET /healthz   reports liveness and the protocol version
//
// The initiator side is Dial. Run the server behind TLS (ListenAndServe with
// a tls.Config requiring client certificates) to authenticate both peers.
package wsnet
