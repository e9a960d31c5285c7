// Package mocknet provides an in-memory pairsig.Transport for tests and
// in-process demos.
//
// Messages are delivered in order per direction with no loss, duplication or
// reordering, which is exactly the channel the protocol assumes.
//
// # Usage
//
//	net := mocknet.New()
//	a := net.Ep2P(pairsig.RoleInitiator.ID(), pairsig.RoleResponder.ID())
//	b := net.Ep2P(pairsig.RoleResponder.ID(), pairsig.RoleInitiator.ID())
//
// or, equivalently:
//
//	a, b := mocknet.Pipe()
//
// # Simulating Failures
//
// Close tears the whole network down: pending and future Send/Receive calls
// fail with pairsig.ErrTransportClosed. This is how tests model a dropped
// connection in the middle of a session.
//
// # Limitations
//
// Mocknet is designed for testing only: no encryption, no authentication and
// no latency simulation.
package mocknet
