// Package logging provides a minimal logging facade for the pairsig packages.
//
// The Logger interface wraps the subset of log/slog used by the protocol
// drivers. It is intentionally small so applications can plug in their own
// implementation for testing or redaction policies.
//
// # Default Implementation
//
//	logger := logging.New(nil) // slog.Default()
//
//	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
//	logger = logging.New(slog.New(handler))
//
// # Redaction
//
// Key shares, nonce scalars and partial signature scalars must never be
// logged. Use Redacted to record that a value was intentionally left out:
//
//	logger.Debug(ctx, "nonce generated", logging.Redacted("k"), "session", id)
//
// Public values (compressed points, commitments, session identifiers and
// protocol states) may be logged.
package logging
