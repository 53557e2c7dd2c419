package domain

import "errors"

// Errors surfaced by the protocol core. Callers match them with errors.Is;
// none of them are retried inside the core.
var (
	// ErrInvalidKey is returned for malformed or off-curve key material.
	ErrInvalidKey = errors.New("invalid key")

	// ErrAuthenticationFailed is returned when an AEAD tag does not verify.
	// The message key involved has been consumed and the message is
	// permanently undecryptable.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTooManySkippedMessages is returned when decrypting a message would
	// require caching more skipped message keys than allowed for one epoch.
	ErrTooManySkippedMessages = errors.New("too many skipped messages")

	// ErrHandshakeFailed is returned for malformed bundles, bad signed
	// pre-key signatures or unknown pre-key identifiers.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrNoSession is returned for operations on a peer without a session.
	ErrNoSession = errors.New("no session with peer")
)
