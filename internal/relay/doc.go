// Package relay provides an HTTP implementation of the domain.RelayClient
// interface used by paircrypt.
//
// The relay is a store-and-forward service for encrypted envelopes and
// public pre-key bundles. It never sees plaintext or private keys.
//
// Supported operations:
//   - Publishing our pre-key bundle.
//   - Fetching a peer's bundle (with at most one one-time pre-key).
//   - Sending envelopes to a peer.
//   - Fetching pending envelopes for a device.
//   - Acknowledging received envelopes.
//
// All requests are JSON over HTTP and take a context for cancellation and
// deadlines. A 404 is reported as ErrNotFound; other non-2xx statuses are
// returned with the method, path and status text.
//
// The server side lives in relay/server.
package relay
