// Package session implements the Directory: one device's identity and
// pre-keys plus the ratchet sessions it holds with its peers.
//
// The Directory runs X3DH once per peer, as initiator through Establish or as
// responder through Accept, and then routes every Encrypt and Decrypt to that
// peer's ratchet. Operations on one peer are serialised; different peers
// proceed in parallel. With a session store configured, every committed
// operation is persisted before it returns and sessions are loaded lazily on
// first use.
package session
