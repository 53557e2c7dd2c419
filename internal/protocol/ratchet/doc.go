// Package ratchet implements the Double Ratchet engine that carries one
// pairwise session after the X3DH handshake.
//
// A Ratchet owns a root key and its current ratchet key pair. Until the peer's
// ratchet key is known the ratchet is awaiting its peer and has no chains.
// Once active, every Encrypt advances the sending chain and every Decrypt
// advances the receiving chain. A new ratchet key from the peer triggers a DH
// ratchet step: the root key is mixed with a fresh DH output, a new receiving
// chain is derived, the local key pair is replaced and the sending chain is
// cleared until the next Encrypt.
//
// # Out-of-order delivery
//
// Keys for messages that were skipped over are cached per (ratchet key,
// index). The cache is bounded: at most MaxSkip keys per ratchet epoch and at
// most five epochs. A message that would exceed the bound is rejected with
// domain.ErrTooManySkippedMessages and leaves the ratchet untouched.
//
// # Failure semantics
//
// Decrypt works on a staged copy of the state. A message that fails
// authentication never commits a DH ratchet step. Within the current epoch
// the receiving chain still moves past the failing index and the keys cached
// on the way are kept, so the failing key itself is burnt.
//
// # Concurrency
//
// A Ratchet is safe for concurrent use; calls are serialised by an internal
// mutex.
package ratchet
