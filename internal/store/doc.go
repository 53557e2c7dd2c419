// Package store provides persistence for paircrypt's client state.
//
// It contains concrete implementations of the domain storage interfaces:
//   - IdentityFileStore: the identity, sealed under a passphrase (scrypt +
//     ChaCha20-Poly1305)
//   - PreKeyFileStore: signed and one-time pre-keys as JSON files written
//     atomically
//   - MemoryPreKeyStore: the same contract held in memory
//   - BoltSessionStore: per-peer session records as CBOR in a bbolt database
//
// All stores are safe for concurrent use. On-disk files live under the
// configured home directory.
package store
