// Package crypto exposes the minimal primitives used by paircrypt.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - HKDF-SHA256 key derivation with domain-separation labels (KDF)
//   - ChaCha20-Poly1305 with a detached tag (Seal, Open)
//   - The X3DH transcript combiner (X3DHCombine)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Nothing in this package holds state. All functions return fixed-size array
// types defined in internal/domain where a key is involved. Callers should
// treat returned secrets as sensitive and wipe them with memzero.Zero when
// practical.
package crypto
