// Package x3dh implements the X3DH key agreement that bootstraps a ratchet
// session between two devices.
//
// # Overview
//
// The initiator fetches the responder's pre-key bundle:
//   - Identity key (X25519) and signing key (Ed25519)
//   - Signed pre-key (X25519) and its Ed25519 signature
//   - Optional one-time pre-keys (X25519)
//
// # Flows
//
// Initiator:
//  1. Check the bundle shape and the signed pre-key signature.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb].
//  4. Combine them into the shared secret with one KDF call.
//  5. Return the secret and the PreKeyMessage naming the keys used.
//
// Responder:
//  1. Receive the PreKeyMessage (initiator IK, ephemeral EK, SPK ID[, OPK ID]).
//  2. Look up the SPK and, if named, the OPK.
//  3. Compute SPKb·IKa, IKb·EKa, SPKb·EKa[, OPKb·EKa].
//  4. Combine into the same secret.
//
// # Errors
//
// Every failure is reported as domain.ErrHandshakeFailed, wrapping the cause.
package x3dh
