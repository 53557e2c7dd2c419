package crypto

import "paircrypt/internal/util/memzero"

// X3DHCombine concatenates the handshake DH outputs in the fixed order
// IK·SPK, EK·IK, EK·SPK and, when a one-time pre-key was used, EK·OPK, then
// derives the initial shared secret with a single KDF call. Both sides must
// pass the values in this order.
func X3DHCombine(dh1, dh2, dh3 [32]byte, dh4 *[32]byte) [KeySize]byte {
	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)
	if dh4 != nil {
		transcript = append(transcript, dh4[:]...)
	}
	out := KDF32(transcript, make([]byte, KeySize), LabelX3DH)
	memzero.Zero(transcript)
	return out
}
