package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of every root, chain and message key.
const KeySize = 32

// Derivation labels. Each purpose has its own label so that outputs for
// different purposes never coincide even for identical inputs.
const (
	LabelX3DH       = "paircrypt/x3dh"
	LabelRoot       = "paircrypt/ratchet/root"
	LabelChainSeed  = "paircrypt/ratchet/chain-seed"
	LabelMessageKey = "paircrypt/ratchet/message-key"
	LabelChainKey   = "paircrypt/ratchet/chain-key"
)

// KDF runs one HKDF-SHA256 extract-then-expand step over ikm and returns
// size bytes. A nil salt is treated by HKDF as a string of zero bytes.
func KDF(ikm, salt []byte, info string, size int) []byte {
	r := hkdf.New(sha256.New, ikm, salt, []byte(info))
	out := make([]byte, size)
	// Only fails for size > 255*32, which no caller requests.
	if _, err := io.ReadFull(r, out); err != nil {
		panic("crypto: hkdf: " + err.Error())
	}
	return out
}

// KDF32 is KDF with a KeySize output returned as an array.
func KDF32(ikm, salt []byte, info string) (out [KeySize]byte) {
	copy(out[:], KDF(ikm, salt, info, KeySize))
	return out
}
