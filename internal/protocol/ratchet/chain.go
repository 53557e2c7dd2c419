package ratchet

import (
	"paircrypt/internal/crypto"
	"paircrypt/internal/util/memzero"
)

// chain is one symmetric KDF chain and the number of keys drawn from it.
type chain struct {
	key [crypto.KeySize]byte
	n   uint32
}

// step returns the message key for index c.n and replaces the chain key with
// its successor. Both are derived from the same input under different labels;
// the old chain key is wiped.
func (c *chain) step() [crypto.KeySize]byte {
	mk := crypto.KDF32(c.key[:], nil, crypto.LabelMessageKey)
	next := crypto.KDF32(c.key[:], nil, crypto.LabelChainKey)
	memzero.Zero32(&c.key)
	c.key = next
	c.n++
	return mk
}

func (c *chain) clone() *chain {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (c *chain) wipe() {
	if c != nil {
		memzero.Zero32(&c.key)
	}
}

// rootStep mixes a DH output into the root key and seeds a new chain.
func rootStep(root [crypto.KeySize]byte, dh [32]byte) (newRoot [crypto.KeySize]byte, seed *chain) {
	newRoot = crypto.KDF32(dh[:], root[:], crypto.LabelRoot)
	seed = &chain{key: crypto.KDF32(newRoot[:], nil, crypto.LabelChainSeed)}
	memzero.Zero32(&dh)
	return newRoot, seed
}
