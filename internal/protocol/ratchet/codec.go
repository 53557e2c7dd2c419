package ratchet

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
	"paircrypt/internal/util/memzero"
)

var errBadSnapshot = errors.New("ratchet: malformed snapshot")

// snapshot is the serialised form of a Ratchet.
type snapshot struct {
	RootKey        []byte
	RatchetPrivate []byte
	RatchetPublic  []byte
	Active         bool
	PeerPublic     []byte `cbor:",omitempty"`
	SendChain      *chainSnapshot
	RecvChain      *chainSnapshot
	PrevSendCount  uint32
	Skipped        []skippedSnapshot
	Epochs         [][]byte
	MaxSkip        int
}

type chainSnapshot struct {
	Key   []byte
	Count uint32
}

type skippedSnapshot struct {
	RatchetKey []byte
	Index      uint32
	Key        []byte
}

// MarshalBinary implements encoding.BinaryMarshaler. The output contains
// secret key material.
func (r *Ratchet) MarshalBinary() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == nil {
		return nil, errUninitialised
	}
	s := r.st
	snap := snapshot{
		RootKey:        append([]byte(nil), s.root[:]...),
		RatchetPrivate: append([]byte(nil), s.priv[:]...),
		RatchetPublic:  append([]byte(nil), s.pub[:]...),
		MaxSkip:        r.maxSkip,
	}
	if a, ok := s.phase.(*active); ok {
		snap.Active = true
		snap.PeerPublic = append([]byte(nil), a.peer[:]...)
		snap.SendChain = saveChain(a.send)
		snap.RecvChain = saveChain(a.recv)
		snap.PrevSendCount = a.prevSendLen
	}
	for _, e := range s.skipped.epochs {
		snap.Epochs = append(snap.Epochs, append([]byte(nil), e[:]...))
	}
	for k, mk := range s.skipped.keys {
		snap.Skipped = append(snap.Skipped, skippedSnapshot{
			RatchetKey: append([]byte(nil), k.ratchetKey[:]...),
			Index:      k.index,
			Key:        append([]byte(nil), mk[:]...),
		})
	}
	defer snap.wipe()
	return cbor.Marshal(&snap)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler, replacing the state
// of r with the one in data.
func (r *Ratchet) UnmarshalBinary(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("ratchet: decode snapshot: %w", err)
	}
	defer snap.wipe()

	st := &state{phase: awaitingPeer{}, skipped: newSkippedKeys()}
	if err := copyKey(st.root[:], snap.RootKey); err != nil {
		return err
	}
	if err := copyKey(st.priv[:], snap.RatchetPrivate); err != nil {
		return err
	}
	if err := copyKey(st.pub[:], snap.RatchetPublic); err != nil {
		return err
	}
	if snap.Active {
		a := &active{prevSendLen: snap.PrevSendCount}
		if err := copyKey(a.peer[:], snap.PeerPublic); err != nil {
			return err
		}
		var err error
		if a.send, err = loadChain(snap.SendChain); err != nil {
			return err
		}
		if a.recv, err = loadChain(snap.RecvChain); err != nil {
			return err
		}
		st.phase = a
	}
	for _, e := range snap.Epochs {
		pub, err := domain.X25519PublicFromBytes(e)
		if err != nil {
			return errBadSnapshot
		}
		st.skipped.epochs = append(st.skipped.epochs, pub)
		st.skipped.counts[pub] = 0
	}
	for _, sk := range snap.Skipped {
		pub, err := domain.X25519PublicFromBytes(sk.RatchetKey)
		if err != nil {
			return errBadSnapshot
		}
		if _, ok := st.skipped.counts[pub]; !ok {
			return errBadSnapshot
		}
		var mk [crypto.KeySize]byte
		if err := copyKey(mk[:], sk.Key); err != nil {
			return err
		}
		st.skipped.keys[skippedKey{ratchetKey: pub, index: sk.Index}] = &mk
		st.skipped.counts[pub]++
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxSkip = snap.MaxSkip
	r.commit(st)
	return nil
}

// Restore rebuilds a Ratchet from MarshalBinary output. Options apply after
// the snapshot is loaded.
func Restore(data []byte, opts ...Option) (*Ratchet, error) {
	r := &Ratchet{}
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (s *snapshot) wipe() {
	memzero.Zero(s.RootKey)
	memzero.Zero(s.RatchetPrivate)
	if s.SendChain != nil {
		memzero.Zero(s.SendChain.Key)
	}
	if s.RecvChain != nil {
		memzero.Zero(s.RecvChain.Key)
	}
	for _, sk := range s.Skipped {
		memzero.Zero(sk.Key)
	}
}

func saveChain(c *chain) *chainSnapshot {
	if c == nil {
		return nil
	}
	return &chainSnapshot{Key: append([]byte(nil), c.key[:]...), Count: c.n}
}

func loadChain(cs *chainSnapshot) (*chain, error) {
	if cs == nil {
		return nil, nil
	}
	c := &chain{n: cs.Count}
	if err := copyKey(c.key[:], cs.Key); err != nil {
		return nil, err
	}
	return c, nil
}

func copyKey(dst, src []byte) error {
	if len(src) != len(dst) {
		return errBadSnapshot
	}
	copy(dst, src)
	return nil
}
