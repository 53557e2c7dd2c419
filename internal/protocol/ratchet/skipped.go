package ratchet

import (
	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
	"paircrypt/internal/util/memzero"
)

// maxSkippedEpochs bounds how many distinct peer ratchet keys may have
// cached message keys at once.
const maxSkippedEpochs = 5

type skippedKey struct {
	ratchetKey domain.X25519Public
	index      uint32
}

// skippedKeys caches message keys of messages that have not arrived yet.
// epochs lists the ratchet keys that own cached entries, oldest first. Keys
// are held by pointer so that every drop path can wipe them in place.
type skippedKeys struct {
	keys   map[skippedKey]*[crypto.KeySize]byte
	counts map[domain.X25519Public]int
	epochs []domain.X25519Public
}

func newSkippedKeys() *skippedKeys {
	return &skippedKeys{
		keys:   make(map[skippedKey]*[crypto.KeySize]byte),
		counts: make(map[domain.X25519Public]int),
	}
}

func (s *skippedKeys) count(epoch domain.X25519Public) int {
	return s.counts[epoch]
}

func (s *skippedKeys) len() int {
	return len(s.keys)
}

func (s *skippedKeys) put(k skippedKey, mk [crypto.KeySize]byte) {
	if _, ok := s.counts[k.ratchetKey]; !ok {
		s.epochs = append(s.epochs, k.ratchetKey)
		for len(s.epochs) > maxSkippedEpochs {
			s.evict(s.epochs[0])
		}
	}
	if old, ok := s.keys[k]; ok {
		memzero.Zero32(old)
	} else {
		s.counts[k.ratchetKey]++
	}
	p := new([crypto.KeySize]byte)
	*p = mk
	s.keys[k] = p
}

// take removes and returns the cached key for k.
func (s *skippedKeys) take(k skippedKey) ([crypto.KeySize]byte, bool) {
	p, ok := s.keys[k]
	if !ok {
		return [crypto.KeySize]byte{}, false
	}
	mk := *p
	memzero.Zero32(p)
	delete(s.keys, k)
	s.counts[k.ratchetKey]--
	if s.counts[k.ratchetKey] == 0 {
		s.dropEpoch(k.ratchetKey)
	}
	return mk, true
}

// evict drops every key cached for epoch.
func (s *skippedKeys) evict(epoch domain.X25519Public) {
	for k, p := range s.keys {
		if k.ratchetKey == epoch {
			memzero.Zero32(p)
			delete(s.keys, k)
		}
	}
	s.dropEpoch(epoch)
}

func (s *skippedKeys) dropEpoch(epoch domain.X25519Public) {
	delete(s.counts, epoch)
	for i, e := range s.epochs {
		if e == epoch {
			s.epochs = append(s.epochs[:i:i], s.epochs[i+1:]...)
			return
		}
	}
}

func (s *skippedKeys) clone() *skippedKeys {
	cp := &skippedKeys{
		keys:   make(map[skippedKey]*[crypto.KeySize]byte, len(s.keys)),
		counts: make(map[domain.X25519Public]int, len(s.counts)),
		epochs: append([]domain.X25519Public(nil), s.epochs...),
	}
	for k, p := range s.keys {
		mk := *p
		cp.keys[k] = &mk
	}
	for k, v := range s.counts {
		cp.counts[k] = v
	}
	return cp
}

func (s *skippedKeys) wipe() {
	for _, p := range s.keys {
		memzero.Zero32(p)
	}
}
