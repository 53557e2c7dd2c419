package store

import (
	"sync"

	"paircrypt/internal/domain"
)

// MemoryPreKeyStore keeps pre-keys in memory only.
type MemoryPreKeyStore struct {
	mu  sync.Mutex
	set *preKeySet
}

// NewMemoryPreKeyStore returns an empty MemoryPreKeyStore.
func NewMemoryPreKeyStore() *MemoryPreKeyStore {
	return &MemoryPreKeyStore{set: newPreKeySet()}
}

func (s *MemoryPreKeyStore) SaveSignedPreKey(pair domain.SignedPreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Signed[pair.ID] = pair
	return nil
}

func (s *MemoryPreKeyStore) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.set.Signed[id]
	return p, ok, nil
}

func (s *MemoryPreKeyStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.addOneTime(pairs)
	return nil
}

func (s *MemoryPreKeyStore) LoadOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.set.OneTime[id]
	return p, ok, nil
}

func (s *MemoryPreKeyStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.set.consume(id)
	return p, ok, nil
}

func (s *MemoryPreKeyStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.publics(), nil
}

func (s *MemoryPreKeyStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Current = id
	return nil
}

func (s *MemoryPreKeyStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Current, s.set.Current != "", nil
}

func (s *MemoryPreKeyStore) RecordHandshake(spk domain.SignedPreKeyID, initiator, ephemeral domain.X25519Public) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.recordHandshake(spk, initiator, ephemeral), nil
}

var _ domain.PreKeyStore = (*MemoryPreKeyStore)(nil)
