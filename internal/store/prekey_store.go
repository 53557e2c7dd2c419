package store

import (
	"path/filepath"
	"sync"

	"paircrypt/internal/domain"
)

const preKeysFilename = "prekeys.json"

// PreKeyFileStore persists signed and one-time pre-keys to a JSON file.
type PreKeyFileStore struct {
	path string
	mu   sync.Mutex
}

// NewPreKeyFileStore returns a PreKeyFileStore rooted at dir.
func NewPreKeyFileStore(dir string) *PreKeyFileStore {
	return &PreKeyFileStore{path: filepath.Join(dir, preKeysFilename)}
}

func (s *PreKeyFileStore) load() (*preKeySet, error) {
	set := newPreKeySet()
	if err := readJSON(s.path, set); err != nil {
		return nil, err
	}
	set.fixup()
	return set, nil
}

// update loads the set, applies fn and writes the result back.
func (s *PreKeyFileStore) update(fn func(*preKeySet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(set); err != nil {
		return err
	}
	return writeJSON(s.path, set)
}

func (s *PreKeyFileStore) view(fn func(*preKeySet)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.load()
	if err != nil {
		return err
	}
	fn(set)
	return nil
}

// SaveSignedPreKey stores a signed pre-key under its ID.
func (s *PreKeyFileStore) SaveSignedPreKey(pair domain.SignedPreKeyPair) error {
	return s.update(func(set *preKeySet) error {
		set.Signed[pair.ID] = pair
		return nil
	})
}

// LoadSignedPreKey retrieves a signed pre-key by ID.
func (s *PreKeyFileStore) LoadSignedPreKey(id domain.SignedPreKeyID) (p domain.SignedPreKeyPair, ok bool, err error) {
	err = s.view(func(set *preKeySet) { p, ok = set.Signed[id] })
	return p, ok, err
}

// SaveOneTimePreKeys merges pairs into the pool.
func (s *PreKeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	return s.update(func(set *preKeySet) error {
		set.addOneTime(pairs)
		return nil
	})
}

// LoadOneTimePreKey returns a one-time pre-key without removing it.
func (s *PreKeyFileStore) LoadOneTimePreKey(id domain.OneTimePreKeyID) (p domain.OneTimePreKeyPair, ok bool, err error) {
	err = s.view(func(set *preKeySet) { p, ok = set.OneTime[id] })
	return p, ok, err
}

// ConsumeOneTimePreKey removes and returns a one-time pre-key.
func (s *PreKeyFileStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (p domain.OneTimePreKeyPair, ok bool, err error) {
	err = s.update(func(set *preKeySet) error {
		p, ok = set.consume(id)
		return nil
	})
	return p, ok, err
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling.
func (s *PreKeyFileStore) ListOneTimePreKeyPublics() (out []domain.OneTimePreKeyPublic, err error) {
	err = s.view(func(set *preKeySet) { out = set.publics() })
	return out, err
}

// SetCurrentSignedPreKeyID records which signed pre-key is published.
func (s *PreKeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	return s.update(func(set *preKeySet) error {
		set.Current = id
		return nil
	})
}

// CurrentSignedPreKeyID returns the published signed pre-key ID.
func (s *PreKeyFileStore) CurrentSignedPreKeyID() (id domain.SignedPreKeyID, ok bool, err error) {
	err = s.view(func(set *preKeySet) { id, ok = set.Current, set.Current != "" })
	return id, ok, err
}

// RecordHandshake remembers an accepted handshake and reports whether it
// was new.
func (s *PreKeyFileStore) RecordHandshake(spk domain.SignedPreKeyID, initiator, ephemeral domain.X25519Public) (fresh bool, err error) {
	err = s.update(func(set *preKeySet) error {
		fresh = set.recordHandshake(spk, initiator, ephemeral)
		return nil
	})
	return fresh, err
}

var _ domain.PreKeyStore = (*PreKeyFileStore)(nil)
