package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"

	"paircrypt/internal/domain"
	"paircrypt/internal/util/memzero"
)

const identityFilename = "identity.json.enc"

// ErrNoIdentity is returned when no identity has been created yet.
var ErrNoIdentity = errors.New("store: no identity")

// IdentityFileStore persists the local identity, sealed under a passphrase.
type IdentityFileStore struct {
	dir    string
	params scryptParams
	mu     sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, params: defaultScrypt}
}

// SaveIdentity seals id and writes it atomically.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	ct, err := seal(passphrase, raw, s.params)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, identityFilename), ct)
}

// LoadIdentity reads and opens the identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, identityFilename))
	if err != nil {
		return domain.Identity{}, err
	}
	if b == nil {
		return domain.Identity{}, ErrNoIdentity
	}
	pt, err := open(passphrase, b)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(pt)
	var id domain.Identity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)
