package prekey

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
)

// ErrNoSignedPreKey is returned when no current signed pre-key exists.
var ErrNoSignedPreKey = errors.New("prekey: no signed pre-key available")

// Service manages pre-key pairs and builds the public bundle.
type Service struct {
	ps domain.PreKeyStore
}

// New returns a pre-key service over ps.
func New(ps domain.PreKeyStore) *Service {
	return &Service{ps: ps}
}

// GenerateAndStorePreKeys creates a signed pre-key, marks it current and
// adds count one-time pre-keys to the pool.
func (s *Service) GenerateAndStorePreKeys(id domain.Identity, count int) (domain.X25519Public, []domain.X25519Public, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	spk := domain.SignedPreKeyPair{
		ID:        domain.SignedPreKeyID("spk-" + uuid.NewString()),
		Priv:      priv,
		Pub:       pub,
		Signature: crypto.SignEd25519(id.EdPriv, pub[:]),
	}
	if err := s.ps.SaveSignedPreKey(spk); err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(spk.ID); err != nil {
		return domain.X25519Public{}, nil, err
	}

	publics, err := s.addOneTime(count)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	return spk.Pub, publics, nil
}

// ReplenishOneTimePreKeys tops the pool up to target and returns how many
// keys were added.
func (s *Service) ReplenishOneTimePreKeys(target int) (int, error) {
	have, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return 0, err
	}
	need := target - len(have)
	if need <= 0 {
		return 0, nil
	}
	if _, err := s.addOneTime(need); err != nil {
		return 0, err
	}
	return need, nil
}

func (s *Service) addOneTime(n int) ([]domain.X25519Public, error) {
	pairs := make([]domain.OneTimePreKeyPair, 0, n)
	publics := make([]domain.X25519Public, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID("opk-" + uuid.NewString()),
			Priv: priv,
			Pub:  pub,
		})
		publics = append(publics, pub)
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return nil, err
	}
	return publics, nil
}

// LoadPreKeyBundle builds the public bundle for device.
func (s *Service) LoadPreKeyBundle(id domain.Identity, device domain.DeviceID) (domain.PreKeyBundle, error) {
	return Bundle(id, s.ps, device)
}

// Bundle assembles the public bundle from the current signed pre-key and
// every remaining one-time pre-key in ps.
func Bundle(id domain.Identity, ps domain.PreKeyStore, device domain.DeviceID) (domain.PreKeyBundle, error) {
	spkID, ok, err := ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}
	spk, ok, err := ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: %s missing", ErrNoSignedPreKey, spkID)
	}
	oneTime, err := ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	return domain.PreKeyBundle{
		DeviceID:              device,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spk.ID,
		SignedPreKey:          spk.Pub,
		SignedPreKeySignature: spk.Signature,
		OneTimePreKeys:        oneTime,
	}, nil
}

var _ domain.PreKeyService = (*Service)(nil)
