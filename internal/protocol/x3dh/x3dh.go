package x3dh

import (
	"fmt"

	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
	"paircrypt/internal/util/memzero"
)

// VerifyBundle checks that bundle carries usable keys and a valid signature
// over its signed pre-key.
func VerifyBundle(bundle domain.PreKeyBundle) error {
	switch {
	case bundle.IdentityKey.IsZero():
		return fmt.Errorf("%w: missing identity key", domain.ErrHandshakeFailed)
	case bundle.SignedPreKey.IsZero():
		return fmt.Errorf("%w: missing signed pre-key", domain.ErrHandshakeFailed)
	case bundle.SignedPreKeyID == "":
		return fmt.Errorf("%w: missing signed pre-key id", domain.ErrHandshakeFailed)
	}
	for _, otk := range bundle.OneTimePreKeys {
		if otk.ID == "" || otk.Pub.IsZero() {
			return fmt.Errorf("%w: malformed one-time pre-key", domain.ErrHandshakeFailed)
		}
	}
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		return fmt.Errorf("%w: bad signed pre-key signature", domain.ErrHandshakeFailed)
	}
	return nil
}

// InitiatorRoot runs the initiator side against bundle, using its first
// one-time pre-key when present.
func InitiatorRoot(id domain.Identity, bundle domain.PreKeyBundle) ([crypto.KeySize]byte, domain.PreKeyMessage, error) {
	var secret [crypto.KeySize]byte
	if err := VerifyBundle(bundle); err != nil {
		return secret, domain.PreKeyMessage{}, err
	}
	ekPriv, ekPub, err := crypto.GenerateX25519()
	if err != nil {
		return secret, domain.PreKeyMessage{}, err
	}
	defer memzero.Zero(ekPriv[:])

	msg := domain.PreKeyMessage{
		InitiatorIdentityKey: id.XPub,
		EphemeralKey:         ekPub,
		SignedPreKeyID:       bundle.SignedPreKeyID,
	}
	var opk *domain.X25519Public
	if len(bundle.OneTimePreKeys) > 0 {
		msg.OneTimePreKeyID = bundle.OneTimePreKeys[0].ID
		opk = &bundle.OneTimePreKeys[0].Pub
	}

	dh1, err := dh(id.XPriv, bundle.SignedPreKey)
	if err != nil {
		return secret, msg, err
	}
	dh2, err := dh(ekPriv, bundle.IdentityKey)
	if err != nil {
		return secret, msg, err
	}
	dh3, err := dh(ekPriv, bundle.SignedPreKey)
	if err != nil {
		return secret, msg, err
	}
	var dh4 *[32]byte
	if opk != nil {
		d, err := dh(ekPriv, *opk)
		if err != nil {
			return secret, msg, err
		}
		dh4 = &d
	}
	secret = crypto.X3DHCombine(dh1, dh2, dh3, dh4)
	wipe(&dh1, &dh2, &dh3, dh4)
	return secret, msg, nil
}

// ResponderRoot recomputes the initiator's secret from the signed pre-key
// and, when msg names one, the one-time pre-key.
func ResponderRoot(id domain.Identity, spk domain.X25519Private, opk *domain.X25519Private, msg domain.PreKeyMessage) ([crypto.KeySize]byte, error) {
	var secret [crypto.KeySize]byte
	if msg.OneTimePreKeyID != "" && opk == nil {
		return secret, fmt.Errorf("%w: one-time pre-key %s unavailable", domain.ErrHandshakeFailed, msg.OneTimePreKeyID)
	}
	dh1, err := dh(spk, msg.InitiatorIdentityKey)
	if err != nil {
		return secret, err
	}
	dh2, err := dh(id.XPriv, msg.EphemeralKey)
	if err != nil {
		return secret, err
	}
	dh3, err := dh(spk, msg.EphemeralKey)
	if err != nil {
		return secret, err
	}
	var dh4 *[32]byte
	if msg.OneTimePreKeyID != "" {
		d, err := dh(*opk, msg.EphemeralKey)
		if err != nil {
			return secret, err
		}
		dh4 = &d
	}
	secret = crypto.X3DHCombine(dh1, dh2, dh3, dh4)
	wipe(&dh1, &dh2, &dh3, dh4)
	return secret, nil
}

func dh(priv domain.X25519Private, pub domain.X25519Public) ([32]byte, error) {
	out, err := crypto.DH(priv, pub)
	if err != nil {
		return out, fmt.Errorf("%w: %w", domain.ErrHandshakeFailed, err)
	}
	return out, nil
}

func wipe(keys ...*[32]byte) {
	for _, k := range keys {
		memzero.Zero32(k)
	}
}
