package interfaces

import (
	"context"

	domaintypes "paircrypt/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates and assembles your pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(id domaintypes.Identity, count int) (
		domaintypes.X25519Public,
		[]domaintypes.X25519Public,
		error,
	)
	ReplenishOneTimePreKeys(target int) (int, error)
	LoadPreKeyBundle(
		id domaintypes.Identity,
		device domaintypes.DeviceID,
	) (domaintypes.PreKeyBundle, error)
}

// MessageService establishes sessions and encrypts, sends, fetches and
// decrypts messages.
type MessageService interface {
	StartSession(ctx context.Context, peer domaintypes.DeviceID) (domaintypes.Fingerprint, error)
	SendMessage(ctx context.Context, to domaintypes.DeviceID, plaintext []byte) error
	ReceiveMessages(ctx context.Context, limit int) ([]domaintypes.DecryptedMessage, error)
}
