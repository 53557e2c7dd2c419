package interfaces

import domaintypes "paircrypt/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages signed and one-time pre-keys.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(pair domaintypes.SignedPreKeyPair) error
	LoadSignedPreKey(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKeyPair, bool, error)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	LoadOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)

	// Current signed pre-key selection
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)

	// RecordHandshake remembers a handshake accepted against a signed
	// pre-key. It reports false if the same initiator identity and
	// ephemeral key were recorded before.
	RecordHandshake(
		spk domaintypes.SignedPreKeyID,
		initiator domaintypes.X25519Public,
		ephemeral domaintypes.X25519Public,
	) (bool, error)
}

// SessionStore persists per-peer session records.
type SessionStore interface {
	SaveSession(record domaintypes.SessionRecord) error
	LoadSession(peer domaintypes.DeviceID) (domaintypes.SessionRecord, bool, error)
	DeleteSession(peer domaintypes.DeviceID) error
	ListSessions() ([]domaintypes.DeviceID, error)
}
