package domain

import (
	interfaces "paircrypt/internal/domain/interfaces"
	types "paircrypt/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	DeviceID            = types.DeviceID
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	EnvelopeID          = types.EnvelopeID
	Identity            = types.Identity
	SignedPreKeyPair    = types.SignedPreKeyPair
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	PreKeyMessage       = types.PreKeyMessage
	WireMessage         = types.WireMessage
	Envelope            = types.Envelope
	DecryptedMessage    = types.DecryptedMessage
	SessionRecord       = types.SessionRecord
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
)

// X25519PublicFromBytes copies b into an X25519Public.
var X25519PublicFromBytes = types.X25519PublicFromBytes

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService = interfaces.IdentityService
	PreKeyService   = interfaces.PreKeyService
	MessageService  = interfaces.MessageService
	RelayClient     = interfaces.RelayClient
	IdentityStore   = interfaces.IdentityStore
	PreKeyStore     = interfaces.PreKeyStore
	SessionStore    = interfaces.SessionStore
)
