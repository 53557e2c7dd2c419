package types

// DeviceID identifies a device registered with a relay.
type DeviceID string

// String returns the string form of the device identifier.
func (d DeviceID) String() string { return string(d) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID string

// String returns the string form of the identifier.
func (id SignedPreKeyID) String() string { return string(id) }

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID string

// String returns the string form of the identifier.
func (id OneTimePreKeyID) String() string { return string(id) }

// EnvelopeID identifies an envelope queued at the relay.
type EnvelopeID string

// String returns the string form of the envelope identifier.
func (id EnvelopeID) String() string { return string(id) }
