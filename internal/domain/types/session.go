package types

// SessionRecord is the persisted form of one peer session: who the peer is,
// which side of the handshake we were on, the handshake the session came
// from (Pending while an initiator still has to attach it) and the opaque
// ratchet snapshot.
type SessionRecord struct {
	Peer            DeviceID       `json:"peer"`
	PeerIdentityKey X25519Public   `json:"peer_identity_key"`
	Initiator       bool           `json:"initiator"`
	Handshake       *PreKeyMessage `json:"handshake,omitempty"`
	Pending         bool           `json:"pending,omitempty"`
	Ratchet         []byte         `json:"ratchet"`
	CreatedUTC      int64          `json:"created_utc"`
}
