package types

// WireMessage is one ratchet-encrypted message. The header fields are bound
// into the AEAD associated data.
type WireMessage struct {
	RatchetKey          X25519Public `json:"ratchet_key"`
	Index               uint32       `json:"n"`
	PreviousChainLength uint32       `json:"pn"`
	Ciphertext          []byte       `json:"ciphertext"`
	Nonce               []byte       `json:"nonce"`
	Tag                 []byte       `json:"tag"`
}

// Envelope is the relay's unit of store-and-forward. The relay treats
// everything but From, To and the bookkeeping fields as opaque.
type Envelope struct {
	ID        EnvelopeID     `json:"id,omitempty"`
	From      DeviceID       `json:"from"`
	To        DeviceID       `json:"to"`
	Message   WireMessage    `json:"message"`
	Handshake *PreKeyMessage `json:"handshake,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// DecryptedMessage is what MessageService.ReceiveMessages returns.
type DecryptedMessage struct {
	From      DeviceID `json:"from"`
	Plaintext []byte   `json:"plaintext"`
	Timestamp int64    `json:"timestamp"`
}
