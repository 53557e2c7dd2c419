package ratchet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
	"paircrypt/internal/util/memzero"
)

// DefaultMaxSkip is the default bound on cached skipped keys per epoch.
const DefaultMaxSkip = 100

var (
	// ErrAwaitingPeer is returned by Encrypt on a receiver that has not yet
	// decrypted a message from its peer.
	ErrAwaitingPeer = errors.New("ratchet: peer ratchet key not yet known")

	errUninitialised = errors.New("ratchet: not initialised")
)

// Ratchet is the Double Ratchet state of one pairwise session.
type Ratchet struct {
	mu      sync.Mutex
	st      *state
	maxSkip int
}

// Option configures a Ratchet.
type Option func(*Ratchet)

// WithMaxSkip sets how many skipped message keys one epoch may cache.
func WithMaxSkip(n int) Option {
	return func(r *Ratchet) {
		if n >= 0 {
			r.maxSkip = n
		}
	}
}

func newRatchet(root [crypto.KeySize]byte, opts []Option) *Ratchet {
	r := &Ratchet{
		maxSkip: DefaultMaxSkip,
		st: &state{
			root:    root,
			phase:   awaitingPeer{},
			skipped: newSkippedKeys(),
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewSender creates the initiating side. The root is the X3DH shared secret;
// a fresh ratchet key pair is generated and a DH step with peerRatchetKey
// derives the first sending chain.
func NewSender(shared [crypto.KeySize]byte, peerRatchetKey domain.X25519Public, opts ...Option) (*Ratchet, error) {
	r := newRatchet(shared, opts)
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	r.st.priv, r.st.pub = priv, pub
	r.st.phase = &active{peer: peerRatchetKey}
	if _, err := r.st.sendChain(); err != nil {
		r.st.wipe()
		return nil, err
	}
	return r, nil
}

// NewReceiver creates the responding side around its own initial ratchet key
// pair. It has no chains until the first message arrives.
func NewReceiver(shared [crypto.KeySize]byte, priv domain.X25519Private, pub domain.X25519Public, opts ...Option) *Ratchet {
	r := newRatchet(shared, opts)
	r.st.priv, r.st.pub = priv, pub
	return r
}

// RatchetKey returns the current public ratchet key.
func (r *Ratchet) RatchetKey() domain.X25519Public {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == nil {
		return domain.X25519Public{}
	}
	return r.st.pub
}

// Skipped returns the number of cached skipped message keys.
func (r *Ratchet) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == nil {
		return 0
	}
	return r.st.skipped.len()
}

// Encrypt seals plaintext with the next sending key. ad is authenticated
// together with the message header.
func (r *Ratchet) Encrypt(plaintext, ad []byte) (domain.WireMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == nil {
		return domain.WireMessage{}, errUninitialised
	}

	next := r.st.clone()
	a, err := next.sendChain()
	if err != nil {
		next.wipe()
		return domain.WireMessage{}, err
	}
	msg := domain.WireMessage{
		RatchetKey:          next.pub,
		Index:               a.send.n,
		PreviousChainLength: a.prevSendLen,
	}
	mk := a.send.step()
	msg.Nonce, msg.Ciphertext, msg.Tag, err = crypto.Seal(mk[:], plaintext, associatedData(msg, ad))
	memzero.Zero32(&mk)
	if err != nil {
		next.wipe()
		return domain.WireMessage{}, err
	}
	r.commit(next)
	return msg, nil
}

// Decrypt authenticates and decrypts msg.
//
// It returns domain.ErrAuthenticationFailed for forged, corrupted or replayed
// messages and domain.ErrTooManySkippedMessages when reaching msg.Index
// would exceed the skip bound.
func (r *Ratchet) Decrypt(msg domain.WireMessage, ad []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == nil {
		return nil, errUninitialised
	}
	data := associatedData(msg, ad)

	if mk, ok := r.st.skipped.take(skippedKey{ratchetKey: msg.RatchetKey, index: msg.Index}); ok {
		pt, err := crypto.Open(mk[:], msg.Nonce, msg.Ciphertext, msg.Tag, data)
		memzero.Zero32(&mk)
		return pt, err
	}

	next := r.st.clone()
	var fallback *state
	a, ok := next.phase.(*active)
	if !ok || a.peer != msg.RatchetKey {
		if ok {
			if err := next.skipTo(a.peer, a.recv, msg.PreviousChainLength, r.maxSkip); err != nil {
				next.wipe()
				return nil, err
			}
			fallback = next.clone()
		}
		if err := next.receiveStep(msg.RatchetKey); err != nil {
			next.wipe()
			if fallback != nil {
				fallback.wipe()
			}
			if errors.Is(err, domain.ErrInvalidKey) {
				return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
			}
			return nil, err
		}
		a = next.phase.(*active)
	}

	if a.recv == nil || msg.Index < a.recv.n {
		next.wipe()
		if fallback != nil {
			fallback.wipe()
		}
		return nil, domain.ErrAuthenticationFailed
	}
	if err := next.skipTo(a.peer, a.recv, msg.Index, r.maxSkip); err != nil {
		next.wipe()
		if fallback != nil {
			fallback.wipe()
		}
		return nil, err
	}

	mk := a.recv.step()
	pt, err := crypto.Open(mk[:], msg.Nonce, msg.Ciphertext, msg.Tag, data)
	memzero.Zero32(&mk)
	if err != nil {
		switch {
		case fallback != nil:
			next.wipe()
			r.commit(fallback)
		case ok:
			r.commit(next)
		default:
			next.wipe()
		}
		return nil, err
	}
	if fallback != nil {
		fallback.wipe()
	}
	r.commit(next)
	return pt, nil
}

// commit replaces the current state with next and wipes the old one.
func (r *Ratchet) commit(next *state) {
	prev := r.st
	r.st = next
	if prev != nil {
		prev.wipe()
	}
}

// associatedData binds the header fields to the caller's ad.
func associatedData(msg domain.WireMessage, ad []byte) []byte {
	out := make([]byte, 0, len(msg.RatchetKey)+8+len(ad))
	out = append(out, msg.RatchetKey[:]...)
	out = binary.BigEndian.AppendUint32(out, msg.Index)
	out = binary.BigEndian.AppendUint32(out, msg.PreviousChainLength)
	return append(out, ad...)
}
