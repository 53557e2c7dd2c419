package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
	"paircrypt/internal/log"
	"paircrypt/internal/protocol/ratchet"
	"paircrypt/internal/protocol/x3dh"
	"paircrypt/internal/services/identity"
	"paircrypt/internal/services/prekey"
	"paircrypt/internal/store"
	"paircrypt/internal/util/memzero"
)

// Directory owns one device's key material and its per-peer sessions.
type Directory struct {
	id       domain.Identity
	prekeys  domain.PreKeyStore
	sessions domain.SessionStore
	log      *logging.Logger
	maxSkip  int

	mu      sync.RWMutex
	entries map[domain.DeviceID]*entry
}

// entry is one peer session. Its mutex is held across the ratchet operation
// and the persistence that follows it.
type entry struct {
	mu sync.Mutex

	peer         domain.DeviceID
	peerIdentity domain.X25519Public
	initiator    bool
	// handshake is the PreKeyMessage this session was created from. For an
	// initiator it must be attached to outgoing messages until the peer
	// replies.
	handshake *domain.PreKeyMessage
	pending   bool
	ratchet   *ratchet.Ratchet
	created   int64
	closed    bool
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(d *Directory) { d.log = l }
}

// WithSessionStore persists sessions to s.
func WithSessionStore(s domain.SessionStore) Option {
	return func(d *Directory) { d.sessions = s }
}

// WithMaxSkip bounds the skipped message keys each session may cache per
// ratchet epoch.
func WithMaxSkip(n int) Option {
	return func(d *Directory) { d.maxSkip = n }
}

// NewDirectory returns a Directory for id whose pre-keys live in prekeys.
func NewDirectory(id domain.Identity, prekeys domain.PreKeyStore, opts ...Option) *Directory {
	d := &Directory{
		id:      id,
		prekeys: prekeys,
		maxSkip: ratchet.DefaultMaxSkip,
		entries: make(map[domain.DeviceID]*entry),
	}
	for _, o := range opts {
		o(d)
	}
	if d.log == nil {
		d.log = log.NewDiscard().GetLogger("session")
	}
	return d
}

// Generate creates a Directory with a fresh identity, a signed pre-key and
// oneTimeCount one-time pre-keys, all held in memory.
func Generate(oneTimeCount int, opts ...Option) (*Directory, error) {
	id, err := identity.Generate()
	if err != nil {
		return nil, err
	}
	ps := store.NewMemoryPreKeyStore()
	if _, _, err := prekey.New(ps).GenerateAndStorePreKeys(id, oneTimeCount); err != nil {
		return nil, err
	}
	return NewDirectory(id, ps, opts...), nil
}

// IdentityKey returns the device's public identity key.
func (d *Directory) IdentityKey() domain.X25519Public {
	return d.id.XPub
}

// PublishBundle returns the public bundle for deviceID: identity and signing
// keys, the current signed pre-key and every remaining one-time pre-key.
func (d *Directory) PublishBundle(deviceID domain.DeviceID) (domain.PreKeyBundle, error) {
	return prekey.Bundle(d.id, d.prekeys, deviceID)
}

// Establish runs X3DH as initiator against peer's bundle and installs a new
// session, replacing any existing one. The returned PreKeyMessage must
// accompany messages to peer until the first reply decrypts.
func (d *Directory) Establish(peer domain.DeviceID, bundle domain.PreKeyBundle) (domain.PreKeyMessage, error) {
	if bundle.DeviceID != "" && bundle.DeviceID != peer {
		return domain.PreKeyMessage{}, fmt.Errorf("%w: bundle is for %s, not %s", domain.ErrHandshakeFailed, bundle.DeviceID, peer)
	}
	secret, msg, err := x3dh.InitiatorRoot(d.id, bundle)
	if err != nil {
		return domain.PreKeyMessage{}, err
	}
	r, err := ratchet.NewSender(secret, bundle.SignedPreKey, ratchet.WithMaxSkip(d.maxSkip))
	memzero.Zero32(&secret)
	if err != nil {
		return domain.PreKeyMessage{}, err
	}

	hs := msg
	e := &entry{
		peer:         peer,
		peerIdentity: bundle.IdentityKey,
		initiator:    true,
		handshake:    &hs,
		pending:      true,
		ratchet:      r,
		created:      time.Now().Unix(),
	}
	if err := d.install(e); err != nil {
		return domain.PreKeyMessage{}, err
	}
	d.log.Infof("established session with %s (identity %s, one-time key %t)",
		peer, identity.Fingerprint(bundle.IdentityKey), msg.OneTimePreKeyID != "")
	return msg, nil
}

// Handshake returns the PreKeyMessage to attach to messages for peer, if the
// peer has not replied yet.
func (d *Directory) Handshake(peer domain.DeviceID) (*domain.PreKeyMessage, bool) {
	e, err := d.lookup(peer)
	if err != nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.initiator || !e.pending {
		return nil, false
	}
	hs := *e.handshake
	return &hs, true
}

// Accept handles the first message of a peer-initiated session: X3DH as
// responder, a new receiving ratchet, and decryption of first. The session
// is installed and the one-time pre-key consumed only if first decrypts.
//
// A repeat of the handshake that created the current session is routed to
// Decrypt instead. Any other handshake accepted before fails with
// domain.ErrHandshakeFailed, even after the session it created is gone.
func (d *Directory) Accept(peer domain.DeviceID, hs domain.PreKeyMessage, first domain.WireMessage) ([]byte, error) {
	if e, err := d.lookup(peer); err == nil {
		e.mu.Lock()
		same := !e.closed && !e.initiator && e.handshake != nil &&
			e.handshake.EphemeralKey == hs.EphemeralKey &&
			e.peerIdentity == hs.InitiatorIdentityKey
		e.mu.Unlock()
		if same {
			return d.Decrypt(peer, first)
		}
	} else if !errors.Is(err, domain.ErrNoSession) {
		return nil, err
	}

	spk, ok, err := d.prekeys.LoadSignedPreKey(hs.SignedPreKeyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown signed pre-key %s", domain.ErrHandshakeFailed, hs.SignedPreKeyID)
	}
	var opk *domain.X25519Private
	if hs.OneTimePreKeyID != "" {
		pair, ok, err := d.prekeys.LoadOneTimePreKey(hs.OneTimePreKeyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: unknown one-time pre-key %s", domain.ErrHandshakeFailed, hs.OneTimePreKeyID)
		}
		opk = &pair.Priv
	}

	secret, err := x3dh.ResponderRoot(d.id, spk.Priv, opk, hs)
	if err != nil {
		return nil, err
	}
	r := ratchet.NewReceiver(secret, spk.Priv, spk.Pub, ratchet.WithMaxSkip(d.maxSkip))
	memzero.Zero32(&secret)

	pt, err := r.Decrypt(first, associatedData(hs.InitiatorIdentityKey, d.id.XPub))
	if err != nil {
		d.log.Warningf("rejected handshake from %s: %v", peer, err)
		return nil, err
	}

	fresh, err := d.prekeys.RecordHandshake(hs.SignedPreKeyID, hs.InitiatorIdentityKey, hs.EphemeralKey)
	if err != nil {
		return nil, err
	}
	if !fresh {
		d.log.Warningf("rejected replayed handshake from %s", peer)
		return nil, fmt.Errorf("%w: handshake already accepted", domain.ErrHandshakeFailed)
	}
	if hs.OneTimePreKeyID != "" {
		_, ok, err := d.prekeys.ConsumeOneTimePreKey(hs.OneTimePreKeyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: one-time pre-key %s already used", domain.ErrHandshakeFailed, hs.OneTimePreKeyID)
		}
	}
	accepted := hs
	e := &entry{
		peer:         peer,
		peerIdentity: hs.InitiatorIdentityKey,
		handshake:    &accepted,
		ratchet:      r,
		created:      time.Now().Unix(),
	}
	if err := d.install(e); err != nil {
		return nil, err
	}
	d.log.Infof("accepted session from %s (identity %s)", peer, identity.Fingerprint(hs.InitiatorIdentityKey))
	return pt, nil
}

// Encrypt seals plaintext for peer.
func (d *Directory) Encrypt(peer domain.DeviceID, plaintext []byte) (domain.WireMessage, error) {
	var msg domain.WireMessage
	err := d.with(peer, func(e *entry) error {
		var err error
		msg, err = e.ratchet.Encrypt(plaintext, d.ad(e))
		return err
	})
	return msg, err
}

// Decrypt opens msg from peer. A successful decrypt on the initiating side
// means the peer has accepted the handshake, which is then no longer
// attached.
func (d *Directory) Decrypt(peer domain.DeviceID, msg domain.WireMessage) ([]byte, error) {
	var pt []byte
	err := d.with(peer, func(e *entry) error {
		var err error
		pt, err = e.ratchet.Decrypt(msg, d.ad(e))
		if err != nil {
			d.log.Debugf("decrypt from %s failed: %v", peer, err)
			return err
		}
		if e.initiator && e.pending {
			e.pending = false
			d.log.Debugf("%s replied; handshake complete", peer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// Teardown discards the session with peer, in memory and in the store.
// The directory lock is held until the store no longer has the session, so
// a concurrent lookup cannot load it back.
func (d *Directory) Teardown(peer domain.DeviceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[peer]; ok {
		// Closing under the entry lock stops an in-flight operation from
		// persisting the session again after it is deleted.
		e.mu.Lock()
		defer e.mu.Unlock()
		e.closed = true
		e.ratchet = nil
		delete(d.entries, peer)
	}
	if d.sessions != nil {
		if err := d.sessions.DeleteSession(peer); err != nil {
			return err
		}
	}
	d.log.Infof("tore down session with %s", peer)
	return nil
}

// Peers lists peers with a session, in memory or in the store, sorted.
func (d *Directory) Peers() ([]domain.DeviceID, error) {
	set := map[domain.DeviceID]struct{}{}
	d.mu.RLock()
	for p := range d.entries {
		set[p] = struct{}{}
	}
	d.mu.RUnlock()
	if d.sessions != nil {
		stored, err := d.sessions.ListSessions()
		if err != nil {
			return nil, err
		}
		for _, p := range stored {
			set[p] = struct{}{}
		}
	}
	out := make([]domain.DeviceID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Has reports whether a session with peer exists.
func (d *Directory) Has(peer domain.DeviceID) bool {
	_, err := d.lookup(peer)
	return err == nil
}

// PeerIdentity returns the identity key peer presented in the handshake.
func (d *Directory) PeerIdentity(peer domain.DeviceID) (domain.X25519Public, error) {
	e, err := d.lookup(peer)
	if err != nil {
		return domain.X25519Public{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.X25519Public{}, domain.ErrNoSession
	}
	return e.peerIdentity, nil
}

// with runs fn on peer's session under its lock and persists the result.
func (d *Directory) with(peer domain.DeviceID, fn func(*entry) error) error {
	e, err := d.lookup(peer)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrNoSession
	}
	// The ratchet may have advanced even when fn fails, for example a burnt
	// key after an authentication failure.
	ferr := fn(e)
	if err := d.persist(e); err != nil {
		d.log.Errorf("persist session with %s: %v", peer, err)
		if ferr == nil {
			return err
		}
	}
	return ferr
}

// install inserts e, replacing any existing session with the same peer.
func (d *Directory) install(e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d.mu.Lock()
	old := d.entries[e.peer]
	d.entries[e.peer] = e
	d.mu.Unlock()

	if old != nil && old != e {
		old.mu.Lock()
		old.closed = true
		old.ratchet = nil
		old.mu.Unlock()
	}
	return d.persist(e)
}

// lookup returns the session for peer, loading it from the store on first
// use. Loading happens under the directory lock so that it cannot race
// Teardown.
func (d *Directory) lookup(peer domain.DeviceID) (*entry, error) {
	d.mu.RLock()
	e, ok := d.entries[peer]
	d.mu.RUnlock()
	if ok {
		return e, nil
	}
	if d.sessions == nil {
		return nil, domain.ErrNoSession
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[peer]; ok {
		return e, nil
	}
	rec, ok, err := d.sessions.LoadSession(peer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNoSession
	}
	r, err := ratchet.Restore(rec.Ratchet, ratchet.WithMaxSkip(d.maxSkip))
	memzero.Zero(rec.Ratchet)
	if err != nil {
		return nil, fmt.Errorf("session: restore %s: %w", peer, err)
	}
	loaded := &entry{
		peer:         peer,
		peerIdentity: rec.PeerIdentityKey,
		initiator:    rec.Initiator,
		handshake:    rec.Handshake,
		pending:      rec.Initiator && rec.Pending,
		ratchet:      r,
		created:      rec.CreatedUTC,
	}
	d.entries[peer] = loaded
	d.log.Debugf("loaded session with %s", peer)
	return loaded, nil
}

// persist writes e to the session store. The caller holds e.mu.
func (d *Directory) persist(e *entry) error {
	if d.sessions == nil {
		return nil
	}
	blob, err := e.ratchet.MarshalBinary()
	if err != nil {
		return err
	}
	defer memzero.Zero(blob)
	return d.sessions.SaveSession(domain.SessionRecord{
		Peer:            e.peer,
		PeerIdentityKey: e.peerIdentity,
		Initiator:       e.initiator,
		Handshake:       e.handshake,
		Pending:         e.pending,
		Ratchet:         blob,
		CreatedUTC:      e.created,
	})
}

// ad returns the associated data of every message in e's session: the
// initiator's identity key followed by the responder's.
func (d *Directory) ad(e *entry) []byte {
	if e.initiator {
		return associatedData(d.id.XPub, e.peerIdentity)
	}
	return associatedData(e.peerIdentity, d.id.XPub)
}

func associatedData(initiator, responder domain.X25519Public) []byte {
	out := make([]byte, 0, 2*crypto.KeySize)
	out = append(out, initiator[:]...)
	return append(out, responder[:]...)
}
