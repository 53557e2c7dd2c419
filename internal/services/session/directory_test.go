package session_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paircrypt/internal/domain"
	"paircrypt/internal/services/identity"
	"paircrypt/internal/services/session"
	"paircrypt/internal/store"
)

func newDirectory(t *testing.T, otks int, opts ...session.Option) *session.Directory {
	t.Helper()
	d, err := session.Generate(otks, opts...)
	require.NoError(t, err)
	return d
}

// connect has b establish with a and a accept b's first message.
func connect(t *testing.T, a, b *session.Directory) {
	t.Helper()
	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)
	hs, err := b.Establish("A", bundle)
	require.NoError(t, err)
	first, err := b.Encrypt("A", []byte("hello"))
	require.NoError(t, err)
	pt, err := a.Accept("B", hs, first)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)
}

func TestConcreteScenario(t *testing.T) {
	a := newDirectory(t, 1)
	b := newDirectory(t, 0)

	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)
	require.Equal(t, a.IdentityKey(), bundle.IdentityKey)
	require.Len(t, bundle.OneTimePreKeys, 1)
	oa := bundle.OneTimePreKeys[0].ID

	hs, err := b.Establish("A", bundle)
	require.NoError(t, err)
	require.Equal(t, oa, hs.OneTimePreKeyID)
	require.Equal(t, bundle.SignedPreKeyID, hs.SignedPreKeyID)
	require.Equal(t, b.IdentityKey(), hs.InitiatorIdentityKey)

	pending, ok := b.Handshake("A")
	require.True(t, ok)
	require.Equal(t, hs, *pending)

	m1, err := b.Encrypt("A", []byte{1, 2, 3})
	require.NoError(t, err)

	pt, err := a.Accept("B", hs, m1)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, pt)

	// The one-time pre-key is gone from A's next bundle.
	after, err := a.PublishBundle("A")
	require.NoError(t, err)
	require.Empty(t, after.OneTimePreKeys)

	peerIK, err := a.PeerIdentity("B")
	require.NoError(t, err)
	require.Equal(t, b.IdentityKey(), peerIK)

	// A replies under a fresh ratchet key.
	reply, err := a.Encrypt("B", []byte("ack"))
	require.NoError(t, err)
	require.NotEqual(t, m1.RatchetKey, reply.RatchetKey)
	require.NotEqual(t, bundle.SignedPreKey, reply.RatchetKey)
	require.Zero(t, reply.Index)

	pt, err = b.Decrypt("A", reply)
	require.NoError(t, err)
	require.Equal(t, []byte("ack"), pt)

	_, ok = b.Handshake("A")
	require.False(t, ok, "handshake no longer attached once A replied")

	// m1 was sealed under B's first sending chain; it does not open again.
	_, err = a.Decrypt("B", m1)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestNoSession(t *testing.T) {
	a := newDirectory(t, 0)

	_, err := a.Encrypt("nobody", []byte("x"))
	require.ErrorIs(t, err, domain.ErrNoSession)
	_, err = a.Decrypt("nobody", domain.WireMessage{})
	require.ErrorIs(t, err, domain.ErrNoSession)
	_, err = a.PeerIdentity("nobody")
	require.ErrorIs(t, err, domain.ErrNoSession)
	require.False(t, a.Has("nobody"))
	_, ok := a.Handshake("nobody")
	require.False(t, ok)
}

func TestEstablish_HandshakeFailed(t *testing.T) {
	a := newDirectory(t, 1)
	b := newDirectory(t, 0)

	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)

	bad := bundle
	bad.SignedPreKeySignature = append([]byte(nil), bundle.SignedPreKeySignature...)
	bad.SignedPreKeySignature[5] ^= 0xff
	_, err = b.Establish("A", bad)
	require.ErrorIs(t, err, domain.ErrHandshakeFailed)

	_, err = b.Establish("C", bundle)
	require.ErrorIs(t, err, domain.ErrHandshakeFailed)
	require.False(t, b.Has("A"))
}

func TestAccept_UnknownPreKeys(t *testing.T) {
	a := newDirectory(t, 1)
	b := newDirectory(t, 0)

	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)
	hs, err := b.Establish("A", bundle)
	require.NoError(t, err)
	first, err := b.Encrypt("A", []byte("x"))
	require.NoError(t, err)

	unknownSPK := hs
	unknownSPK.SignedPreKeyID = "spk-missing"
	_, err = a.Accept("B", unknownSPK, first)
	require.ErrorIs(t, err, domain.ErrHandshakeFailed)

	unknownOTK := hs
	unknownOTK.OneTimePreKeyID = "opk-missing"
	_, err = a.Accept("B", unknownOTK, first)
	require.ErrorIs(t, err, domain.ErrHandshakeFailed)
	require.False(t, a.Has("B"))

	// Nothing was consumed by the failures.
	pt, err := a.Accept("B", hs, first)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), pt)
}

func TestAccept_TamperedFirstMessageConsumesNothing(t *testing.T) {
	a := newDirectory(t, 1)
	b := newDirectory(t, 0)

	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)
	hs, err := b.Establish("A", bundle)
	require.NoError(t, err)
	first, err := b.Encrypt("A", []byte("x"))
	require.NoError(t, err)

	forged := first
	forged.Tag = append([]byte(nil), first.Tag...)
	forged.Tag[0] ^= 1
	_, err = a.Accept("B", hs, forged)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	require.False(t, a.Has("B"))

	left, err := a.PublishBundle("A")
	require.NoError(t, err)
	require.Len(t, left.OneTimePreKeys, 1)

	_, err = a.Accept("B", hs, first)
	require.NoError(t, err)
}

func TestAccept_RepeatedHandshakeRoutesToSession(t *testing.T) {
	a := newDirectory(t, 1)
	b := newDirectory(t, 0)

	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)
	hs, err := b.Establish("A", bundle)
	require.NoError(t, err)

	m1, err := b.Encrypt("A", []byte("one"))
	require.NoError(t, err)
	m2, err := b.Encrypt("A", []byte("two"))
	require.NoError(t, err)

	// Both arrive with the handshake attached, out of order.
	pt, err := a.Accept("B", hs, m2)
	require.NoError(t, err)
	require.Equal(t, []byte("two"), pt)
	pt, err = a.Accept("B", hs, m1)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), pt)
}

func TestAccept_ReplayedHandshakeRejected(t *testing.T) {
	a := newDirectory(t, 0)
	b := newDirectory(t, 0)
	bundle, err := a.PublishBundle("A")
	require.NoError(t, err)

	oldHS, err := b.Establish("A", bundle)
	require.NoError(t, err)
	oldFirst, err := b.Encrypt("A", []byte("old"))
	require.NoError(t, err)
	_, err = a.Accept("B", oldHS, oldFirst)
	require.NoError(t, err)

	// B starts over against the same signed pre-key.
	hs, err := b.Establish("A", bundle)
	require.NoError(t, err)
	first, err := b.Encrypt("A", []byte("new"))
	require.NoError(t, err)
	pt, err := a.Accept("B", hs, first)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), pt)
	reply, err := a.Encrypt("B", []byte("reply"))
	require.NoError(t, err)
	_, err = b.Decrypt("A", reply)
	require.NoError(t, err)

	pt, err = a.Accept("B", oldHS, oldFirst)
	require.ErrorIs(t, err, domain.ErrHandshakeFailed)
	require.Nil(t, pt)

	// The live session is untouched.
	m, err := a.Encrypt("B", []byte("still live"))
	require.NoError(t, err)
	pt, err = b.Decrypt("A", m)
	require.NoError(t, err)
	require.Equal(t, []byte("still live"), pt)

	// A handshake stays spent after its session is torn down.
	require.NoError(t, a.Teardown("B"))
	_, err = a.Accept("B", hs, first)
	require.ErrorIs(t, err, domain.ErrHandshakeFailed)
	require.False(t, a.Has("B"))
}

func TestConversation_ManyRounds(t *testing.T) {
	a := newDirectory(t, 3)
	b := newDirectory(t, 0)
	connect(t, a, b)

	for round := 0; round < 5; round++ {
		var out []domain.WireMessage
		for i := 0; i < 3; i++ {
			m, err := a.Encrypt("B", []byte(fmt.Sprintf("a%d.%d", round, i)))
			require.NoError(t, err)
			out = append(out, m)
		}
		for _, i := range []int{2, 0, 1} {
			pt, err := b.Decrypt("A", out[i])
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("a%d.%d", round, i), string(pt))
		}
		m, err := b.Encrypt("A", []byte("b"))
		require.NoError(t, err)
		_, err = a.Decrypt("B", m)
		require.NoError(t, err)
	}
}

func TestTeardown(t *testing.T) {
	a := newDirectory(t, 1)
	b := newDirectory(t, 0)
	connect(t, a, b)

	peers, err := a.Peers()
	require.NoError(t, err)
	require.Equal(t, []domain.DeviceID{"B"}, peers)

	require.NoError(t, a.Teardown("B"))
	require.False(t, a.Has("B"))
	_, err = a.Encrypt("B", []byte("x"))
	require.ErrorIs(t, err, domain.ErrNoSession)

	peers, err = a.Peers()
	require.NoError(t, err)
	require.Empty(t, peers)

	require.NoError(t, a.Teardown("B"))
}

// blockingSessionStore parks DeleteSession until release is closed.
type blockingSessionStore struct {
	domain.SessionStore
	deleting chan struct{}
	release  chan struct{}
}

func (s *blockingSessionStore) DeleteSession(peer domain.DeviceID) error {
	close(s.deleting)
	<-s.release
	return s.SessionStore.DeleteSession(peer)
}

func TestTeardown_ConcurrentLookupDoesNotReload(t *testing.T) {
	ss, err := store.OpenBoltSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer ss.Close()
	bs := &blockingSessionStore{SessionStore: ss, deleting: make(chan struct{}), release: make(chan struct{})}

	a := newDirectory(t, 1, session.WithSessionStore(bs))
	b := newDirectory(t, 0)
	connect(t, a, b)

	done := make(chan error, 1)
	go func() { done <- a.Teardown("B") }()
	<-bs.deleting

	has := make(chan bool, 1)
	go func() { has <- a.Has("B") }()
	select {
	case <-has:
		t.Fatal("lookup finished while the session was being deleted")
	case <-time.After(50 * time.Millisecond):
	}

	close(bs.release)
	require.NoError(t, <-done)
	require.False(t, <-has)
	peers, err := a.Peers()
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestPersistence_ReloadsLazily(t *testing.T) {
	ss, err := store.OpenBoltSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer ss.Close()

	id, err := identity.Generate()
	require.NoError(t, err)
	ps := store.NewMemoryPreKeyStore()

	a := newDirectory(t, 2)
	b := session.NewDirectory(id, ps, session.WithSessionStore(ss))
	connect(t, a, b)

	m, err := b.Encrypt("A", []byte("before restart"))
	require.NoError(t, err)
	_, err = a.Decrypt("B", m)
	require.NoError(t, err)

	restarted := session.NewDirectory(id, ps, session.WithSessionStore(ss))
	peers, err := restarted.Peers()
	require.NoError(t, err)
	require.Equal(t, []domain.DeviceID{"A"}, peers)

	// A has not replied yet, so the handshake is still attached.
	hs, ok := restarted.Handshake("A")
	require.True(t, ok)
	require.Equal(t, id.XPub, hs.InitiatorIdentityKey)

	m, err = restarted.Encrypt("A", []byte("after restart"))
	require.NoError(t, err)
	pt, err := a.Decrypt("B", m)
	require.NoError(t, err)
	require.Equal(t, []byte("after restart"), pt)

	reply, err := a.Encrypt("B", []byte("reply"))
	require.NoError(t, err)
	pt, err = restarted.Decrypt("A", reply)
	require.NoError(t, err)
	require.Equal(t, []byte("reply"), pt)

	again := session.NewDirectory(id, ps, session.WithSessionStore(ss))
	_, ok = again.Handshake("A")
	require.False(t, ok)

	require.NoError(t, again.Teardown("A"))
	_, found, err := ss.LoadSession("A")
	require.NoError(t, err)
	require.False(t, found)
}

func TestConcurrentPeers(t *testing.T) {
	hub := newDirectory(t, 8)
	const n = 6
	spokes := make([]*session.Directory, n)
	for i := range spokes {
		spokes[i] = newDirectory(t, 0)
		bundle, err := hub.PublishBundle("hub")
		require.NoError(t, err)
		peer := domain.DeviceID(fmt.Sprintf("spoke-%d", i))
		hs, err := spokes[i].Establish("hub", bundle)
		require.NoError(t, err)
		first, err := spokes[i].Encrypt("hub", []byte("hi"))
		require.NoError(t, err)
		_, err = hub.Accept(peer, hs, first)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*20)
	for i := range spokes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			peer := domain.DeviceID(fmt.Sprintf("spoke-%d", i))
			for j := 0; j < 10; j++ {
				m, err := hub.Encrypt(peer, []byte("ping"))
				if err != nil {
					errs <- err
					return
				}
				if _, err := spokes[i].Decrypt("hub", m); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
