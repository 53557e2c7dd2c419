package message

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paircrypt/internal/domain"
	"paircrypt/internal/log"
	"paircrypt/internal/relay"
	"paircrypt/internal/relay/server"
	"paircrypt/internal/services/identity"
	"paircrypt/internal/services/prekey"
	"paircrypt/internal/services/session"
	"paircrypt/internal/store"
)

func newRelay(t *testing.T) *relay.HTTP {
	t.Helper()
	spool, err := server.OpenSpool(filepath.Join(t.TempDir(), "relay.db"), 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { spool.Close() })
	srv, err := server.New(spool, log.NewDiscard().GetLogger("relay"))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return relay.NewHTTP(ts.URL, 5*time.Second)
}

type device struct {
	svc     *Service
	prekeys domain.PreKeyStore
}

func newDevice(t *testing.T, name domain.DeviceID, rc domain.RelayClient, oneTime int) *device {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	ps := store.NewMemoryPreKeyStore()
	pks := prekey.New(ps)
	_, _, err = pks.GenerateAndStorePreKeys(id, oneTime)
	require.NoError(t, err)
	dir := session.NewDirectory(id, ps)
	return &device{
		svc:     New(name, dir, rc, WithReplenish(pks, oneTime)),
		prekeys: ps,
	}
}

func plaintexts(msgs []domain.DecryptedMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Plaintext)
	}
	return out
}

func TestConversationOverRelay(t *testing.T) {
	ctx := context.Background()
	rc := newRelay(t)
	alice := newDevice(t, "alice", rc, 2)
	bob := newDevice(t, "bob", rc, 2)

	_, err := bob.svc.Register(ctx)
	require.NoError(t, err)

	fp, err := alice.svc.StartSession(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, string(fp), 20)

	require.NoError(t, alice.svc.SendMessage(ctx, "bob", []byte("hi bob")))
	require.NoError(t, alice.svc.SendMessage(ctx, "bob", []byte("are you there")))

	msgs, err := bob.svc.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi bob", "are you there"}, plaintexts(msgs))
	assert.Equal(t, domain.DeviceID("alice"), msgs[0].From)

	// Bob's pool is back at two keys after the handshake consumed one.
	publics, err := bob.prekeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	assert.Len(t, publics, 2)

	require.NoError(t, bob.svc.SendMessage(ctx, "alice", []byte("hello alice")))
	msgs, err = alice.svc.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello alice"}, plaintexts(msgs))

	_, pending := alice.svc.dir.Handshake("bob")
	assert.False(t, pending)

	require.NoError(t, alice.svc.SendMessage(ctx, "bob", []byte("after the reply")))
	envs, err := rc.FetchEnvelopes(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Nil(t, envs[0].Handshake)

	msgs, err = bob.svc.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"after the reply"}, plaintexts(msgs))

	envs, err = rc.FetchEnvelopes(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestSendWithoutSession(t *testing.T) {
	rc := newRelay(t)
	alice := newDevice(t, "alice", rc, 1)
	err := alice.svc.SendMessage(context.Background(), "bob", []byte("x"))
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestStartSession_UnknownPeer(t *testing.T) {
	rc := newRelay(t)
	alice := newDevice(t, "alice", rc, 1)
	_, err := alice.svc.StartSession(context.Background(), "bob")
	require.ErrorIs(t, err, relay.ErrNotFound)
}

func TestReceive_DropsUndecryptable(t *testing.T) {
	ctx := context.Background()
	rc := newRelay(t)
	alice := newDevice(t, "alice", rc, 1)
	bob := newDevice(t, "bob", rc, 1)
	_, err := bob.svc.Register(ctx)
	require.NoError(t, err)
	_, err = alice.svc.StartSession(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.svc.SendMessage(ctx, "bob", []byte("first")))

	// A stranger without a session writes to bob directly.
	require.NoError(t, rc.SendEnvelope(ctx, domain.Envelope{
		From:    "mallory",
		To:      "bob",
		Message: domain.WireMessage{RatchetKey: domain.X25519Public{9}, Ciphertext: []byte("junk")},
	}))
	require.NoError(t, alice.svc.SendMessage(ctx, "bob", []byte("second")))

	msgs, err := bob.svc.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, plaintexts(msgs))

	envs, err := rc.FetchEnvelopes(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestReceive_Limit(t *testing.T) {
	ctx := context.Background()
	rc := newRelay(t)
	alice := newDevice(t, "alice", rc, 1)
	bob := newDevice(t, "bob", rc, 1)
	_, err := bob.svc.Register(ctx)
	require.NoError(t, err)
	_, err = alice.svc.StartSession(ctx, "bob")
	require.NoError(t, err)
	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, alice.svc.SendMessage(ctx, "bob", []byte(m)))
	}

	msgs, err := bob.svc.ReceiveMessages(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, plaintexts(msgs))
	msgs, err = bob.svc.ReceiveMessages(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"three"}, plaintexts(msgs))
}
