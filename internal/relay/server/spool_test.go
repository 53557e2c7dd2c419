package server

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paircrypt/internal/domain"
)

func openTestSpool(t *testing.T, maxQueue int) *Spool {
	t.Helper()
	s, err := OpenSpool(filepath.Join(t.TempDir(), "spool.db"), time.Hour, maxQueue)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testBundle(device domain.DeviceID, otks int) domain.PreKeyBundle {
	b := domain.PreKeyBundle{
		DeviceID:       device,
		IdentityKey:    domain.X25519Public{1},
		SignedPreKeyID: "spk-1",
		SignedPreKey:   domain.X25519Public{2},
	}
	for i := 0; i < otks; i++ {
		b.OneTimePreKeys = append(b.OneTimePreKeys, domain.OneTimePreKeyPublic{
			ID:  domain.OneTimePreKeyID(string(rune('a' + i))),
			Pub: domain.X25519Public{byte(10 + i)},
		})
	}
	return b
}

func TestSpool_TakeBundleHandsOutEachOneTimeKeyOnce(t *testing.T) {
	s := openTestSpool(t, 0)
	require.NoError(t, s.PutBundle(testBundle("bob", 2)))

	b, ok, err := s.TakeBundle("bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, b.OneTimePreKeys, 1)
	assert.Equal(t, domain.OneTimePreKeyID("a"), b.OneTimePreKeys[0].ID)

	b, _, err = s.TakeBundle("bob")
	require.NoError(t, err)
	require.Len(t, b.OneTimePreKeys, 1)
	assert.Equal(t, domain.OneTimePreKeyID("b"), b.OneTimePreKeys[0].ID)

	b, ok, err = s.TakeBundle("bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, b.OneTimePreKeys)
	assert.Equal(t, domain.X25519Public{2}, b.SignedPreKey)

	_, ok, err = s.TakeBundle("carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpool_QueueFIFOAndAck(t *testing.T) {
	s := openTestSpool(t, 0)
	for i := 0; i < 3; i++ {
		env, err := s.Enqueue(domain.Envelope{From: "alice", To: "bob", Timestamp: int64(i + 1)})
		require.NoError(t, err)
		assert.NotEmpty(t, env.ID)
	}

	envs, expired, err := s.Fetch("bob", 2)
	require.NoError(t, err)
	assert.Zero(t, expired)
	require.Len(t, envs, 2)
	assert.Equal(t, int64(1), envs[0].Timestamp)
	assert.Equal(t, int64(2), envs[1].Timestamp)

	n, err := s.Ack("bob", "no-such-envelope")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Ack("bob", envs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	envs, _, err = s.Fetch("bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, int64(3), envs[0].Timestamp)

	n, err = s.Ack("bob", envs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	depth, err := s.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestSpool_AckAfterExpiryKeepsUnfetched(t *testing.T) {
	s := openTestSpool(t, 0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	for i := 1; i <= 2; i++ {
		_, err := s.Enqueue(domain.Envelope{From: "alice", To: "bob", Timestamp: int64(i)})
		require.NoError(t, err)
	}
	now = now.Add(30 * time.Minute)
	_, err := s.Enqueue(domain.Envelope{From: "alice", To: "bob", Timestamp: 3})
	require.NoError(t, err)

	now = now.Add(29 * time.Minute)
	envs, _, err := s.Fetch("bob", 2)
	require.NoError(t, err)
	require.Len(t, envs, 2)

	// The fetched envelopes expire before the recipient acknowledges them.
	now = now.Add(2 * time.Minute)
	n, err := s.Purge()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Ack("bob", envs[1].ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	envs, _, err = s.Fetch("bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, int64(3), envs[0].Timestamp)
}

func TestSpool_QueueFull(t *testing.T) {
	s := openTestSpool(t, 2)
	for i := 0; i < 2; i++ {
		_, err := s.Enqueue(domain.Envelope{From: "alice", To: "bob"})
		require.NoError(t, err)
	}
	_, err := s.Enqueue(domain.Envelope{From: "alice", To: "bob"})
	require.ErrorIs(t, err, ErrQueueFull)

	// Other queues are unaffected.
	_, err = s.Enqueue(domain.Envelope{From: "alice", To: "carol"})
	require.NoError(t, err)
}

func TestSpool_Retention(t *testing.T) {
	s := openTestSpool(t, 0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	_, err := s.Enqueue(domain.Envelope{From: "alice", To: "bob", Timestamp: 1})
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	_, err = s.Enqueue(domain.Envelope{From: "alice", To: "bob", Timestamp: 2})
	require.NoError(t, err)
	_, err = s.Enqueue(domain.Envelope{From: "alice", To: "carol", Timestamp: 3})
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	envs, expired, err := s.Fetch("bob", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	require.Len(t, envs, 1)
	assert.Equal(t, int64(2), envs[0].Timestamp)

	now = now.Add(time.Hour)
	n, err := s.Purge()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	depth, err := s.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestSpool_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.db")
	s, err := OpenSpool(path, 0, 0)
	require.NoError(t, err)
	_, err = s.Enqueue(domain.Envelope{From: "alice", To: "bob", Timestamp: 7})
	require.NoError(t, err)
	require.NoError(t, s.PutBundle(testBundle("bob", 1)))
	require.NoError(t, s.Close())

	s, err = OpenSpool(path, 0, 0)
	require.NoError(t, err)
	defer s.Close()
	envs, _, err := s.Fetch("bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, int64(7), envs[0].Timestamp)
	_, ok, err := s.TakeBundle("bob")
	require.NoError(t, err)
	assert.True(t, ok)
}
