package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paircrypt/internal/store"
)

const testPassphrase = "Correct-Horse-9-Battery"

func newTestApp(t *testing.T, relayURL string) *App {
	t.Helper()
	home := t.TempDir()
	cfg, err := LoadConfig(home, "")
	require.NoError(t, err)
	cfg.RelayURL = relayURL
	cfg.Logging.Disable = true
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestLoadConfig_FromHome(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFileName), []byte(`
RelayURL = "http://127.0.0.1:8080"
DeviceID = "alice"
`), 0o600))
	cfg, err := LoadConfig(home, "")
	require.NoError(t, err)
	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "alice", cfg.DeviceID)
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadConfig(home, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sessions.db"), cfg.SessionsFile())
	assert.Empty(t, cfg.RelayURL)
}

func TestUnlock(t *testing.T) {
	a := newTestApp(t, "")
	_, err := a.Relay()
	require.ErrorIs(t, err, ErrNoRelay)

	_, err = a.Unlock(testPassphrase)
	require.ErrorIs(t, err, store.ErrNoIdentity)

	id, _, err := a.Identity.GenerateIdentity(testPassphrase)
	require.NoError(t, err)
	_, _, err = a.PreKeys.GenerateAndStorePreKeys(id, 3)
	require.NoError(t, err)

	w, err := a.Unlock(testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, id.XPub, w.Directory.IdentityKey())
	_, err = w.RequireMessages()
	require.ErrorIs(t, err, ErrNoRelay)

	b, err := w.Directory.PublishBundle("alice")
	require.NoError(t, err)
	assert.Len(t, b.OneTimePreKeys, 3)
	require.NoError(t, w.Close())

	_, err = a.Unlock("Wrong-Passphrase-1")
	require.Error(t, err)
}

func TestUnlock_WithRelay(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	_, _, err := a.Identity.GenerateIdentity(testPassphrase)
	require.NoError(t, err)
	w, err := a.Unlock(testPassphrase)
	require.NoError(t, err)
	defer w.Close()
	m, err := w.RequireMessages()
	require.NoError(t, err)
	assert.NotNil(t, m)
}
