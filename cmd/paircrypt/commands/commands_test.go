package commands

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paircrypt/internal/log"
	"paircrypt/internal/relay/server"
)

const testPassphrase = "Correct-Horse-9-Battery"

func startRelay(t *testing.T) string {
	t.Helper()
	spool, err := server.OpenSpool(filepath.Join(t.TempDir(), "relay.db"), 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { spool.Close() })
	srv, err := server.New(spool, log.NewDiscard().GetLogger("relay"))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, home, relay, device string, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--home", home,
		"--relay", relay,
		"--device", device,
		"--passphrase", testPassphrase,
		"--log-level", "ERROR",
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, home, relay, device string, args ...string) string {
	t.Helper()
	out, err := run(t, home, relay, device, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_Conversation(t *testing.T) {
	relay := startRelay(t)
	alice, bob := t.TempDir(), t.TempDir()

	out := mustRun(t, alice, relay, "alice", "init", "--one-time-prekeys", "2")
	assert.Contains(t, out, "Fingerprint:")
	mustRun(t, bob, relay, "bob", "init")
	bobFP := mustRun(t, bob, relay, "bob", "fingerprint")

	out = mustRun(t, bob, relay, "bob", "register")
	assert.Contains(t, out, "Registered bob")

	out = mustRun(t, alice, relay, "alice", "start-session", "bob")
	assert.Contains(t, bobFP, out[len(out)-21:len(out)-1])

	mustRun(t, alice, relay, "alice", "send", "bob", "hello bob")
	out = mustRun(t, bob, relay, "bob", "recv")
	assert.Contains(t, out, "[alice] hello bob")

	mustRun(t, bob, relay, "bob", "send", "alice", "hello alice")
	out = mustRun(t, alice, relay, "alice", "recv")
	assert.Contains(t, out, "[bob] hello alice")

	out = mustRun(t, alice, relay, "alice", "peers")
	assert.Contains(t, out, "bob\t")

	mustRun(t, alice, relay, "alice", "reset", "bob")
	out = mustRun(t, alice, relay, "alice", "peers")
	assert.NotContains(t, out, "bob")

	_, err := run(t, alice, relay, "alice", "send", "bob", "gone")
	require.Error(t, err)
}

func TestCLI_RequiresDevice(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "", "", "init")
	_, err := run(t, home, "", "", "recv")
	require.Error(t, err)
	_, err = run(t, home, "", "alice", "recv")
	require.Error(t, err)
}
