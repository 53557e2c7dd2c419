package log_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"paircrypt/internal/log"
)

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paircrypt.log")
	b, err := log.New(path, "info", false)
	require.NoError(t, err)

	l := b.GetLogger("session")
	l.Info("established with bob")
	l.Debug("filtered out")
	b.GetGoLogger("http", "WARNING").Print("listener closed")
	require.NoError(t, b.Rotate())
	l.Notice("after rotate")
	require.NoError(t, b.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "INFO session: established with bob")
	require.Contains(t, string(data), "WARN http: listener closed")
	require.Contains(t, string(data), "after rotate")
	require.NotContains(t, string(data), "filtered out")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := log.New("", "LOUD", false)
	require.Error(t, err)
	require.False(t, log.ValidLevel("LOUD"))
	require.True(t, log.ValidLevel("debug"))
}

func TestNewDiscard(t *testing.T) {
	b := log.NewDiscard()
	b.GetLogger("x").Error("dropped")
}
