package logutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigurePersistentLoggingWritesToFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "fabric.log")
	require.NoError(t, ConfigurePersistentLogging(path))

	logrus.Info("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from test")
}

func TestConfigurePersistentLoggingRejectsUnwritablePath(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	err := ConfigurePersistentLogging(filepath.Join(t.TempDir(), "missing-dir", "fabric.log"))
	require.Error(t, err)
}
