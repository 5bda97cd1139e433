package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootLoadsEnvFileFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.env")
	require.NoError(t, os.WriteFile(path, []byte("PULSE_ENV_FILE_CHECK=from-flag\n"), 0o600))

	envFile = path
	t.Cleanup(func() {
		envFile = ""
		os.Unsetenv("PULSE_ENV_FILE_CHECK")
	})

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "from-flag", os.Getenv("PULSE_ENV_FILE_CHECK"))
}

func TestRootEnvFileFlagDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.env")
	require.NoError(t, os.WriteFile(path, []byte("PULSE_ENV_FILE_PRESET=from-file\n"), 0o600))

	t.Setenv("PULSE_ENV_FILE_PRESET", "from-process")
	envFile = path
	t.Cleanup(func() { envFile = "" })

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "from-process", os.Getenv("PULSE_ENV_FILE_PRESET"))
}

func TestRootMissingEnvFileFails(t *testing.T) {
	envFile = filepath.Join(t.TempDir(), "missing.env")
	t.Cleanup(func() { envFile = "" })

	assert.Error(t, rootCmd.PersistentPreRunE(rootCmd, nil))
}
