package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SYNCPAD_STORE_DIR", "PORT", "SQLITE_URI"} {
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":3030", cfg.ListenAddr)
	require.Equal(t, 10, cfg.TailSize)
	require.Equal(t, 500*time.Millisecond, cfg.DebounceDelay)
	require.Equal(t, 30*time.Minute, cfg.IdleEviction)
}

func TestLoadHonorsLegacyPortEnvVar(t *testing.T) {
	t.Setenv("PORT", "8080")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadHonorsPrefixedEnvVar(t *testing.T) {
	t.Setenv("SYNCPAD_STORE_DIR", "/tmp/custom-store")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-store", cfg.StoreDir)
}
