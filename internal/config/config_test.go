package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every SHAREDLOGIN_ env var that Load() reads.
var allConfigKeys = []string{
	"SHAREDLOGIN_LISTEN_ADDR",
	"SHAREDLOGIN_DB_PATH",
	"SHAREDLOGIN_SECRET_KEY",
	"SHAREDLOGIN_DEMO_PHONES",
	"SHAREDLOGIN_HEALTH_INTERVAL",
}

// isolateConfigEnv saves and unsets all SHAREDLOGIN_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("SHAREDLOGIN_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("SHAREDLOGIN_DB_PATH", "/tmp/test.db")
	t.Setenv("SHAREDLOGIN_DEMO_PHONES", "123, 456 ,,")
	t.Setenv("SHAREDLOGIN_HEALTH_INTERVAL", "15m")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.HealthInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, []string{"123", "456"}, cfg.DemoPhones)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "sharedlogin.db", cfg.DBPath)
	assert.Equal(t, []string{"00000000000", "99999"}, cfg.DemoPhones)
	assert.Equal(t, time.Hour, cfg.HealthInterval)
	assert.Nil(t, cfg.SecretKey)
	assert.False(t, cfg.HasSecretKey())
}

// TestLoad_DemoPhones_Empty verifies that an explicitly empty value disables
// demo mode instead of falling back to the defaults.
func TestLoad_DemoPhones_Empty(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("SHAREDLOGIN_DEMO_PHONES", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{}, cfg.DemoPhones)
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("SHAREDLOGIN_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
	assert.True(t, cfg.HasSecretKey())
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("SHAREDLOGIN_SECRET_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHAREDLOGIN_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("SHAREDLOGIN_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHAREDLOGIN_SECRET_KEY")
}

func TestLoad_InvalidHealthInterval(t *testing.T) {
	for _, v := range []string{"not-a-duration", "0s", "-5m"} {
		t.Run(v, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("SHAREDLOGIN_HEALTH_INTERVAL", v)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SHAREDLOGIN_HEALTH_INTERVAL")
		})
	}
}
