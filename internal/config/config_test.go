package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Remote.Port)
	assert.Equal(t, DefaultStopGraceMillis, cfg.Remote.StopGraceMillis)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"remote":{"port":9090,"pin":"1234"},"log_level":""}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Remote.Port)
	assert.Equal(t, "1234", cfg.Remote.PIN)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultStartTimeoutSeconds, cfg.Remote.StartTimeoutSeconds)
	assert.Equal(t, int64(DefaultMaxMessageBytes), cfg.Remote.MaxMessageBytes)
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"remote":`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Remote.Port = 7000
	cfg.Remote.EnableAuth = true
	cfg.Remote.PIN = "0000"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Remote, loaded.Remote)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ephemeral port", func(c *Config) { c.Remote.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Remote.Port = 70000 }, true},
		{"auth without pin", func(c *Config) { c.Remote.EnableAuth = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PULPIT_LOG_LEVEL", "debug")
	t.Setenv("PULPIT_LOG_PATH", "/tmp/pulpit-test.log")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/pulpit-test.log", cfg.LogPath)
}
