package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"14m", 14 * time.Minute, false},
		{"30s", 30 * time.Second, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"m", 0, true},
		{"10x", 0, true},
		{"abm", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvSessionPassphrase, "")

	t.Run("file overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "config.toml")
		content := `
format_version = "0.1.0"

[server]
url = "http://localhost:8080/"

[session]
path = "` + filepath.ToSlash(filepath.Join(dir, "session.yaml")) + `"
revalidate_interval = "5m"

[cache]
retries = 1
`
		require.NoError(t, os.WriteFile(file, []byte(content), 0600))

		cfg, err := LoadConfig(file)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
		assert.Equal(t, "ws://localhost:8080", cfg.WSOrigin())
		assert.Equal(t, "/api/v1.0", cfg.APIPrefix())
		assert.Equal(t, 5*time.Minute, cfg.Session.GetRevalidateIntervalOrDefault())
		assert.Equal(t, 15*time.Minute, cfg.Cache.GetStaleTimeOrDefault())
		assert.Equal(t, 1, cfg.Cache.Retries)
		assert.Equal(t, "admin", cfg.Session.RequiredRole)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(EnvServerURL, "https://staging.uparkt.ru")
		t.Setenv(EnvSessionPassphrase, "secret")
		file := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(file, []byte(`format_version = "0.1.0"`), 0600))

		cfg, err := LoadConfig(file)
		require.NoError(t, err)
		assert.Equal(t, "https://staging.uparkt.ru", cfg.Server.URL)
		assert.Equal(t, "wss://staging.uparkt.ru", cfg.WSOrigin())
		assert.Equal(t, "secret", cfg.Session.Passphrase)
	})

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	})

	t.Run("unsupported api version", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(file, []byte("format_version = \"0.1.0\"\n[server]\napi_version = \"2.0\"\n"), 0600))
		_, err := LoadConfig(file)
		assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	})
}

func TestWriteConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Server.URL = "https://example.org"
	require.NoError(t, cfg.WriteConfig(file))

	var back ConfigParam
	_, err := toml.DecodeFile(file, &back)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", back.Server.URL)
	assert.Equal(t, Version, back.FormatVersion)
}
