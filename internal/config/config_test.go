package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvOnly(t *testing.T) {
	t.Setenv("CRISISKIT_REMOTE__BASE_URL", "https://crisis.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "crisiskit-queue.db", cfg.Storage.Path)
	assert.Equal(t, "https://crisis.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Sync.RefreshInterval)
	assert.Equal(t, 15*time.Second, cfg.Network.ProbeInterval)
	assert.Equal(t, time.Second, cfg.Network.SettleDelay)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Admin.JWTSecret)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: "9000"
log:
  level: debug
  format: text
storage:
  path: /var/lib/crisiskit/queue.db
remote:
  base_url: https://crisis.example.com
  timeout: 5s
  rate_limit: 2.5
  auth_token: token-123
sync:
  max_retries: 5
  refresh_interval: 10s
network:
  probe_interval: 5s
  settle_delay: 2s
admin:
  jwt_secret: super-secret
cors:
  allowed_origins:
    - https://app.example.com
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/var/lib/crisiskit/queue.db", cfg.Storage.Path)
	assert.Equal(t, "https://crisis.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 2.5, cfg.Remote.RateLimit)
	assert.Equal(t, "token-123", cfg.Remote.AuthToken)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Sync.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.Network.ProbeInterval)
	assert.Equal(t, 2*time.Second, cfg.Network.SettleDelay)
	assert.Equal(t, "super-secret", cfg.Admin.JWTSecret)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := `
remote:
  base_url: https://file.example.com
sync:
  max_retries: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CRISISKIT_REMOTE__BASE_URL", "https://env.example.com")
	t.Setenv("CRISISKIT_SYNC__MAX_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 7, cfg.Sync.MaxRetries)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing base url",
			env:  map[string]string{},
		},
		{
			name: "empty storage path",
			env: map[string]string{
				"CRISISKIT_REMOTE__BASE_URL": "https://crisis.example.com",
				"CRISISKIT_STORAGE__PATH":    "  ",
			},
		},
		{
			name: "non-positive max retries",
			env: map[string]string{
				"CRISISKIT_REMOTE__BASE_URL": "https://crisis.example.com",
				"CRISISKIT_SYNC__MAX_RETRIES": "0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
