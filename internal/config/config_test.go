package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, RoleServer, cfg.Role)
	assert.Equal(t, 7777, cfg.GetReliablePort())
	assert.Equal(t, 7778, cfg.GetDatagramPort())
	assert.Equal(t, 2112, cfg.GetMetricsPort())
	assert.Equal(t, 20, cfg.GetTickRate())
	assert.Equal(t, 100, cfg.GetSmoothingMs())
	assert.InDelta(t, 0.01, cfg.GetSmoothingEps(), 1e-9)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
role: both
reliable:
  host: 127.0.0.1
  port: 9000
  kind: kcp
datagram:
  host: 127.0.0.1
  port: 9001
session:
  tick_rate: 30
  max_clients: 4
metrics:
  enabled: true
  port: 9100
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RoleBoth, cfg.Role)
	assert.Equal(t, "kcp", cfg.Reliable.Kind)
	assert.Equal(t, 9000, cfg.GetReliablePort())
	assert.Equal(t, 9001, cfg.GetDatagramPort())
	assert.Equal(t, 30, cfg.GetTickRate())
	assert.Equal(t, 4, cfg.Session.MaxClients)
	assert.Equal(t, 9100, cfg.GetMetricsPort())
}

func TestLoadBadRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("role: observer\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("REPLICA_TCP_PORT", "8123")

	cfg := Default()
	cfg.Reliable.Port = 0
	assert.Equal(t, 8123, cfg.GetReliablePort())

	// конфиг важнее окружения
	cfg.Reliable.Port = 7000
	assert.Equal(t, 7000, cfg.GetReliablePort())
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("REPLICA_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, RoleServer, cfg.Role)
}
