package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsRequireSecret(t *testing.T) {
	// The JWT secret has no usable default; booting without one must fail.
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("PAIRBOARD_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
	require.Equal(t, "memory", cfg.AuthStore.Backend)
	require.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	require.False(t, cfg.IsProduction())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
env: production
http:
  port: 9090
authstore:
  backend: redis
redis:
  addr: redis:6379
auth:
  jwt_secret: file-secret
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 9090, cfg.HTTP.Port)
	require.Equal(t, "redis", cfg.AuthStore.Backend)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("PAIRBOARD_AUTH_JWT_SECRET", "test-secret")
	base, err := Load("")
	require.NoError(t, err)

	bad := *base
	bad.HTTP.Port = 0
	require.Error(t, bad.Validate())

	bad = *base
	bad.AuthStore.Backend = "etcd"
	require.Error(t, bad.Validate())

	bad = *base
	bad.AuthStore.Backend = "redis"
	bad.Redis.Addr = ""
	require.Error(t, bad.Validate())

	bad = *base
	bad.Mongo.Database = ""
	require.Error(t, bad.Validate())

	bad = *base
	bad.WebSocket.SendBuffer = 0
	require.Error(t, bad.Validate())
}
