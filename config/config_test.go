package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"method-bridge/benchmark"
	"method-bridge/bridge"
	"method-bridge/codec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, benchmark.ChannelName, cfg.Channel)
	assert.Equal(t, bridge.PolicyNotImplemented, cfg.UnknownMethodPolicy())
	assert.Equal(t, codec.CodecTypeJSON, cfg.CodecType())
	assert.Equal(t, int64(10), cfg.Registry.TTL)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "bridge.yaml", `
codec: binary
log_level: debug
server:
  listen: 0.0.0.0:9000
  unknown_method: ignore
  timeout: 250ms
  rate_limit: 50
  burst: 10
client:
  balancer: consistent_hash
  pool_size: 2
registry:
  endpoints: ["127.0.0.1:2379"]
  ttl: 30
`)

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, codec.CodecTypeBinary, cfg.CodecType())
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, bridge.PolicyIgnore, cfg.UnknownMethodPolicy())
	assert.Equal(t, 250*time.Millisecond, cfg.Server.Timeout)
	assert.Equal(t, 50.0, cfg.Server.RateLimit)
	assert.Equal(t, "consistent_hash", cfg.Client.Balancer)
	assert.Equal(t, []string{"127.0.0.1:2379"}, cfg.Registry.Endpoints)
	// untouched fields keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Client.Heartbeat)
}

func TestEnvOverrides(t *testing.T) {
	envFile := writeFile(t, "test.env", "METHODBRIDGE_POOL_SIZE=7\n")
	t.Setenv("METHODBRIDGE_LISTEN", "127.0.0.1:1234")
	t.Setenv("METHODBRIDGE_RETRY_DELAY", "1s")
	t.Setenv("METHODBRIDGE_ETCD_ENDPOINTS", "a:2379, b:2379,")
	t.Cleanup(func() { os.Unsetenv("METHODBRIDGE_POOL_SIZE") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1234", cfg.Server.Listen)
	assert.Equal(t, time.Second, cfg.Client.RetryDelay)
	assert.Equal(t, 7, cfg.Client.PoolSize)
	assert.Equal(t, []string{"a:2379", "b:2379"}, cfg.Registry.Endpoints)
}

func TestEnvOverridesHeartbeatAndRegistration(t *testing.T) {
	env := map[string]string{
		"METHODBRIDGE_HEARTBEAT":      "45s",
		"METHODBRIDGE_SHUTDOWN_GRACE": "2s",
		"METHODBRIDGE_WEIGHT":         "4",
		"METHODBRIDGE_REGISTRY_TTL":   "20",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}))

	assert.Equal(t, 45*time.Second, cfg.Client.Heartbeat)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, 4, cfg.Server.Weight)
	assert.Equal(t, int64(20), cfg.Registry.TTL)

	env = map[string]string{"METHODBRIDGE_HEARTBEAT": "often"}
	assert.Error(t, Default().applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}))
}

func TestEnvBadValue(t *testing.T) {
	t.Setenv("METHODBRIDGE_TIMEOUT", "soon")
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Codec = "xml"
	cfg.Server.UnknownMethod = "drop"
	cfg.Client.Balancer = "random"
	cfg.Client.PoolSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"xml", "drop", "random", "pool_size"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}
