package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ws://localhost:9200/ws", cfg.BridgeURL)
	assert.Equal(t, 8180, cfg.APIPort)
	assert.Equal(t, 10*time.Second, cfg.ProbeInterval())
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout())
	assert.Equal(t, 2, cfg.Health.FailureThreshold)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout())
	assert.Equal(t, 2, cfg.Playback.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.SettleDelay())
	assert.Equal(t, 300*time.Millisecond, cfg.RetryBackoff())
	assert.Equal(t, 5*time.Minute, cfg.HistoryPollInterval())
	assert.Equal(t, 30*time.Second, cfg.RestoreTimeout())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), logger)
	require.NoError(t, err)
	assert.Equal(t, Default().BridgeURL, cfg.BridgeURL)
}

func TestLoad_FromFile(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bridge_url: ws://roon-bridge.local:9300/ws
api_port: 9090
health:
  probe_interval_seconds: 15
  failure_threshold: 3
playback:
  settle_delay_ms: 250
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, logger)
	require.NoError(t, err)

	assert.Equal(t, "ws://roon-bridge.local:9300/ws", cfg.BridgeURL)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval())
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay())

	// Unset fields keep defaults
	assert.Equal(t, 2, cfg.Playback.MaxRetries)
}

func TestLoad_MalformedFile(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge_url: [broken"), 0o644))

	_, err := Load(path, logger)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Setenv("BRIDGE_URL", "ws://override:9999/ws")
	t.Setenv("API_PORT", "7070")

	cfg, err := Load("", logger)
	require.NoError(t, err)
	assert.Equal(t, "ws://override:9999/ws", cfg.BridgeURL)
	assert.Equal(t, 7070, cfg.APIPort)
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Setenv("API_PORT", "not-a-port")

	_, err := Load("", logger)
	assert.Error(t, err)
}
