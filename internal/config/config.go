package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from a YAML file
// with environment-variable overrides for deployment-specific values.
// Durations are expressed in the unit named by the field so the YAML
// stays readable.
type Config struct {
	BridgeURL string `yaml:"bridge_url"`
	APIPort   int    `yaml:"api_port"`

	Health struct {
		ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`
		ProbeTimeoutSeconds  int `yaml:"probe_timeout_seconds"`
		FailureThreshold     int `yaml:"failure_threshold"`
	} `yaml:"health"`

	Playback struct {
		CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
		MaxRetries         int `yaml:"max_retries"`
		SettleDelayMs      int `yaml:"settle_delay_ms"`
		RetryBackoffMs     int `yaml:"retry_backoff_ms"`
	} `yaml:"playback"`

	History struct {
		PollIntervalMinutes int `yaml:"poll_interval_minutes"`
		MaxEntries          int `yaml:"max_entries"`
	} `yaml:"history"`

	RestoreTimeoutSeconds int `yaml:"restore_timeout_seconds"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{
		BridgeURL: "ws://localhost:9200/ws",
		APIPort:   8180,
	}
	cfg.Health.ProbeIntervalSeconds = 10
	cfg.Health.ProbeTimeoutSeconds = 5
	cfg.Health.FailureThreshold = 2
	cfg.Playback.CallTimeoutSeconds = 5
	cfg.Playback.MaxRetries = 2
	cfg.Playback.SettleDelayMs = 200
	cfg.Playback.RetryBackoffMs = 300
	cfg.History.PollIntervalMinutes = 5
	cfg.History.MaxEntries = 500
	cfg.RestoreTimeoutSeconds = 30
	return cfg
}

// Load reads the config file at path (optional) and applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string, logger *zap.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("Config file not found, using defaults", zap.String("path", path))
			} else {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			logger.Info("Loaded configuration", zap.String("path", path))
		}
	}

	if url := os.Getenv("BRIDGE_URL"); url != "" {
		cfg.BridgeURL = url
	}
	if port := os.Getenv("API_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid API_PORT %q: %w", port, err)
		}
		cfg.APIPort = parsed
	}

	return cfg, nil
}

// ProbeInterval returns the health probe interval
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Health.ProbeIntervalSeconds) * time.Second
}

// ProbeTimeout returns the per-probe timeout
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Health.ProbeTimeoutSeconds) * time.Second
}

// CallTimeout returns the per-call timeout for play/control operations
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Playback.CallTimeoutSeconds) * time.Second
}

// SettleDelay returns the post-command state propagation delay
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Playback.SettleDelayMs) * time.Millisecond
}

// RetryBackoff returns the delay between transport attempts
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Playback.RetryBackoffMs) * time.Millisecond
}

// HistoryPollInterval returns how often the listening-history poller runs
func (c *Config) HistoryPollInterval() time.Duration {
	return time.Duration(c.History.PollIntervalMinutes) * time.Minute
}

// RestoreTimeout bounds one full reconnect/restore sequence
func (c *Config) RestoreTimeout() time.Duration {
	return time.Duration(c.RestoreTimeoutSeconds) * time.Second
}
