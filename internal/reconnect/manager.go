package reconnect

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"musiclib/internal/metrics"
	"musiclib/internal/roon"
	"musiclib/internal/zones"
)

const defaultRestoreTimeout = 30 * time.Second

// Manager owns the reconnect sequence: tear down the stale session,
// re-establish it (discovery and zone subscription happen inside
// Connect) and repopulate the zone cache. Reconnect is idempotent under
// concurrency: overlapping triggers collapse into one in-flight
// sequence and share its result.
type Manager struct {
	bridge  roon.Bridge
	tracker *zones.Tracker
	metrics *metrics.Recorder
	logger  *zap.Logger
	timeout time.Duration

	group singleflight.Group
}

// NewManager creates a reconnection manager. timeout bounds one full
// restore sequence; zero means the default.
func NewManager(bridge roon.Bridge, tracker *zones.Tracker, rec *metrics.Recorder, logger *zap.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultRestoreTimeout
	}
	return &Manager{
		bridge:  bridge,
		tracker: tracker,
		metrics: rec,
		logger:  logger,
		timeout: timeout,
	}
}

// Reconnect runs (or joins) the reconnection sequence. Returns true
// only if a session was re-established AND at least one zone was
// observed afterward; a connected-but-empty result is a partial failure
// even though the session itself may be up.
func (m *Manager) Reconnect(ctx context.Context) bool {
	result, _, _ := m.group.Do("reconnect", func() (interface{}, error) {
		return m.reconnect(ctx), nil
	})
	return result.(bool)
}

func (m *Manager) reconnect(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.logger.Info("Reconnecting to bridge")

	if err := m.bridge.Close(); err != nil {
		m.logger.Warn("Failed to close stale session", zap.Error(err))
	}

	if err := m.bridge.Connect(ctx); err != nil {
		m.logger.Error("Reconnection failed", zap.Error(err))
		m.metrics.Reconnect(false)
		return false
	}

	observed := m.tracker.Refresh(ctx)
	m.metrics.Reconnect(observed)

	if !observed {
		m.logger.Warn("Session re-established but no zones observed")
		return false
	}

	m.logger.Info("Reconnected", zap.Int("zones", m.tracker.Count()))
	return true
}
