package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"musiclib/internal/clock"
	"musiclib/internal/metrics"
	"musiclib/internal/roon"
)

// Status is the process-wide connection health snapshot. The Monitor
// is its only writer; everyone else reads copies.
type Status struct {
	BridgeReachable     bool      `json:"bridge_reachable"`
	ConnectedToCore     bool      `json:"connected_to_core"`
	ZoneCount           int       `json:"zone_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheckAt         time.Time `json:"last_check_at"`
}

// Reconnector repairs the control channel after sustained probe failure
type Reconnector interface {
	Reconnect(ctx context.Context) bool
}

// Config tunes the monitor. Zero values get defaults.
type Config struct {
	Interval         time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		// Two misses (~20s) before acting: a single dropped probe is
		// noise, but a post-wake freeze must stay short
		c.FailureThreshold = 2
	}
	return c
}

// Monitor probes the bridge's liveness endpoint at a fixed interval and
// triggers reconnection after FailureThreshold consecutive failures.
// The probe interval never backs off; the threshold, not interval
// growth, controls when action is taken.
type Monitor struct {
	bridge      roon.Bridge
	reconnector Reconnector
	metrics     *metrics.Recorder
	clk         clock.Clock
	logger      *zap.Logger
	cfg         Config

	mu         sync.RWMutex
	status     Status
	lastBridge *roon.BridgeStatus
}

// NewMonitor creates a connection health monitor
func NewMonitor(bridge roon.Bridge, reconnector Reconnector, rec *metrics.Recorder, clk clock.Clock, logger *zap.Logger, cfg Config) *Monitor {
	return &Monitor{
		bridge:      bridge,
		reconnector: reconnector,
		metrics:     rec,
		clk:         clk,
		logger:      logger,
		cfg:         cfg.withDefaults(),
	}
}

// Run probes on a fixed interval until ctx is done. Reconnection runs
// inline on this goroutine, so probing pauses while a repair is in
// flight rather than piling up further triggers.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clk.After(m.cfg.Interval):
			m.probe(ctx)
		}
	}
}

// probe performs one liveness check and updates the status snapshot
func (m *Monitor) probe(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	bridgeStatus, err := m.bridge.Status(callCtx)
	cancel()

	now := m.clk.Now()

	if err == nil && bridgeStatus.Connected {
		m.recordSuccess(now, bridgeStatus)
		return
	}

	// Reachable-but-detached counts as a failure: a bridge that lost
	// its core needs the same repair as one that is down
	reachable := err == nil
	m.recordFailure(ctx, now, reachable, bridgeStatus, err)
}

func (m *Monitor) recordSuccess(now time.Time, bridgeStatus *roon.BridgeStatus) {
	m.mu.Lock()
	m.status = Status{
		BridgeReachable:     true,
		ConnectedToCore:     true,
		ZoneCount:           bridgeStatus.ZonesCount,
		ConsecutiveFailures: 0,
		LastCheckAt:         now,
	}
	m.lastBridge = bridgeStatus
	m.mu.Unlock()

	m.metrics.ProbeResult(true)
	m.metrics.SetConsecutiveFailures(0)

	m.logger.Debug("Health probe succeeded",
		zap.String("core", bridgeStatus.CoreName),
		zap.Int("zones", bridgeStatus.ZonesCount))
}

func (m *Monitor) recordFailure(ctx context.Context, now time.Time, reachable bool, bridgeStatus *roon.BridgeStatus, cause error) {
	m.mu.Lock()
	m.status.BridgeReachable = reachable
	m.status.ConnectedToCore = false
	m.status.ConsecutiveFailures++
	m.status.LastCheckAt = now
	if bridgeStatus != nil {
		m.status.ZoneCount = bridgeStatus.ZonesCount
		m.lastBridge = bridgeStatus
	}
	failures := m.status.ConsecutiveFailures
	m.mu.Unlock()

	m.metrics.ProbeResult(false)
	m.metrics.SetConsecutiveFailures(failures)

	m.logger.Warn("Health probe failed",
		zap.Bool("bridge_reachable", reachable),
		zap.Int("consecutive_failures", failures),
		zap.Error(cause))

	if failures < m.cfg.FailureThreshold {
		return
	}

	// Reset before the attempt so a failed reconnection does not
	// immediately re-trigger on the next probe
	m.mu.Lock()
	m.status.ConsecutiveFailures = 0
	m.mu.Unlock()
	m.metrics.SetConsecutiveFailures(0)

	m.logger.Info("Failure threshold reached, triggering reconnection",
		zap.Int("threshold", m.cfg.FailureThreshold))

	if m.reconnector.Reconnect(ctx) {
		m.logger.Info("Reconnection restored the bridge session")
	} else {
		m.logger.Warn("Reconnection did not restore a usable session")
	}
}

// Status returns a copy of the current health snapshot
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// BridgeStatus returns the last raw status payload seen from the
// bridge, if any
func (m *Monitor) BridgeStatus() *roon.BridgeStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastBridge == nil {
		return nil
	}
	statusCopy := *m.lastBridge
	return &statusCopy
}
