package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"musiclib/internal/clock"
	"musiclib/internal/metrics"
	"musiclib/internal/roon"
)

// spyReconnector counts reconnection triggers
type spyReconnector struct {
	mu     sync.Mutex
	calls  int
	result bool
}

func (s *spyReconnector) Reconnect(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result
}

func (s *spyReconnector) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestMonitor(bridge *roon.MockBridge, spy *spyReconnector) (*Monitor, *clock.MockClock) {
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := NewMonitor(bridge, spy, metrics.NewRecorder(), clk, zap.NewNop(), Config{
		Interval:         10 * time.Second,
		ProbeTimeout:     time.Second,
		FailureThreshold: 2,
	})
	return m, clk
}

func TestMonitor_SuccessfulProbe(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.SetZone("z1", "Office", "playing")
	bridge.Connect(context.Background())

	spy := &spyReconnector{}
	m, clk := newTestMonitor(bridge, spy)

	m.probe(context.Background())

	status := m.Status()
	assert.True(t, status.BridgeReachable)
	assert.True(t, status.ConnectedToCore)
	assert.Equal(t, 1, status.ZoneCount)
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.Equal(t, clk.Now(), status.LastCheckAt)
	assert.Equal(t, 0, spy.Calls())

	bridgeStatus := m.BridgeStatus()
	require.NotNil(t, bridgeStatus)
	assert.True(t, bridgeStatus.Connected)
}

func TestMonitor_SingleFailureDoesNotTrigger(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.Connect(context.Background())
	spy := &spyReconnector{}
	m, _ := newTestMonitor(bridge, spy)

	bridge.StatusErr = roon.ErrConnectionLost
	m.probe(context.Background())
	assert.Equal(t, 1, m.Status().ConsecutiveFailures)
	assert.False(t, m.Status().BridgeReachable)

	// A success wipes the streak
	bridge.StatusErr = nil
	m.probe(context.Background())
	assert.Equal(t, 0, m.Status().ConsecutiveFailures)
	assert.Equal(t, 0, spy.Calls(), "one dropped probe must not reconnect")
}

func TestMonitor_ThresholdTriggersReconnectOnce(t *testing.T) {
	bridge := roon.NewMockBridge()
	spy := &spyReconnector{result: true}
	m, _ := newTestMonitor(bridge, spy)

	bridge.StatusErr = roon.ErrConnectionLost
	m.probe(context.Background())
	assert.Equal(t, 0, spy.Calls())

	m.probe(context.Background())
	assert.Equal(t, 1, spy.Calls())

	// Counter reset regardless of reconnection outcome: the next
	// failure starts a fresh streak instead of re-triggering
	assert.Equal(t, 0, m.Status().ConsecutiveFailures)
	m.probe(context.Background())
	assert.Equal(t, 1, spy.Calls())
	assert.Equal(t, 1, m.Status().ConsecutiveFailures)
}

func TestMonitor_ResetEvenWhenReconnectFails(t *testing.T) {
	bridge := roon.NewMockBridge()
	spy := &spyReconnector{result: false}
	m, _ := newTestMonitor(bridge, spy)

	bridge.StatusErr = roon.ErrConnectionLost
	m.probe(context.Background())
	m.probe(context.Background())
	require.Equal(t, 1, spy.Calls())
	assert.Equal(t, 0, m.Status().ConsecutiveFailures)
}

func TestMonitor_ReachableButDetachedCountsAsFailure(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.SetStatus(&roon.BridgeStatus{Connected: false, ZonesCount: 0})
	spy := &spyReconnector{result: true}
	m, _ := newTestMonitor(bridge, spy)

	m.probe(context.Background())

	status := m.Status()
	assert.True(t, status.BridgeReachable, "bridge answered, so it is reachable")
	assert.False(t, status.ConnectedToCore)
	assert.Equal(t, 1, status.ConsecutiveFailures)
}

func TestMonitor_RunProbesOnInterval(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.Connect(context.Background())
	spy := &spyReconnector{}
	m, clk := newTestMonitor(bridge, spy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Let Run park on the interval timer before advancing
	require.Eventually(t, func() bool {
		clk.Advance(10 * time.Second)
		return m.Status().LastCheckAt != (time.Time{})
	}, time.Second, 10*time.Millisecond)

	assert.True(t, m.Status().ConnectedToCore)
}
