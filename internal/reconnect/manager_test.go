package reconnect

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
	"musiclib/internal/zones"
)

func newTestManager(bridge *roon.MockBridge) (*Manager, *zones.Tracker) {
	tracker := zones.NewTracker(bridge, clock.NewRealClock(), zap.NewNop())
	return NewManager(bridge, tracker, metrics.NewRecorder(), zap.NewNop(), 5*time.Second), tracker
}

func TestReconnect_Success(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.SetZone("z1", "Office", "playing")

	m, tracker := newTestManager(bridge)
	require.True(t, m.Reconnect(context.Background()))

	assert.Equal(t, 1, bridge.ConnectCalls())
	assert.True(t, bridge.IsConnected())
	assert.Equal(t, 1, tracker.Count(), "zone cache repopulated after reconnect")
}

func TestReconnect_TearsDownStaleSession(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.SetZone("z1", "Office", "playing")
	require.NoError(t, bridge.Connect(context.Background()))

	m, _ := newTestManager(bridge)
	require.True(t, m.Reconnect(context.Background()))

	// Close ran first, so the second Connect did not see a live session
	assert.Equal(t, 2, bridge.ConnectCalls())
}

func TestReconnect_ConnectFailure(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.ConnectErr = roon.ErrConnectionLost

	m, _ := newTestManager(bridge)
	assert.False(t, m.Reconnect(context.Background()))
}

func TestReconnect_ConnectedButNoZonesIsPartialFailure(t *testing.T) {
	bridge := roon.NewMockBridge()
	// No zones registered: the session comes up but refresh sees nothing

	m, _ := newTestManager(bridge)
	assert.False(t, m.Reconnect(context.Background()))
	assert.True(t, bridge.IsConnected(), "the session itself may still be up")
}

func TestReconnect_ConcurrentCallsCollapse(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.SetZone("z1", "Office", "playing")
	bridge.ConnectDelay = 50 * time.Millisecond

	m, _ := newTestManager(bridge)

	const callers = 5
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Reconnect(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, bridge.ConnectCalls(), "overlapping triggers must share one sequence")
	for i, result := range results {
		assert.True(t, result, "caller %d should share the in-flight result", i)
	}
}

func TestReconnect_SequentialCallsRunIndependently(t *testing.T) {
	bridge := roon.NewMockBridge()
	bridge.SetZone("z1", "Office", "playing")

	m, _ := newTestManager(bridge)
	require.True(t, m.Reconnect(context.Background()))
	require.True(t, m.Reconnect(context.Background()))

	assert.Equal(t, 2, bridge.ConnectCalls())
}
