package roon

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PlayCall records one PlayMedia invocation for testing
type PlayCall struct {
	Path   []string
	ZoneID string
	Action string
	Time   time.Time
}

// TransportCall records one Transport invocation for testing
type TransportCall struct {
	ZoneID  string
	Control string
	Time    time.Time
}

// MockBridge implements Bridge for testing. The library contents, zone
// table and failure behavior are all scriptable so tests can simulate
// partial catalogs, zones that never change state, and dead bridges.
type MockBridge struct {
	mu        sync.Mutex
	connected bool
	library   map[string][]string // artist -> album titles
	zones     map[string]ZoneInfo
	events    chan ZoneEvent

	// Failure scripting
	FailImplicitPlay bool          // reject PlayMedia with no explicit action
	FailExplicitPlay bool          // reject PlayMedia with an explicit action
	FailArtistPlay   bool          // reject artist-level (3-element path) plays
	TransportApplies bool          // transport commands actually move zone state
	ConnectErr       error         // returned by Connect
	ConnectDelay     time.Duration // simulated discovery time inside Connect
	StatusErr        error         // returned by Status
	PlayErr          error         // returned by every PlayMedia call when set
	TransportErr     error         // returned by every Transport call when set
	ListZonesErr     error         // returned by ListZones when set

	scriptedStatus *BridgeStatus
	listZonesQueue [][]ZoneInfo

	connectCalls   int
	playCalls      []PlayCall
	transportCalls []TransportCall
	browseCalls    int
}

// NewMockBridge creates a mock bridge with an empty library and no zones
func NewMockBridge() *MockBridge {
	return &MockBridge{
		library: make(map[string][]string),
		zones:   make(map[string]ZoneInfo),
		events:  make(chan ZoneEvent, 64),
	}
}

// SetLibrary registers an artist and their albums in the mock catalog
func (m *MockBridge) SetLibrary(artist string, albums ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.library[artist] = append(m.library[artist], albums...)
}

// SetZone registers or updates a zone in the mock zone table
func (m *MockBridge) SetZone(zoneID, displayName, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[zoneID] = ZoneInfo{ZoneID: zoneID, DisplayName: displayName, State: state}
}

// QueueListZones scripts the results of upcoming ListZones calls, in
// order. Once the queue drains, ListZones falls back to the zone table.
func (m *MockBridge) QueueListZones(results ...[]ZoneInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listZonesQueue = append(m.listZonesQueue, results...)
}

// SetStatus scripts the payload returned by Status
func (m *MockBridge) SetStatus(status *BridgeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scriptedStatus = status
}

// PushZoneEvent delivers a zone-changed event as the bridge would
func (m *MockBridge) PushZoneEvent(ev ZoneEvent) {
	m.events <- ev
}

// ConnectCalls returns how many times Connect was invoked
func (m *MockBridge) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

// PlayCalls returns a copy of all recorded PlayMedia invocations
func (m *MockBridge) PlayCalls() []PlayCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PlayCall(nil), m.playCalls...)
}

// TransportCalls returns a copy of all recorded Transport invocations
func (m *MockBridge) TransportCalls() []TransportCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransportCall(nil), m.transportCalls...)
}

// BrowseCalls returns how many Browse invocations were recorded
func (m *MockBridge) BrowseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browseCalls
}

// Connect simulates establishing a session
func (m *MockBridge) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectCalls++
	if m.ConnectDelay > 0 {
		m.mu.Unlock()
		time.Sleep(m.ConnectDelay)
		m.mu.Lock()
	}
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Close simulates tearing down the session
func (m *MockBridge) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports the simulated session state
func (m *MockBridge) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Events returns the mock event channel
func (m *MockBridge) Events() <-chan ZoneEvent {
	return m.events
}

// resolvePath checks a Library/Artists path against the mock catalog.
// Caller must hold m.mu.
func (m *MockBridge) resolvePath(path []string) error {
	if len(path) < 3 || path[0] != "Library" || path[1] != "Artists" {
		return fmt.Errorf("unsupported path: %w", ErrNotFound)
	}

	albums, ok := m.library[path[2]]
	if !ok {
		return fmt.Errorf("artist %q: %w", path[2], ErrNotFound)
	}

	if len(path) == 3 {
		return nil
	}

	for _, album := range albums {
		if album == path[3] {
			return nil
		}
	}
	return fmt.Errorf("album %q: %w", path[3], ErrNotFound)
}

// Browse resolves a path against the mock catalog
func (m *MockBridge) Browse(ctx context.Context, path []string) ([]BrowseItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.browseCalls++
	if err := m.resolvePath(path); err != nil {
		return nil, err
	}

	items := []BrowseItem{{Title: "Play Now", ItemKey: "play-now", Hint: "action"}}
	if len(path) == 3 {
		for _, album := range m.library[path[2]] {
			items = append(items, BrowseItem{Title: album, ItemKey: album, Hint: "list"})
		}
	}
	return items, nil
}

// PlayMedia simulates starting playback, honoring the failure scripting
func (m *MockBridge) PlayMedia(ctx context.Context, path []string, zoneID, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playCalls = append(m.playCalls, PlayCall{
		Path:   append([]string(nil), path...),
		ZoneID: zoneID,
		Action: action,
		Time:   time.Now(),
	})

	if m.PlayErr != nil {
		return m.PlayErr
	}

	if err := m.resolvePath(path); err != nil {
		return err
	}

	if len(path) == 3 && m.FailArtistPlay {
		return fmt.Errorf("artist entry not playable: %w", ErrNotFound)
	}
	if len(path) == 4 && action == "" && m.FailImplicitPlay {
		return fmt.Errorf("no default action: %w", ErrNotFound)
	}
	if len(path) == 4 && action != "" && m.FailExplicitPlay {
		return fmt.Errorf("action %q not offered: %w", action, ErrNotFound)
	}

	if zone, ok := m.zones[zoneID]; ok {
		zone.State = "playing"
		m.zones[zoneID] = zone
	}
	return nil
}

// Transport simulates a transport control. When TransportApplies is set
// the zone's state moves to the command's expected state and a
// zone-changed event is emitted; otherwise the command is accepted but
// nothing changes, which is exactly the silent-failure mode the retry
// controller exists to catch.
func (m *MockBridge) Transport(ctx context.Context, zoneID, control string) error {
	m.mu.Lock()

	m.transportCalls = append(m.transportCalls, TransportCall{
		ZoneID:  zoneID,
		Control: control,
		Time:    time.Now(),
	})

	if m.TransportErr != nil {
		m.mu.Unlock()
		return m.TransportErr
	}

	zone, ok := m.zones[zoneID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("zone %q: %w", zoneID, ErrNotFound)
	}

	if !m.TransportApplies {
		m.mu.Unlock()
		return nil
	}

	switch control {
	case "play", "next", "previous":
		zone.State = "playing"
	case "pause":
		zone.State = "paused"
	case "stop":
		zone.State = "stopped"
	}
	m.zones[zoneID] = zone
	m.mu.Unlock()

	m.events <- ZoneEvent{ZoneID: zone.ZoneID, DisplayName: zone.DisplayName, State: zone.State}
	return nil
}

// ListZones returns scripted results if queued, otherwise the zone table
func (m *MockBridge) ListZones(ctx context.Context) ([]ZoneInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListZonesErr != nil {
		return nil, m.ListZonesErr
	}

	if len(m.listZonesQueue) > 0 {
		result := m.listZonesQueue[0]
		m.listZonesQueue = m.listZonesQueue[1:]
		return result, nil
	}

	zones := make([]ZoneInfo, 0, len(m.zones))
	for _, zone := range m.zones {
		zones = append(zones, zone)
	}
	return zones, nil
}

// Status returns the scripted status or a payload derived from mock state
func (m *MockBridge) Status(ctx context.Context) (*BridgeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	if m.scriptedStatus != nil {
		status := *m.scriptedStatus
		return &status, nil
	}

	return &BridgeStatus{
		Connected:       m.connected,
		CoreName:        "Mock Core",
		CoreVersion:     "2.0 (test)",
		ZonesCount:      len(m.zones),
		TransportReady:  true,
		BrowseReady:     true,
		ImageReady:      true,
		LastHealthCheck: time.Now(),
	}, nil
}
