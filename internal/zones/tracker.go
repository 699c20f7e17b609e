package zones

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"musiclib/internal/clock"
	"musiclib/internal/roon"
)

// A refresh that returns zero zones is not trusted immediately: the
// bridge reports empty transiently while reconnecting. Only this many
// consecutive empty refreshes clear the cached map.
const emptyRefreshLimit = 3

// Tracker is the in-memory cache of known zones and their playback
// state. It is the single writer of zone state: push events are drained
// by Run and pulls go through Refresh; every other component only reads
// snapshots.
type Tracker struct {
	bridge roon.Bridge
	clk    clock.Clock
	logger *zap.Logger

	mu             sync.RWMutex
	zones          map[string]Zone
	stale          bool
	emptyRefreshes int
}

// NewTracker creates a zone state tracker backed by the given bridge
func NewTracker(bridge roon.Bridge, clk clock.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{
		bridge: bridge,
		clk:    clk,
		logger: logger,
		zones:  make(map[string]Zone),
	}
}

// Run drains zone-changed events from the bridge until ctx is done.
// Keeping ingestion on one goroutine decouples the transport layer's
// read loop from the tracker's invariants.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.bridge.Events():
			t.Ingest(ev)
		}
	}
}

// Ingest applies one zone-changed event. Ingestion is idempotent and
// last-write-wins in receipt order; duplicate or out-of-order delivery
// is tolerated because the bridge does not guarantee event ordering.
func (t *Tracker) Ingest(ev roon.ZoneEvent) {
	if ev.ZoneID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	zone := t.zones[ev.ZoneID]
	zone.ID = ev.ZoneID
	if ev.DisplayName != "" {
		zone.DisplayName = ev.DisplayName
	}
	zone.State = ParseState(ev.State)
	zone.LastSeen = t.clk.Now()
	t.zones[ev.ZoneID] = zone

	t.logger.Debug("Zone state updated",
		zap.String("zone_id", ev.ZoneID),
		zap.String("state", string(zone.State)))
}

// Refresh pulls the full zone list from the bridge. Returns true if at
// least one zone was observed. An empty result marks the cache stale
// but does not clear it until emptyRefreshLimit consecutive empties.
func (t *Tracker) Refresh(ctx context.Context) bool {
	infos, err := t.bridge.ListZones(ctx)
	if err != nil {
		t.logger.Warn("Zone refresh failed", zap.Error(err))
		t.mu.Lock()
		t.stale = true
		t.mu.Unlock()
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(infos) == 0 {
		t.emptyRefreshes++
		t.stale = true
		if t.emptyRefreshes >= emptyRefreshLimit {
			t.logger.Warn("Clearing zone cache after repeated empty refreshes",
				zap.Int("empty_refreshes", t.emptyRefreshes))
			t.zones = make(map[string]Zone)
		}
		return false
	}

	now := t.clk.Now()
	fresh := make(map[string]Zone, len(infos))
	for _, info := range infos {
		fresh[info.ZoneID] = Zone{
			ID:          info.ZoneID,
			DisplayName: info.DisplayName,
			State:       ParseState(info.State),
			LastSeen:    now,
		}
	}
	t.zones = fresh
	t.stale = false
	t.emptyRefreshes = 0

	t.logger.Info("Zone cache refreshed", zap.Int("zones", len(fresh)))
	return true
}

// Zones returns a snapshot copy of the current zone map
func (t *Tracker) Zones() map[string]Zone {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]Zone, len(t.zones))
	for id, zone := range t.zones {
		snapshot[id] = zone
	}
	return snapshot
}

// Lookup returns the zone with the given ID, if known
func (t *Tracker) Lookup(zoneID string) (Zone, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	zone, ok := t.zones[zoneID]
	return zone, ok
}

// FindByName returns the first zone whose display name matches exactly
func (t *Tracker) FindByName(name string) (Zone, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, zone := range t.zones {
		if zone.DisplayName == name {
			return zone, true
		}
	}
	return Zone{}, false
}

// Count returns the number of cached zones
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.zones)
}

// Stale reports whether the cache is suspected out of date
func (t *Tracker) Stale() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stale
}
