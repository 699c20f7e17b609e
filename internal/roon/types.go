package roon

import (
	"encoding/json"
	"time"
)

// Message represents a base frame to/from the bridge control channel
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// WireError represents an error response from the bridge
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event represents an asynchronous notification from the bridge
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// ZoneEvent is a zone-changed push notification
type ZoneEvent struct {
	ZoneID      string `json:"zone_id"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
}

// ZoneInfo is one zone as reported by a list_zones request
type ZoneInfo struct {
	ZoneID      string `json:"zone_id"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
}

// BridgeStatus is the liveness/status payload returned by the bridge.
// Field names match the bridge's JSON status surface.
type BridgeStatus struct {
	Connected       bool      `json:"connected"`
	CoreName        string    `json:"core_name"`
	CoreVersion     string    `json:"core_version"`
	ZonesCount      int       `json:"zones_count"`
	TransportReady  bool      `json:"transport_ready"`
	BrowseReady     bool      `json:"browse_ready"`
	ImageReady      bool      `json:"image_ready"`
	HealthFailures  int       `json:"health_failures"`
	LastHealthCheck time.Time `json:"last_health_check"`
}

// BrowseItem is one selectable entry returned by a browse request
type BrowseItem struct {
	Title   string `json:"title"`
	ItemKey string `json:"item_key"`
	Hint    string `json:"hint"`
}

// BrowseRequest asks the bridge to resolve a hierarchical library path
// (e.g. Library -> Artists -> name -> album) and return its items.
type BrowseRequest struct {
	ID   int      `json:"id"`
	Type string   `json:"type"`
	Path []string `json:"path"`
}

// PlayMediaRequest starts playback of a resolved path on a zone.
// Action is optional; when empty the bridge uses the library's default
// action for that entry.
type PlayMediaRequest struct {
	ID     int      `json:"id"`
	Type   string   `json:"type"`
	Path   []string `json:"path"`
	ZoneID string   `json:"zone_id"`
	Action string   `json:"action,omitempty"`
}

// TransportRequest issues a transport control on a zone
type TransportRequest struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	ZoneID  string `json:"zone_id"`
	Control string `json:"control"`
}

// ListZonesRequest asks the bridge for all currently known zones
type ListZonesRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// StatusRequest asks the bridge for its liveness/status payload
type StatusRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// SubscribeZonesRequest subscribes this session to zone-changed events
type SubscribeZonesRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}
