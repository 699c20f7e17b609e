package zones

import "time"

// PlaybackState is the closed set of states a zone can report. States
// the bridge sends that we do not model collapse to StateUnknown rather
// than leaking free-form strings into comparisons.
type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateStopped PlaybackState = "stopped"
	StateUnknown PlaybackState = "unknown"
)

// ParseState maps a wire state string onto the closed enumeration
func ParseState(s string) PlaybackState {
	switch PlaybackState(s) {
	case StatePlaying, StatePaused, StateStopped:
		return PlaybackState(s)
	default:
		return StateUnknown
	}
}

// Zone is one playback endpoint as last observed from the bridge.
// Zones are owned by the Tracker; callers receive copies and must not
// cache zone IDs across long idle periods; resolve by lookup each time.
type Zone struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name"`
	State       PlaybackState `json:"state"`
	LastSeen    time.Time     `json:"last_seen"`
}
