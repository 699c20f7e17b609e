package playback

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"musiclib/internal/clock"
	"musiclib/internal/metrics"
	"musiclib/internal/roon"
	"musiclib/internal/zones"
)

// Command is a transport control understood by the bridge
type Command string

const (
	CommandPlay     Command = "play"
	CommandPause    Command = "pause"
	CommandNext     Command = "next"
	CommandPrevious Command = "previous"
	CommandStop     Command = "stop"
)

// Valid reports whether the command is one the bridge understands
func (c Command) Valid() bool {
	switch c {
	case CommandPlay, CommandPause, CommandNext, CommandPrevious, CommandStop:
		return true
	}
	return false
}

// expectedState is the zone state that confirms a command took effect.
// Next/previous only make sense on an active zone, so they verify
// against playing.
func expectedState(c Command) zones.PlaybackState {
	switch c {
	case CommandPause:
		return zones.StatePaused
	case CommandStop:
		return zones.StateStopped
	default:
		return zones.StatePlaying
	}
}

// RetryOutcome failure reasons
const (
	ReasonZoneNotFound    = "zone-not-found"
	ReasonInvalidCommand  = "invalid-command"
	ReasonStateUnverified = "state-unverified"
	ReasonConnectionLost  = "connection-lost"
)

// RetryOutcome describes one transport command's result. Returned
// synchronously to the command issuer; never persisted.
type RetryOutcome struct {
	Succeeded   bool                `json:"succeeded"`
	Attempts    int                 `json:"attempts_used"`
	StateBefore zones.PlaybackState `json:"state_before"`
	StateAfter  zones.PlaybackState `json:"state_after"`
	Reason      string              `json:"reason,omitempty"`
}

// TransportConfig tunes the retry controller. Zero values get defaults.
type TransportConfig struct {
	MaxRetries   int
	SettleDelay  time.Duration
	RetryBackoff time.Duration
	CallTimeout  time.Duration
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 200 * time.Millisecond
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 300 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	return c
}

// TransportController wraps a single transport command with
// pre-condition validation, bounded retry and post-condition
// verification. The bridge acknowledging a command does not mean the
// zone actually changed state, so each attempt re-reads the tracker
// after a settle delay and only an observed state transition counts as
// success.
type TransportController struct {
	bridge  roon.Bridge
	tracker *zones.Tracker
	metrics *metrics.Recorder
	clk     clock.Clock
	logger  *zap.Logger
	cfg     TransportConfig
}

// NewTransportController creates a transport retry controller
func NewTransportController(bridge roon.Bridge, tracker *zones.Tracker, rec *metrics.Recorder, clk clock.Clock, logger *zap.Logger, cfg TransportConfig) *TransportController {
	return &TransportController{
		bridge:  bridge,
		tracker: tracker,
		metrics: rec,
		clk:     clk,
		logger:  logger,
		cfg:     cfg.withDefaults(),
	}
}

// Control issues one transport command with verification and bounded
// retry. An unknown zone fails fast with zero remote calls; retrying
// cannot fix a zone the tracker has never seen.
func (tc *TransportController) Control(ctx context.Context, zoneID string, command Command) RetryOutcome {
	log := tc.logger.With(
		zap.String("zone_id", zoneID),
		zap.String("command", string(command)))

	if !command.Valid() {
		log.Warn("Rejecting unknown transport command")
		tc.metrics.TransportCommand(string(command), false)
		return RetryOutcome{
			StateBefore: zones.StateUnknown,
			StateAfter:  zones.StateUnknown,
			Reason:      ReasonInvalidCommand,
		}
	}

	zone, known := tc.tracker.Lookup(zoneID)
	if !known {
		log.Warn("Rejecting transport command for unknown zone")
		tc.metrics.TransportCommand(string(command), false)
		return RetryOutcome{
			StateBefore: zones.StateUnknown,
			StateAfter:  zones.StateUnknown,
			Reason:      ReasonZoneNotFound,
		}
	}

	want := expectedState(command)
	outcome := RetryOutcome{
		StateBefore: zone.State,
		StateAfter:  zone.State,
	}

	for attempt := 1; attempt <= tc.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			tc.clk.Sleep(tc.cfg.RetryBackoff)
			tc.metrics.TransportRetry()
		}
		outcome.Attempts = attempt

		callCtx, cancel := context.WithTimeout(ctx, tc.cfg.CallTimeout)
		err := tc.bridge.Transport(callCtx, zoneID, string(command))
		cancel()

		if err != nil {
			if errors.Is(err, roon.ErrConnectionLost) {
				log.Warn("Transport command abandoned, bridge unreachable", zap.Error(err))
				outcome.Reason = ReasonConnectionLost
				tc.metrics.TransportCommand(string(command), false)
				return outcome
			}
			log.Warn("Transport command failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		// Command accepted; give the push event time to land, then
		// trust observed state over the acknowledgement
		tc.clk.Sleep(tc.cfg.SettleDelay)
		if fresh, ok := tc.tracker.Lookup(zoneID); ok {
			outcome.StateAfter = fresh.State
		}

		if outcome.StateAfter == want {
			outcome.Succeeded = true
			log.Info("Transport command verified",
				zap.Int("attempts", attempt),
				zap.String("state", string(outcome.StateAfter)))
			tc.metrics.TransportCommand(string(command), true)
			return outcome
		}

		log.Debug("Zone state did not reach expected value",
			zap.Int("attempt", attempt),
			zap.String("observed", string(outcome.StateAfter)),
			zap.String("expected", string(want)))
	}

	outcome.Reason = ReasonStateUnverified
	log.Warn("Transport command unverified after all attempts",
		zap.Int("attempts", outcome.Attempts),
		zap.String("state_before", string(outcome.StateBefore)),
		zap.String("state_after", string(outcome.StateAfter)))
	tc.metrics.TransportCommand(string(command), false)
	return outcome
}
