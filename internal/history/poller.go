package history

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"musiclib/internal/health"
	"musiclib/internal/zones"
)

const defaultMaxEntries = 500

// Entry is one observed listening snapshot
type Entry struct {
	ID         string    `json:"id"`
	ZoneID     string    `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
	State      string    `json:"state"`
	ObservedAt time.Time `json:"observed_at"`
}

// HealthSource provides the connectivity snapshot consulted before each
// polling pass
type HealthSource interface {
	Status() health.Status
}

// Poller periodically snapshots playing zones into a bounded in-memory
// recent-plays list. Each pass first consults the health monitor and
// skips entirely while the bridge is unreachable or detached from the
// core, so a dead control channel never produces garbage history.
type Poller struct {
	tracker      *zones.Tracker
	healthSource HealthSource
	logger       *zap.Logger
	maxEntries   int

	scheduler gocron.Scheduler

	mu      sync.Mutex
	entries []Entry
}

// NewPoller creates a history poller that runs every interval
func NewPoller(tracker *zones.Tracker, healthSource HealthSource, logger *zap.Logger, interval time.Duration, maxEntries int) (*Poller, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	p := &Poller{
		tracker:      tracker,
		healthSource: healthSource,
		logger:       logger,
		maxEntries:   maxEntries,
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(p.poll),
		gocron.WithName("listening-history-poll"),
	); err != nil {
		return nil, err
	}

	p.scheduler = scheduler
	return p, nil
}

// Start begins periodic polling
func (p *Poller) Start() {
	p.logger.Info("Starting listening-history poller")
	p.scheduler.Start()
}

// Stop shuts the poller down
func (p *Poller) Stop() error {
	p.logger.Info("Stopping listening-history poller")
	return p.scheduler.Shutdown()
}

// poll records one snapshot of every currently playing zone
func (p *Poller) poll() {
	status := p.healthSource.Status()
	if !status.BridgeReachable || !status.ConnectedToCore {
		p.logger.Debug("Skipping history poll, bridge not healthy",
			zap.Bool("bridge_reachable", status.BridgeReachable),
			zap.Bool("connected_to_core", status.ConnectedToCore))
		return
	}

	now := time.Now()
	var fresh []Entry
	for _, zone := range p.tracker.Zones() {
		if zone.State != zones.StatePlaying {
			continue
		}
		fresh = append(fresh, Entry{
			ID:         uuid.NewString(),
			ZoneID:     zone.ID,
			ZoneName:   zone.DisplayName,
			State:      string(zone.State),
			ObservedAt: now,
		})
	}

	if len(fresh) == 0 {
		return
	}

	p.mu.Lock()
	p.entries = append(p.entries, fresh...)
	if excess := len(p.entries) - p.maxEntries; excess > 0 {
		p.entries = p.entries[excess:]
	}
	p.mu.Unlock()

	p.logger.Debug("Recorded listening snapshots", zap.Int("count", len(fresh)))
}

// Recent returns up to n entries, newest first
func (p *Poller) Recent(n int) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n <= 0 || n > len(p.entries) {
		n = len(p.entries)
	}

	out := make([]Entry, 0, n)
	for i := len(p.entries) - 1; i >= len(p.entries)-n; i-- {
		out = append(out, p.entries[i])
	}
	return out
}
