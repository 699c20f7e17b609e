package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the Prometheus metrics for the playback resilience
// engine. Components call the typed methods below instead of touching
// collectors directly.
type Recorder struct {
	registry *prom.Registry

	probeResults        *prom.CounterVec
	consecutiveFailures prom.Gauge
	reconnects          *prom.CounterVec
	playRequests        *prom.CounterVec
	playAttempts        *prom.CounterVec
	transportCommands   *prom.CounterVec
	transportRetries    prom.Counter
}

// NewRecorder constructs and registers all collectors on a private registry
func NewRecorder() *Recorder {
	reg := prom.NewRegistry()
	r := &Recorder{registry: reg}

	r.probeResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "musiclib",
		Name:      "health_probe_results_total",
		Help:      "Bridge liveness probe results by outcome",
	}, []string{"result"})

	r.consecutiveFailures = prom.NewGauge(prom.GaugeOpts{
		Namespace: "musiclib",
		Name:      "health_consecutive_failures",
		Help:      "Current count of consecutive failed health probes",
	})

	r.reconnects = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "musiclib",
		Name:      "reconnects_total",
		Help:      "Bridge reconnection sequences by outcome",
	}, []string{"result"})

	r.playRequests = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "musiclib",
		Name:      "play_requests_total",
		Help:      "Album/artist play requests by outcome",
	}, []string{"result"})

	r.playAttempts = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "musiclib",
		Name:      "play_attempts_total",
		Help:      "Individual play attempts by fallback tier and outcome",
	}, []string{"tier", "result"})

	r.transportCommands = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "musiclib",
		Name:      "transport_commands_total",
		Help:      "Transport control commands by command and outcome",
	}, []string{"command", "result"})

	r.transportRetries = prom.NewCounter(prom.CounterOpts{
		Namespace: "musiclib",
		Name:      "transport_retries_total",
		Help:      "Transport command attempts beyond the first",
	})

	reg.MustRegister(
		r.probeResults,
		r.consecutiveFailures,
		r.reconnects,
		r.playRequests,
		r.playAttempts,
		r.transportCommands,
		r.transportRetries,
	)
	return r
}

// Handler returns the HTTP handler serving the /metrics endpoint
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ProbeResult records one health probe outcome
func (r *Recorder) ProbeResult(ok bool) {
	r.probeResults.WithLabelValues(outcome(ok)).Inc()
}

// SetConsecutiveFailures records the current failure streak
func (r *Recorder) SetConsecutiveFailures(n int) {
	r.consecutiveFailures.Set(float64(n))
}

// Reconnect records one reconnection sequence outcome
func (r *Recorder) Reconnect(ok bool) {
	r.reconnects.WithLabelValues(outcome(ok)).Inc()
}

// PlayRequest records one caller-level play request outcome
func (r *Recorder) PlayRequest(ok bool) {
	r.playRequests.WithLabelValues(outcome(ok)).Inc()
}

// PlayAttempt records one (tier, variant-pair) play attempt outcome
func (r *Recorder) PlayAttempt(tier string, ok bool) {
	r.playAttempts.WithLabelValues(tier, outcome(ok)).Inc()
}

// TransportCommand records a transport command's final outcome
func (r *Recorder) TransportCommand(command string, ok bool) {
	r.transportCommands.WithLabelValues(command, outcome(ok)).Inc()
}

// TransportRetry records an attempt beyond the first for a command
func (r *Recorder) TransportRetry() {
	r.transportRetries.Inc()
}
