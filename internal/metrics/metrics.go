// Package metrics exposes Prometheus collectors for the botworker service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	botworkerCommandsTotal          *prometheus.CounterVec
	botworkerCommandDurationSeconds *prometheus.HistogramVec
	botworkerIdleDurationSeconds    prometheus.Histogram
	botworkerLiveSessions           prometheus.Gauge
	botworkerPreparedSubmits        prometheus.Gauge
	botworkerSessionsEvictedTotal   prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		botworkerCommandsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botworker_commands_total",
				Help: "Total commands executed, labeled by command and outcome.",
			},
			[]string{"command", "status"},
		)

		botworkerCommandDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "botworker_command_duration_seconds",
				Help:    "Histogram of command execution latencies, labeled by command.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"command"},
		)

		botworkerIdleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "botworker_idle_duration_seconds",
				Help:    "Histogram of time spent waiting between requests.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 3, 10, 30},
			},
		)

		botworkerLiveSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "botworker_live_sessions",
				Help: "Bot sessions currently loaded in the worker.",
			},
		)

		botworkerPreparedSubmits = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "botworker_prepared_submits",
				Help: "Prepared submits waiting to be consumed.",
			},
		)

		botworkerSessionsEvictedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "botworker_sessions_evicted_total",
				Help: "Sessions evicted by the prune limit.",
			},
		)
	})
}

// ObserveCommand records one executed command with its outcome and latency.
func ObserveCommand(command, status string, duration time.Duration) {
	if botworkerCommandsTotal == nil {
		return
	}
	botworkerCommandsTotal.WithLabelValues(command, status).Inc()
	botworkerCommandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// ObserveIdle records how long the receive loop waited before a request.
func ObserveIdle(duration time.Duration) {
	if botworkerIdleDurationSeconds == nil {
		return
	}
	botworkerIdleDurationSeconds.Observe(duration.Seconds())
}

// SetLiveSessions updates the loaded-session gauge.
func SetLiveSessions(n int) {
	if botworkerLiveSessions == nil {
		return
	}
	botworkerLiveSessions.Set(float64(n))
}

// SetPreparedSubmits updates the prepared-submit gauge.
func SetPreparedSubmits(n int) {
	if botworkerPreparedSubmits == nil {
		return
	}
	botworkerPreparedSubmits.Set(float64(n))
}

// IncSessionsEvicted counts one pruned session.
func IncSessionsEvicted() {
	if botworkerSessionsEvictedTotal == nil {
		return
	}
	botworkerSessionsEvictedTotal.Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
