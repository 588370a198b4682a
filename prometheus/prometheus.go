// Package prometheus provides a Prometheus implementation of
// rediskv.MetricsCollector.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	rediskv "github.com/raniellyferreira/redis-inmemory-kv"
)

// Default histogram buckets for command latency (in seconds).
var defaultBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
}

// Blocking pops park for up to their timeout, so they get wider buckets.
var blockingBuckets = []float64{
	.001, .01, .1, .5, 1, 2.5, 5, 10, 30, 60, 300,
}

// Metrics implements rediskv.MetricsCollector using Prometheus.
type Metrics struct {
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	blockingWait    *prometheus.HistogramVec
	expiredTotal    prometheus.Counter
	keys            prometheus.Gauge
	memoryBytes     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if a collector with the same name is already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rediskv_command_duration_seconds",
			Help:    "Command execution time in seconds",
			Buckets: defaultBuckets,
		}, []string{"command"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rediskv_commands_total",
			Help: "Total number of commands processed",
		}, []string{"command"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rediskv_errors_total",
			Help: "Total number of error replies by error code",
		}, []string{"error_type"}),

		blockingWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rediskv_blocking_wait_seconds",
			Help:    "Time spent parked in blocking pops",
			Buckets: blockingBuckets,
		}, []string{"outcome"}),

		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rediskv_expired_keys_total",
			Help: "Total number of keys removed after their TTL elapsed",
		}),

		keys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rediskv_keys",
			Help: "Current number of keys, including expired keys not yet removed",
		}),

		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rediskv_memory_bytes",
			Help: "Approximate memory used by keys and values",
		}),
	}

	reg.MustRegister(
		m.commandDuration,
		m.commandsTotal,
		m.errorsTotal,
		m.blockingWait,
		m.expiredTotal,
		m.keys,
		m.memoryBytes,
	)

	return m
}

func (m *Metrics) RecordCommandProcessed(cmd string, duration time.Duration) {
	m.commandsTotal.WithLabelValues(cmd).Inc()
	m.commandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (m *Metrics) RecordKeyCount(count int64) {
	m.keys.Set(float64(count))
}

func (m *Metrics) RecordExpiredKey() {
	m.expiredTotal.Inc()
}

func (m *Metrics) RecordBlockingWait(duration time.Duration, served bool) {
	outcome := "timeout"
	if served {
		outcome = "served"
	}
	m.blockingWait.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) RecordMemoryUsage(bytes int64) {
	m.memoryBytes.Set(float64(bytes))
}

var _ rediskv.MetricsCollector = (*Metrics)(nil)
