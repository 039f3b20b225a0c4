package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the monitor's prometheus instruments.
type Metrics struct {
	ChecksTotal         *prometheus.CounterVec
	RestoresTotal       prometheus.Counter
	SnapshotsTotal      prometheus.Counter
	ConsecutiveFailures prometheus.Gauge
	LogEvents           prometheus.Gauge
	CheckDuration       prometheus.Histogram
}

// NewMetrics registers the monitor metrics on reg.
// A nil reg uses a private registry, so several monitors can coexist in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedlog_monitor_checks_total",
				Help: "Total number of integrity checks by outcome state",
			},
			[]string{"state"},
		),
		RestoresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedlog_monitor_restores_total",
				Help: "Total number of successful restores from backup",
			},
		),
		SnapshotsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedlog_monitor_snapshots_total",
				Help: "Total number of backup snapshots written",
			},
		),
		ConsecutiveFailures: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sharedlog_monitor_consecutive_failures",
				Help: "Unrecoverable check cycles in a row",
			},
		),
		LogEvents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sharedlog_monitor_log_events",
				Help: "Number of records in the primary at the last valid check",
			},
		),
		CheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sharedlog_monitor_check_duration_seconds",
				Help:    "Duration of one check cycle in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) observe(out Outcome) {
	m.ChecksTotal.WithLabelValues(out.State.String()).Inc()
	m.CheckDuration.Observe(out.Duration.Seconds())
	m.ConsecutiveFailures.Set(float64(out.ConsecutiveFailures))
	if out.Restored {
		m.RestoresTotal.Inc()
	}
	if out.Snapshot {
		m.SnapshotsTotal.Inc()
	}
	if out.State == StateHealthy || out.State == StateCorruptRecoverable {
		m.LogEvents.Set(float64(out.Events))
	}
}
