package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	stepDuration     *prometheus.HistogramVec
	unitOutcomes     *prometheus.CounterVec
	rankingFallbacks prometheus.Counter
	unitsActive      prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when multiple orchestrators exist in
// one process.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers needing unique metric names (tests, multi-tenant hosts) should
// supply a fresh registry. Registration errors panic, mirroring promauto
// semantics so configuration bugs surface early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arena",
			Subsystem: "orchestrator",
			Name:      "step_duration_seconds",
			Help:      "Duration of each step's variant execution and resolution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"intent", "status"},
	)
	unitOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "orchestrator",
			Name:      "unit_outcomes_total",
			Help:      "Units of work by terminal status.",
		},
		[]string{"status"},
	)
	rankingFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "orchestrator",
			Name:      "ranking_fallbacks_total",
			Help:      "Steps where the ranking pass failed and heuristic resolution was used.",
		},
	)
	unitsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arena",
			Subsystem: "orchestrator",
			Name:      "units_active",
			Help:      "Units of work currently running.",
		},
	)

	reg.MustRegister(stepDuration, unitOutcomes, rankingFallbacks, unitsActive)

	return &Metrics{
		stepDuration:     stepDuration,
		unitOutcomes:     unitOutcomes,
		rankingFallbacks: rankingFallbacks,
		unitsActive:      unitsActive,
	}
}

func (m *Metrics) observeStep(intent, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(intent, status).Observe(d.Seconds())
}

func (m *Metrics) observeUnit(status string) {
	if m == nil {
		return
	}
	m.unitOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) observeRankingFallback() {
	if m == nil {
		return
	}
	m.rankingFallbacks.Inc()
}

func (m *Metrics) unitStarted() {
	if m == nil {
		return
	}
	m.unitsActive.Inc()
}

func (m *Metrics) unitFinished() {
	if m == nil {
		return
	}
	m.unitsActive.Dec()
}
