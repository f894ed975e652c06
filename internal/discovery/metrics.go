package discovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/steve-waters-outstaffer/content-finder/pkg/monitoring"
)

// Metrics tracks discovery run outcomes. A nil *Metrics is valid and records
// nothing, so tests and tooling can run without a Prometheus registry.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	postsFetched  *prometheus.CounterVec
	postsAccepted *prometheus.CounterVec
	warningsTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics registers the discovery metrics on the service collector.
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		runsTotal: mc.NewCounter("discovery_runs_total",
			"Total discovery runs", []string{"segment"}),
		postsFetched: mc.NewCounter("discovery_posts_fetched_total",
			"Raw posts fetched during collection", []string{"segment"}),
		postsAccepted: mc.NewCounter("discovery_posts_accepted_total",
			"Posts accepted by the final relevance filter", []string{"segment"}),
		warningsTotal: mc.NewCounter("discovery_warnings_total",
			"Warnings recorded across discovery runs", []string{"segment"}),
		stageDuration: mc.NewHistogram("discovery_stage_duration_seconds",
			"Duration of discovery stages", []string{"segment", "stage"},
			[]float64{0.5, 1, 5, 15, 30, 60, 120, 300}),
	}
}

func (m *Metrics) runStarted(segment string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(segment).Inc()
}

func (m *Metrics) addPostsFetched(segment string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.postsFetched.WithLabelValues(segment).Add(float64(n))
}

func (m *Metrics) addPostsAccepted(segment string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.postsAccepted.WithLabelValues(segment).Add(float64(n))
}

func (m *Metrics) addWarnings(segment string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.warningsTotal.WithLabelValues(segment).Add(float64(n))
}

func (m *Metrics) observeStage(segment, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(segment, stage).Observe(d.Seconds())
}
