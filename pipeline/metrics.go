package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks pipeline throughput and routing outcomes.
type Metrics struct {
	applicationsTotal *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	decisionsTotal    *prometheus.CounterVec
	degradedTotal     prometheus.Counter
}

// NewMetrics creates and registers pipeline metrics on the given
// registerer. Pass prometheus.DefaultRegisterer for the usual setup.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applicationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grantcouncil",
			Name:      "applications_total",
			Help:      "Applications processed, by final status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "grantcouncil",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grantcouncil",
			Name:      "decisions_total",
			Help:      "Council decisions, by routing outcome.",
		}, []string{"routing"}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grantcouncil",
			Name:      "degraded_evaluations_total",
			Help:      "Evaluations that fell back to defaults.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.applicationsTotal, m.stageDuration, m.decisionsTotal, m.degradedTotal)
	}
	return m
}

func (m *Metrics) observeStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) recordApplication(status string) {
	if m == nil {
		return
	}
	m.applicationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) recordDecision(autoExecute bool) {
	if m == nil {
		return
	}
	routing := "human_review"
	if autoExecute {
		routing = "auto_execute"
	}
	m.decisionsTotal.WithLabelValues(routing).Inc()
}

func (m *Metrics) recordDegraded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.degradedTotal.Add(float64(n))
}
