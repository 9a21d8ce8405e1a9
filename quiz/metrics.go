package quiz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for session activity.
type Metrics struct {
	sessions       *prometheus.CounterVec
	pages          *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	sessionsActive prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration error. Tests pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quizagent",
				Name:      "sessions_total",
				Help:      "Sessions finished, by termination reason.",
			},
			[]string{"reason"},
		),
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quizagent",
				Name:      "pages_total",
				Help:      "Pages processed, by the rule that produced the answer.",
			},
			[]string{"rule"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quizagent",
				Name:      "step_duration_seconds",
				Help:      "Duration of each loop step.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quizagent",
				Name:      "sessions_active",
				Help:      "Sessions currently running.",
			},
		),
	}
	reg.MustRegister(m.sessions, m.pages, m.stepDuration, m.sessionsActive)
	return m
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) sessionFinished(r Reason) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessions.WithLabelValues(string(r)).Inc()
}

func (m *Metrics) pageSolved(rule string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(rule).Inc()
}

func (m *Metrics) observeStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}
