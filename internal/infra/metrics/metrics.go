// Package metrics exports pass, dispatch and reply counters to Prometheus.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/usecase"
)

// PassMetrics satisfies worker.Observer.
type PassMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	leads    *prometheus.CounterVec
	sends    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production.
func New(reg prometheus.Registerer) *PassMetrics {
	f := promauto.With(reg)
	return &PassMetrics{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sherpa_pass_runs_total",
				Help: "Total number of pass runs",
			},
			[]string{"pass", "result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sherpa_pass_duration_seconds",
				Help:    "Duration of pass runs in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"pass"},
		),
		leads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sherpa_pass_leads_total",
				Help: "Leads handled by passes, by outcome",
			},
			[]string{"pass", "outcome"},
		),
		sends: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sherpa_dispatch_sent_total",
				Help: "Messages sent per channel",
			},
			[]string{"channel"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sherpa_pass_failures_total",
				Help: "Per-lead failures, by pass and channel",
			},
			[]string{"pass", "channel"},
		),
	}
}

func (m *PassMetrics) ObservePass(r usecase.PassReport, err error) {
	pass := r.Pass
	if pass == "" {
		pass = "unknown"
	}

	result := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	case err != nil:
		result = "error"
	case len(r.Failures) > 0:
		result = "partial"
	}
	m.runs.WithLabelValues(pass, result).Inc()
	m.duration.WithLabelValues(pass).Observe(r.Duration.Seconds())

	m.leads.WithLabelValues(pass, "examined").Add(float64(r.Examined))
	m.leads.WithLabelValues(pass, "advanced").Add(float64(r.Advanced))
	m.leads.WithLabelValues(pass, "skipped").Add(float64(r.Skipped))
	m.leads.WithLabelValues(pass, "stale").Add(float64(len(r.Stale)))

	for ch, n := range r.Sent {
		m.sends.WithLabelValues(string(ch)).Add(float64(n))
	}
	for _, f := range r.Failures {
		m.failures.WithLabelValues(pass, channelLabel(f.Channel)).Inc()
	}
}

func channelLabel(ch entity.Channel) string {
	if ch == "" {
		return "none"
	}
	return string(ch)
}
