package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors, registered against the default Prometheus
// registry at init time. Mirrors `cloud-native-stack`'s pkg/server/
// metrics.go shape (promauto-registered package vars, handed out
// through a small accessor) — that repo was pulled in specifically for
// this precedent, since the teacher itself has no metrics surface.
var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisor_steps_total",
		Help: "Total plan steps executed, labeled by terminal status.",
	}, []string{"status"})

	planDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "provisor_plan_duration_seconds",
		Help:    "Wall-clock duration of a full plan execution.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
	})
)

// Metrics exposes the collectors an Engine feeds, for whatever serves
// /metrics to register them downstream. Never required: nothing about
// plan execution depends on a caller ever reading this.
type Metrics struct {
	StepsTotal      *prometheus.CounterVec
	PlanDurationSec prometheus.Histogram
}

func (e *Engine) Metrics() *Metrics {
	return &Metrics{StepsTotal: stepsTotal, PlanDurationSec: planDurationSeconds}
}

func (e *Engine) observeStep(status string) {
	stepsTotal.WithLabelValues(status).Inc()
}

func (e *Engine) observePlanDuration(seconds float64) {
	planDurationSeconds.Observe(seconds)
}
