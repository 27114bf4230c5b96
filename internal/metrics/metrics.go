// Package metrics defines the Prometheus collectors for the control plane.
// All collectors live under the "castellan" namespace and are registered on
// the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "castellan",
		Name:      "active_contexts",
		Help:      "Number of execution contexts currently registered.",
	})

	ContextsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "castellan",
		Name:      "contexts_created_total",
		Help:      "Total execution contexts created.",
	})

	ContextsRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castellan",
		Name:      "contexts_removed_total",
		Help:      "Total execution contexts removed, by reason (explicit, stale).",
	}, []string{"reason"})

	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castellan",
		Name:      "admissions_total",
		Help:      "Total admission decisions by operation and outcome.",
	}, []string{"operation", "outcome"})

	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castellan",
		Name:      "safety_validations_total",
		Help:      "Total safety pipeline evaluations by verdict (allowed, revoked, terminate).",
	}, []string{"verdict"})

	ValidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "castellan",
		Name:      "safety_validation_duration_seconds",
		Help:      "Safety pipeline evaluation latency in seconds.",
		// The pipeline carries a ~20ms latency budget; buckets bracket it.
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
	})
)
