package serving

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prediction outcomes used as the "outcome" label.
const (
	outcomeOK            = "ok"
	outcomeUnavailable   = "unavailable"
	outcomeMisconfigured = "misconfigured"
	outcomeError         = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thalai",
			Subsystem: "serving",
			Name:      "predictions_total",
			Help:      "Predictions served, by outcome and predicted label.",
		},
		[]string{"outcome", "label"},
	)

	predictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thalai",
			Subsystem: "serving",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent scoring a single request.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	artifactLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thalai",
			Subsystem: "serving",
			Name:      "artifact_loads_total",
			Help:      "Artifact load and reload attempts, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	handleState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "thalai",
			Subsystem: "serving",
			Name:      "state",
			Help:      "Serving state: 0 unloaded, 1 loaded, 2 load failed.",
		},
	)
)

func init() {
	_ = prometheus.Register(predictionsTotal)
	_ = prometheus.Register(predictionDuration)
	_ = prometheus.Register(artifactLoads)
	_ = prometheus.Register(handleState)
}
