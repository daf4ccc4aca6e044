package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var predictionsThrottled = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "thalai",
		Subsystem: "http",
		Name:      "predictions_throttled_total",
		Help:      "Prediction requests rejected by the rate limiter.",
	},
)

func init() {
	_ = prometheus.Register(predictionsThrottled)
}
