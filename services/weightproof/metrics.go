package weightproof

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/verdant-network/walletnode/util"
)

var (
	prometheusWeightProofValidations *prometheus.CounterVec
	prometheusWeightProofDuration    prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusWeightProofValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "weightproof",
			Name:      "validations_total",
			Help:      "Number of weight proof validations by result",
		},
		[]string{"result"},
	)

	prometheusWeightProofDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletnode",
			Subsystem: "weightproof",
			Name:      "validation_duration_seconds",
			Help:      "Time taken to validate a weight proof",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)
}
