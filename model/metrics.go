package model

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBloomQueryCounter         prometheus.Gauge
	prometheusBloomPositiveCounter      prometheus.Gauge
	prometheusBloomFalsePositiveCounter prometheus.Gauge
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBloomQueryCounter = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletnode",
			Subsystem: "model",
			Name:      "coin_bloom_queries",
			Help:      "Number of queries against the coin bloom filter",
		},
	)

	prometheusBloomPositiveCounter = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletnode",
			Subsystem: "model",
			Name:      "coin_bloom_positive",
			Help:      "Number of positive answers from the coin bloom filter",
		},
	)

	prometheusBloomFalsePositiveCounter = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletnode",
			Subsystem: "model",
			Name:      "coin_bloom_false_positive",
			Help:      "Number of bloom-positive lookups that found no stored coin",
		},
	)
}
