package walletsync

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/verdant-network/walletnode/util"
)

var (
	prometheusSyncTotal          *prometheus.CounterVec
	prometheusSyncDuration       *prometheus.HistogramVec
	prometheusValidatorResults   *prometheus.CounterVec
	prometheusCommitOutcomes     *prometheus.CounterVec
	prometheusCommitBatchSize    prometheus.Histogram
	prometheusSubscriptionRounds prometheus.Histogram
	prometheusPeakAnnouncements  *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "sync_total",
			Help:      "Number of sync attempts by decision and result",
		},
		[]string{"decision", "result"},
	)

	prometheusSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync attempts by decision",
			Buckets:   util.MetricsBucketsSeconds,
		},
		[]string{"decision"},
	)

	prometheusValidatorResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "validator_results_total",
			Help:      "Number of coin state validations by outcome",
		},
		[]string{"outcome"},
	)

	prometheusCommitOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "commit_outcomes_total",
			Help:      "Number of committed coin states by upsert outcome",
		},
		[]string{"outcome"},
	)

	prometheusCommitBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "commit_batch_size",
			Help:      "Size of committed coin state batches",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)

	prometheusSubscriptionRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "subscription_rounds",
			Help:      "Rounds needed to reach the subscription fixed point",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13, 21},
		},
	)

	prometheusPeakAnnouncements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "walletsync",
			Name:      "peak_announcements_total",
			Help:      "Number of peak announcements by classification",
		},
		[]string{"decision"},
	)
}
