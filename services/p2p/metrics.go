package p2p

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusP2PMessagesReceived  prometheus.Counter
	prometheusP2PMessagesDropped   *prometheus.CounterVec
	prometheusP2PPeakAnnouncements prometheus.Counter
	prometheusP2PBansTotal         *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusP2PMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "p2p",
			Name:      "messages_received_total",
			Help:      "Number of gossip messages received",
		},
	)

	prometheusP2PMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "p2p",
			Name:      "messages_dropped_total",
			Help:      "Number of gossip messages dropped by cause",
		},
		[]string{"cause"},
	)

	prometheusP2PPeakAnnouncements = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "p2p",
			Name:      "peak_announcements_total",
			Help:      "Number of peak announcements forwarded to the sync service",
		},
	)

	prometheusP2PBansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "p2p",
			Name:      "bans_total",
			Help:      "Number of peers banned by reason",
		},
		[]string{"reason"},
	)
}
