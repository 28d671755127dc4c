package walletapi

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusAPIRequests        *prometheus.CounterVec
	prometheusAPIRequestDuration *prometheus.HistogramVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletnode",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	prometheusAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walletnode",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
}

func (s *Server) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = c.Request().URL.Path
		}

		prometheusAPIRequests.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
		prometheusAPIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		return err
	}
}
