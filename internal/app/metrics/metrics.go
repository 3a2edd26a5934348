// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rental_service",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_service",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental_service",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_service",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders placed.",
		},
		[]string{"type"},
	)

	latePenalties = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental_service",
			Subsystem: "orders",
			Name:      "late_penalties_charged_total",
			Help:      "Sum of late-return penalties charged.",
		},
	)

	overdueRentals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rental_service",
			Subsystem: "orders",
			Name:      "overdue_rentals",
			Help:      "Unreturned rentals past their expected return date.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersPlaced,
		latePenalties,
		overdueRentals,
		collectors.NewGoCollector(),
	)
}

// IncrementInFlight bumps the in-flight request gauge.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight lowers the in-flight request gauge.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records a handled request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOrderPlaced counts a placed order by type.
func RecordOrderPlaced(orderType string) {
	ordersPlaced.WithLabelValues(orderType).Inc()
}

// RecordLateReturn accumulates a charged late penalty.
func RecordLateReturn(penalty float64) {
	latePenalties.Add(penalty)
}

// SetOverdueRentals publishes the current overdue rental count.
func SetOverdueRentals(count int) {
	overdueRentals.Set(float64(count))
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
