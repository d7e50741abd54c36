package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	addressSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "http",
			Name:      "address_saves_total",
			Help:      "Total number of successful address saves",
		},
	)

	ordersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "http",
			Name:      "orders_placed_total",
			Help:      "Total number of successfully placed orders",
		},
	)

	ordersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "http",
			Name:      "orders_failed_total",
			Help:      "Total number of failed place-order attempts",
		},
	)

	bridgeSubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "bridge",
			Name:      "submissions_total",
			Help:      "Total number of bridge payment submissions",
		},
	)

	bridgeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "bridge",
			Name:      "failures_total",
			Help:      "Total number of failed bridge payment submissions",
		},
	)

	loginsMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "carts_merged_total",
			Help:      "Total number of guest carts merged on login",
		},
	)

	loginsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "login_events_failed_total",
			Help:      "Total number of login events that failed processing",
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		addressSaves,
		ordersPlaced,
		ordersFailed,

		bridgeSubmissions,
		bridgeFailures,

		loginsMerged,
		loginsFailed,
	)
}
