package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of units added to carts",
	})

	CartItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_removed_total",
		Help: "Total number of units removed from carts",
	})

	CartsClearedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_cleared_total",
		Help: "Total number of carts cleared",
	})

	InventoryReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"reason"})

	CheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of successful checkouts",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	SupplierOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_orders_created_total",
		Help: "Total number of supplier orders created by checkouts",
	})

	SupplierOrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplier_order_transitions_total",
		Help: "Total number of supplier order status changes",
	}, []string{"to"})

	ConflictRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_retries_total",
		Help: "Total number of operations retried after a concurrent modification",
	}, []string{"operation"})

	ConsumerMessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_dropped_total",
		Help: "Total number of consumed messages skipped after their handler kept failing",
	}, []string{"topic"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
