package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of order shells created",
	})

	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_finalized_total",
		Help: "Total number of order shells finalized by the create task",
	})

	OrdersSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_settled_total",
		Help: "Total number of orders moved from NEW to CREATED",
	})

	OrdersCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_canceled_total",
		Help: "Total number of canceled orders",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of rejected order requests",
	}, []string{"reason"})

	TransitionsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_skipped_total",
		Help: "Status transitions that found the order already past the expected status",
	}, []string{"to"})

	TasksEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_enqueued_total",
		Help: "Total number of pipeline tasks enqueued",
	}, []string{"type"})

	TasksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_processed_total",
		Help: "Total number of pipeline tasks processed",
	}, []string{"type", "result"})

	TaskProcessingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_processing_latency_seconds",
		Help:    "Latency of pipeline task handling",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	SMSSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sms_sent_total",
		Help: "Total number of SMS codes issued",
	})

	SMSRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_rejected_total",
		Help: "Total number of SMS send or verify attempts rejected",
	}, []string{"reason"})

	TokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokens_issued_total",
		Help: "Total number of access/refresh pairs issued",
	})

	TokensRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokens_revoked_total",
		Help: "Total number of token ids added to the deny-list",
	})

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
