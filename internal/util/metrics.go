package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of sales recorded, by source",
	}, []string{"source"})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sale creations",
	}, []string{"reason"})

	SalesConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_confirmed_total",
		Help: "Total number of scan-checkout sales confirmed",
	})

	ConfirmConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sale_confirm_conflicts_total",
		Help: "Total number of duplicate confirmation attempts rejected",
	})

	CodeCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sale_code_collisions_total",
		Help: "Total number of public code collisions during issuance",
	})

	CodeRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sale_code_retry_exhausted_total",
		Help: "Total number of sales rejected after exhausting code attempts",
	})

	LookupCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sale_lookup_cache_hits_total",
		Help: "Total number of sale lookups served from the status cache",
	})

	PendingSalesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_sales_expired_total",
		Help: "Total number of pending sales cancelled by the sweeper",
	})

	StockDeductionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_deductions_total",
		Help: "Total number of line items settled against stock",
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
