// Package metrics defines the Prometheus collectors for splitpilot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled HTTP requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpilot_http_requests_total",
		Help: "HTTP requests handled, by method, route, and status code.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitpilot_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// ExpensesCreated counts expenses successfully created in the ledger.
	ExpensesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpilot_expenses_created_total",
		Help: "Expenses created in the external ledger.",
	})

	// PartialAnnotations counts expenses created whose follow-up comment
	// annotation failed (the partial-success path).
	PartialAnnotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpilot_partial_annotations_total",
		Help: "Expenses created but left without the expense-id annotation.",
	})

	// MirrorWriteFailures counts fire-and-forget mirror writes that failed.
	MirrorWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpilot_mirror_write_failures_total",
		Help: "Mirror store writes that failed after a successful ledger call.",
	})

	// ExtractionEmpty counts model outputs that yielded no items after all
	// fallback parse strategies.
	ExtractionEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpilot_extraction_empty_total",
		Help: "AI outputs from which no items could be extracted.",
	})
)
