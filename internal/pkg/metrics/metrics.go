// Package metrics provides Prometheus metrics for remedyd (RED + incident
// lifecycle). Scrapeable at /metrics; dashboards and alerts rely on these
// names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "remedyd"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// IncidentsCreatedTotal counts incidents by severity and signal source.
	IncidentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_created_total",
			Help:      "Total incidents created, by severity and source.",
		},
		[]string{"severity", "source"},
	)

	// ActionsExecutedTotal counts remediation action outcomes.
	ActionsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Total remediation actions executed, by type and final status.",
		},
		[]string{"action_type", "status"},
	)

	// ActionDurationSeconds is executor latency per action type.
	ActionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Remediation action executor duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 10),
		},
		[]string{"action_type"},
	)

	// RollbacksTotal counts rollback step outcomes (success/failed/skipped).
	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Total rollback steps attempted, by result.",
		},
		[]string{"result"},
	)

	// WebSocketClients tracks currently connected event stream clients.
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients.",
		},
	)
)
