// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package metrics provides Prometheus instrumentation for provisioning
// operations, provider API calls and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redemption metrics

	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_redemptions_total",
			Help: "Total invitation redemption attempts by outcome",
		},
		[]string{"outcome"}, // "success", "invalid", "failed"
	)

	RedemptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portarius_redemption_duration_seconds",
			Help:    "End-to-end duration of redemption sagas in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_rollbacks_total",
			Help: "Total compensating rollback runs by result",
		},
		[]string{"result"}, // "clean", "partial"
	)

	AccountsProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_accounts_provisioned_total",
			Help: "Total external accounts created per server type",
		},
		[]string{"server_type"},
	)

	// Provider client metrics

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portarius_provider_request_duration_seconds",
			Help:    "Duration of provider API operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server_type", "operation"},
	)

	ProviderRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_provider_request_errors_total",
			Help: "Total provider API operation errors",
		},
		[]string{"server_type", "operation", "error_type"}, // error_type: "client", "service"
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portarius_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_circuit_breaker_requests_total",
			Help: "Total requests through circuit breakers by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portarius_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Expiry sweeper metrics

	ExpirySweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portarius_expiry_sweeps_total",
			Help: "Total expiry sweeper runs",
		},
	)

	ExpiredUsersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portarius_expired_users_processed_total",
			Help: "Total expired users processed by action",
		},
		[]string{"action", "result"}, // action: "disable", "delete"; result: "ok", "error"
	)
)
