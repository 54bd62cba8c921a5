// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/passgate/passgate/internal/credential"
)

// Metrics contains the passgate Prometheus collectors.
type Metrics struct {
	OperationsTotal *prometheus.CounterVec
	HashDuration    *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	SessionsSwept   prometheus.Counter
}

// NewMetrics creates and registers the passgate metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passgate_credential_operations_total",
				Help: "Credential operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "passgate_hash_duration_seconds",
				Help:    "Time spent hashing or verifying passwords",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passgate_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "passgate_sessions_swept_total",
				Help: "Expired sessions removed by the sweeper",
			},
		),
	}

	reg.MustRegister(m.OperationsTotal, m.HashDuration, m.HTTPRequests, m.SessionsSwept)
	return m
}

// ObserveOperation implements credential.Observer.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveHash implements credential.Observer.
func (m *Metrics) ObserveHash(operation string, d time.Duration) {
	m.HashDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRequest counts a served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var _ credential.Observer = (*Metrics)(nil)
