// Package metrics registers the gateway's Prometheus collectors on the
// default registry exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "email_gateway",
		Name:      "requests_total",
		Help:      "Requests processed, by method and response class.",
	}, []string{"method", "status"})

	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "email_gateway",
		Name:      "auth_failures_total",
		Help:      "Requests rejected during API key authentication.",
	})

	RateLimitDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "email_gateway",
		Name:      "rate_limit_denials_total",
		Help:      "Requests denied by the rate limiter, by exhausted horizon.",
	}, []string{"horizon"})
)
