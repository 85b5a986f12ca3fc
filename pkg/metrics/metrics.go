package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ProposalSends counts proposal send attempts by result (sent|dispatch_failed|invalid).
	ProposalSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_proposal_sends_total",
			Help: "Total number of proposal send attempts",
		},
		[]string{"result"},
	)

	// ProposalDecisions counts public decision visits by outcome (accepted|rejected|not_found|error).
	ProposalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_proposal_decisions_total",
			Help: "Total number of proposal decision link visits",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
