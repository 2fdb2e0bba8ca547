package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InviteAcceptances counts invite acceptance attempts by result
	// (success|not_found|conflict|forbidden|error).
	InviteAcceptances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peladahub_invite_acceptances_total",
			Help: "Total number of invite acceptance attempts",
		},
		[]string{"result"},
	)

	// PaymentWindowOutcomes counts terminal payment-window transitions
	// (paid|credited|full).
	PaymentWindowOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peladahub_payment_window_outcomes_total",
			Help: "Terminal outcomes of casual player payment windows",
		},
		[]string{"outcome"},
	)

	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peladahub_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks refresh-token sessions that have not been
	// revoked or expired.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peladahub_active_sessions",
			Help: "Number of active refresh-token sessions",
		},
	)

	// LiveMatches tracks matches currently in the live state.
	LiveMatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peladahub_live_matches",
			Help: "Number of matches currently live",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peladahub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
