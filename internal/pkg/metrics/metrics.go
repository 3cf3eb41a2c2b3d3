package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_orders_total",
		Help: "The total number of orders submitted to the venue",
	}, []string{"status", "side"})

	VenueRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_venue_requests_total",
		Help: "Signed venue requests by HTTP status class",
	}, []string{"method", "status"})

	IdentityRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_identity_requests_total",
		Help: "Identity provider requests by operation and outcome",
	}, []string{"operation", "outcome"})

	LoginSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradegate_login_sessions",
		Help: "Login sessions currently held by the store",
	}, []string{"state"})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegate_login_sessions_swept_total",
		Help: "Login sessions removed by the expiry sweep",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradegate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_risk_rejects_total",
		Help: "Total pre-trade risk rejections",
	}, []string{"reason"})
)
