package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleet_dashboard"

var (
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "refresh_total", Help: "Load list refreshes by source (backend or fallback)"},
		[]string{"source"},
	)
	LoadsInStore = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "loads_in_store", Help: "Number of loads currently held"})

	AcceptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "accept_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	NotificationsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_shown_total", Help: "Notifications shown by type"},
		[]string{"type"},
	)
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_sessions", Help: "Connected live dashboard sessions"})

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of calls to the loads backend",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
