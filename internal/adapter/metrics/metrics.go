package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics holds all Prometheus metrics for the relay.
type RelayMetrics struct {
	DispatchTotal        *prometheus.CounterVec
	DispatchDuration     prometheus.Histogram
	SessionTransitions   *prometheus.CounterVec
	SessionsRetired      *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge
	QRIssued             prometheus.Counter
	AuthFailures         prometheus.Counter
	CredentialCacheHits  prometheus.Counter
	CredentialCacheMiss  prometheus.Counter
	AuditStreamAvailable prometheus.Gauge
	RateLimited          prometheus.Counter
	ArchivedRecords      prometheus.Counter
}

// NewRelayMetrics initializes the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "dispatch",
			Name:      "attempts_total",
			Help:      "Total number of send attempts by outcome.",
		}, []string{"outcome"}), // outcome: sent, session_not_found, session_not_ready, recipient_invalid, transport_error
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chat_relay",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time spent waiting on the transport for a send.",
			Buckets:   prometheus.DefBuckets,
		}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Total number of session state transitions by target status.",
		}, []string{"status"}),
		SessionsRetired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "session",
			Name:      "teardowns_total",
			Help:      "Total number of sessions torn down by cause.",
		}, []string{"cause"}), // cause: qr_budget, logged_out, invalid_session, admin
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_relay",
			Subsystem: "session",
			Name:      "registered",
			Help:      "Number of sessions currently registered.",
		}),
		QRIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "session",
			Name:      "qr_issued_total",
			Help:      "Total number of QR tokens issued by the transport.",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "session",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures reported by the transport.",
		}),
		CredentialCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "auth",
			Name:      "credential_cache_hits_total",
			Help:      "Total number of credential cache hits.",
		}),
		CredentialCacheMiss: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "auth",
			Name:      "credential_cache_misses_total",
			Help:      "Total number of credential cache misses.",
		}),
		AuditStreamAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_relay",
			Subsystem: "audit",
			Name:      "stream_available",
			Help:      "Indicates if the dispatch audit stream is reachable (1 for available, 0 for unavailable).",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),
		ArchivedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Subsystem: "audit",
			Name:      "archived_records_total",
			Help:      "Total number of dispatch records moved to the archive.",
		}),
	}
}
