// Package metrics holds the Prometheus instruments sql-tap-proxy exposes,
// and the small admin HTTP mux that serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument sql-tap-proxy records. It is always built
// against a private registry rather than prometheus.DefaultRegisterer so
// multiple Proxy/server instances can coexist in the same process (notably
// in tests) without colliding on metric names.
type Metrics struct {
	registry *prometheus.Registry

	SessionsOpenedTotal prometheus.Counter
	SessionsClosedTotal prometheus.Counter
	BytesForwardedTotal *prometheus.CounterVec
	EventsPublishedTotal *prometheus.CounterVec
	EventsDroppedTotal  prometheus.Counter
}

// New creates a private registry and registers every sql-tap-proxy
// instrument against it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,

		SessionsOpenedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sql_tap",
			Name:      "sessions_opened_total",
			Help:      "Total number of proxied sessions accepted.",
		}),
		SessionsClosedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sql_tap",
			Name:      "sessions_closed_total",
			Help:      "Total number of proxied sessions fully torn down.",
		}),
		BytesForwardedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "sql_tap",
			Name:      "bytes_forwarded_total",
			Help:      "Total bytes forwarded between client and upstream.",
		}, []string{"direction"}), // direction=upstream|downstream
		EventsPublishedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "sql_tap",
			Name:      "events_published_total",
			Help:      "Total captured events published to subscribers.",
		}, []string{"op"}),
		EventsDroppedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sql_tap",
			Name:      "events_dropped_total",
			Help:      "Total events dropped because a subscriber's channel was full.",
		}),
	}
}

// Handler serves an admin HTTP mux exposing /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
