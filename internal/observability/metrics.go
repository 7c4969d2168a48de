package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	BusEvents        *prometheus.CounterVec
	BusDropped       prometheus.Counter
	StateTransitions *prometheus.CounterVec
	SessionEvents    *prometheus.CounterVec
	BridgeRequests   *prometheus.CounterVec
	BridgeLatency    prometheus.Histogram
	SyncQueueDepth   prometheus.Gauge
	SyncFlushes      *prometheus.CounterVec
	SyncItemsSent    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open voice sessions (0 or 1).",
		}),
		BusEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Voice bus events by kind.",
		}, []string{"kind"}),
		BusDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_dropped_total",
			Help:      "Events dropped because the bus queue was saturated.",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_state_transitions_total",
			Help:      "Derived voice state transitions.",
		}, []string{"from", "to"}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		BridgeRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_requests_total",
			Help:      "Backend bridge responses by source and outcome.",
		}, []string{"source", "outcome"}),
		BridgeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_latency_ms",
			Help:      "Latency of transcript-to-response processing in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		SyncQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_depth",
			Help:      "Pending items in the outbound sync queue.",
		}),
		SyncFlushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_flushes_total",
			Help:      "Sync flush attempts by outcome.",
		}, []string{"outcome"}),
		SyncItemsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_sent_total",
			Help:      "Sync items acknowledged by the remote endpoint.",
		}),
	}
}

func (m *Metrics) ObserveBridgeLatency(d time.Duration) {
	m.BridgeLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
