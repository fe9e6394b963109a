package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	CommandsTotal      *prometheus.CounterVec
	BackendRequests    *prometheus.CounterVec
	BackendDuration    *prometheus.HistogramVec
	ActiveConnections  prometheus.Gauge
	FramingErrorsTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sip2_commands_total",
			Help: "Wire commands processed, by command code and outcome",
		}, []string{"command", "outcome"}),
		BackendRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sip2_backend_requests_total",
			Help: "Backend calls issued, by method and outcome",
		}, []string{"method", "outcome"}),
		BackendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sip2_backend_request_duration_seconds",
			Help:    "Latency of backend calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sip2_active_connections",
			Help: "Currently connected terminals",
		}),
		FramingErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sip2_framing_errors_total",
			Help: "Inbound frames rejected by the codec",
		}),
	}
}

// IncCommand records one processed wire command.
func (m *Metrics) IncCommand(command string, ok bool) {
	m.CommandsTotal.WithLabelValues(command, outcome(ok)).Inc()
}

// ObserveBackendRequest records one backend call. Paths carry query strings
// so they are kept out of the label set.
func (m *Metrics) ObserveBackendRequest(method, path string, d time.Duration, ok bool) {
	_ = path
	m.BackendRequests.WithLabelValues(method, outcome(ok)).Inc()
	m.BackendDuration.WithLabelValues(method).Observe(d.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
