package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts what crosses the engine boundaries.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	received       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	sent           *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	tasks          prometheus.Counter
	workerRestarts *prometheus.CounterVec
	connected      prometheus.Gauge
	queueDepth     *prometheus.GaugeVec
}

func NewMetrics(labels prometheus.Labels) *Metrics {
	return &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chat_sync_events_received_total",
			Help:        "Inbound events routed to a manager",
			ConstLabels: labels,
		}, []string{"event"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chat_sync_events_rejected_total",
			Help:        "Inbound events rejected at decode time",
			ConstLabels: labels,
		}, []string{"event"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chat_sync_intents_sent_total",
			Help:        "Outbound intents written to the transport",
			ConstLabels: labels,
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chat_sync_intents_dropped_total",
			Help:        "Outbound intents dropped while the transport was unavailable",
			ConstLabels: labels,
		}, []string{"event"}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "chat_sync_engine_tasks_total",
			Help:        "Tasks executed by the engine loop, scheduled expiries included",
			ConstLabels: labels,
		}),
		workerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chat_sync_worker_restarts_total",
			Help:        "Workers restarted by the supervisor after a panic",
			ConstLabels: labels,
		}, []string{"worker"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "chat_sync_connected",
			Help:        "1 while the transport is connected",
			ConstLabels: labels,
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "chat_sync_queue_depth",
			Help:        "Sampled number of items waiting in a bounded queue",
			ConstLabels: labels,
		}, []string{"queue"}),
	}
}

func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.received, m.rejected, m.sent, m.dropped, m.tasks, m.workerRestarts, m.connected, m.queueDepth)
}

// Handler serves the registry in the Prometheus text format.
func Handler(r *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{
		Registry:          r,
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) Received(event string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(event).Inc()
}

func (m *Metrics) Rejected(event string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(event).Inc()
}

func (m *Metrics) Sent(event string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(event).Inc()
}

func (m *Metrics) Dropped(event string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(event).Inc()
}

func (m *Metrics) TaskRun() {
	if m == nil {
		return
	}
	m.tasks.Inc()
}

func (m *Metrics) WorkerRestarted(worker string) {
	if m == nil {
		return
	}
	m.workerRestarts.WithLabelValues(worker).Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) QueueDepth(queue string, length int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(length))
}
