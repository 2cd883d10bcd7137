package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
)

// GatewayMetrics exposes counters/histograms for store round-trips.
type GatewayMetrics struct {
	operationsTotal *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	slotCollisions  prometheus.Counter
	analysesPushed  prometheus.Counter
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Total store operations by outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "gateway",
			Name:      "operation_latency_seconds",
			Help:      "Latency of store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		slotCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "gateway",
			Name:      "slot_collisions_total",
			Help:      "Appointment inserts rejected because the slot was taken",
		}),
		analysesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "gateway",
			Name:      "analyses_pushed_total",
			Help:      "Analyses delivered to realtime subscribers",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.latency, m.slotCollisions, m.analysesPushed)
	return m
}

func (m *GatewayMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(seconds)
}

func (m *GatewayMetrics) ObserveSlotCollision() {
	if m == nil {
		return
	}
	m.slotCollisions.Inc()
}

func (m *GatewayMetrics) ObserveAnalysisPushed() {
	if m == nil {
		return
	}
	m.analysesPushed.Inc()
}

// DashboardMetrics tracks connected dashboard streams.
type DashboardMetrics struct {
	clients   prometheus.Gauge
	broadcast *prometheus.CounterVec
}

func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	m := &DashboardMetrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "dashboard",
			Name:      "stream_clients",
			Help:      "Open dashboard websocket connections",
		}),
		broadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "dashboard",
			Name:      "broadcast_total",
			Help:      "Dashboard frames by delivery result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.clients, m.broadcast)
	return m
}

func (m *DashboardMetrics) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

func (m *DashboardMetrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.clients.Dec()
}

// ObserveBroadcast records one frame; dropped is true when a slow client's buffer was full.
func (m *DashboardMetrics) ObserveBroadcast(dropped bool) {
	if m == nil {
		return
	}
	result := "sent"
	if dropped {
		result = "dropped"
	}
	m.broadcast.WithLabelValues(result).Inc()
}
