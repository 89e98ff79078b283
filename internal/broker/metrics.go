package broker

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the broker's Prometheus instruments. A nil *Metrics is
// valid and every method becomes a no-op, so tests that don't care about
// metrics can construct a Broker with New(nil).
type Metrics struct {
	connectedClients         prometheus.Gauge
	topicsKnown              prometheus.GaugeFunc
	framesBroadcast          prometheus.Counter
	framesDropped            prometheus.Counter
	connectionsTerminated    prometheus.Counter
}

// NewMetrics registers the broker's instruments on reg and returns a
// Metrics handle. topicsKnownFn is polled lazily whenever /metrics is
// scraped, so it should be cheap (it just reads the topic map length).
func NewMetrics(reg prometheus.Registerer, topicsKnownFn func() float64) *Metrics {
	m := &Metrics{
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracepipe_broker_connected_clients",
			Help: "Number of currently connected WebSocket clients.",
		}),
		framesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracepipe_broker_frames_broadcast_total",
			Help: "Total frames successfully delivered to a client's send queue.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracepipe_broker_frames_dropped_total",
			Help: "Total frames dropped because a client's send queue was full.",
		}),
		connectionsTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracepipe_broker_connections_terminated_total",
			Help: "Total connections terminated for being a slow consumer.",
		}),
	}
	m.topicsKnown = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tracepipe_broker_topics_known",
		Help: "Number of topics currently known to the broker.",
	}, topicsKnownFn)

	reg.MustRegister(m.connectedClients, m.topicsKnown, m.framesBroadcast, m.framesDropped, m.connectionsTerminated)
	return m
}

func (m *Metrics) setConnectedClients(n int) {
	if m == nil {
		return
	}
	m.connectedClients.Set(float64(n))
}

func (m *Metrics) incFramesBroadcast() {
	if m == nil {
		return
	}
	m.framesBroadcast.Inc()
}

func (m *Metrics) incFramesDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Metrics) incConnectionsTerminated() {
	if m == nil {
		return
	}
	m.connectionsTerminated.Inc()
}
