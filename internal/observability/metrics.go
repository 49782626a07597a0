package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for snapshot serving.
type Metrics struct {
	snapshotRequests *prometheus.CounterVec
	snapshotBuild    *prometheus.HistogramVec
	agents           *prometheus.GaugeVec
	wsClients        prometheus.Gauge
}

// MustNewMetrics creates the collectors and registers them with reg.
// Registering twice against the same registry reuses the existing
// collectors; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		snapshotRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tracker",
				Name:      "snapshot_requests_total",
				Help:      "Snapshots built, by kind and provenance.",
			},
			[]string{"kind", "source"},
		),
		snapshotBuild: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tracker",
				Name:      "snapshot_build_seconds",
				Help:      "Time spent building a snapshot.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		agents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tracker",
				Name:      "agents",
				Help:      "Agents in the latest activity snapshot, by status.",
			},
			[]string{"status"},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tracker",
				Name:      "ws_clients",
				Help:      "Connected websocket clients.",
			},
		),
	}

	m.snapshotRequests = register(reg, m.snapshotRequests)
	m.snapshotBuild = register(reg, m.snapshotBuild)
	m.agents = register(reg, m.agents)
	m.wsClients = register(reg, m.wsClients)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveSnapshot records one built snapshot.
func (m *Metrics) ObserveSnapshot(kind, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.snapshotRequests.WithLabelValues(kind, source).Inc()
	m.snapshotBuild.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetAgentCounts replaces the per-status agent gauge.
func (m *Metrics) SetAgentCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.agents.Reset()
	for status, n := range counts {
		m.agents.WithLabelValues(status).Set(float64(n))
	}
}

// WSClientConnected and WSClientDisconnected track the websocket gauge.
func (m *Metrics) WSClientConnected() {
	if m != nil {
		m.wsClients.Inc()
	}
}

func (m *Metrics) WSClientDisconnected() {
	if m != nil {
		m.wsClients.Dec()
	}
}
