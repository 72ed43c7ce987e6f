package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors on an isolated
// registry, so they never collide with a process-wide default registry.
// A nil *Metrics is valid and every method becomes a no-op, so callers
// that don't care about metrics never need to construct one.
type Metrics struct {
	Registry *prometheus.Registry

	ClientsConnected prometheus.Gauge
	LinksInUse       prometheus.Gauge
	PingsSentTotal   prometheus.Counter
	EvictionsTotal   prometheus.Counter
	OnionForwarded   prometheus.Counter
	OnionDropped     prometheus.Counter
	DecodeErrors     *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all collectors registered on
// a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toxrelay_clients_connected",
			Help: "Number of clients currently connected to the relay.",
		}),
		LinksInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toxrelay_links_in_use",
			Help: "Total occupied link slots across all connected clients.",
		}),
		PingsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toxrelay_pings_sent_total",
			Help: "Total keepalive PingRequest packets sent.",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toxrelay_evictions_total",
			Help: "Total clients evicted for a timed-out pong.",
		}),
		OnionForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toxrelay_onion_forwarded_total",
			Help: "Total OnionRequest packets forwarded to the UDP sink.",
		}),
		OnionDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toxrelay_onion_dropped_total",
			Help: "Total OnionRequest packets dropped: sink closed, rate limited, or other non-fatal forwarding failure.",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toxrelay_decode_errors_total",
			Help: "Total state-format decode errors, by section tag.",
		}, []string{"section"}),
	}

	reg.MustRegister(
		m.ClientsConnected,
		m.LinksInUse,
		m.PingsSentTotal,
		m.EvictionsTotal,
		m.OnionForwarded,
		m.OnionDropped,
		m.DecodeErrors,
	)
	return m
}

func (m *Metrics) setClientCount(n int) {
	if m == nil {
		return
	}
	m.ClientsConnected.Set(float64(n))
}

func (m *Metrics) setLinksInUse(n int) {
	if m == nil {
		return
	}
	m.LinksInUse.Set(float64(n))
}

func (m *Metrics) incPingsSent() {
	if m == nil {
		return
	}
	m.PingsSentTotal.Inc()
}

func (m *Metrics) incEvictions() {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
}

func (m *Metrics) incOnionForwarded() {
	if m == nil {
		return
	}
	m.OnionForwarded.Inc()
}

func (m *Metrics) incOnionDropped() {
	if m == nil {
		return
	}
	m.OnionDropped.Inc()
}

// IncDecodeError records a state-format decode failure for section,
// identified by its tag name (e.g. "FriendState", "DhtState"). Exported
// for use by the daemonstate bridge outside this package.
func (m *Metrics) IncDecodeError(section string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(section).Inc()
}

// Handler returns the Prometheus scrape handler for this registry. Safe
// to call on a nil Metrics; returns a handler that always 404s.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
