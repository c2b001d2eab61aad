package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OpenStreams counts live viewer connections currently held open.
	OpenStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_open_streams",
		Help: "Open live-tracking SSE connections.",
	})

	// RelayEvents counts wire events emitted to viewers, by type.
	RelayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_relay_events_total",
			Help: "Relay events emitted to viewers.",
		},
		[]string{"type"},
	)

	// SeedRequests counts snapshot reads by outcome.
	SeedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_seed_requests_total",
			Help: "Snapshot seed requests.",
		},
		[]string{"outcome"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(OpenStreams, RelayEvents, SeedRequests)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
