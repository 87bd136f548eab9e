package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codecollab",
		Name:      "ws_connections",
		Help:      "Live websocket connections.",
	})
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codecollab",
		Name:      "rooms",
		Help:      "Rooms with at least one joined member.",
	})
	FramesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codecollab",
		Name:      "frames_relayed_total",
		Help:      "Frames queued to connections, by action.",
	}, []string{"action"})
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codecollab",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped because the connection queue was full or closed.",
	})
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codecollab",
		Name:      "upstream_requests_total",
		Help:      "Proxy calls to external services, by service and outcome.",
	}, []string{"service", "outcome"})
	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codecollab",
		Name:      "upstream_duration_seconds",
		Help:      "Latency of proxy calls to external services.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"service"})
)

// ObserveUpstream records one proxy call
func ObserveUpstream(service, outcome string, d time.Duration) {
	upstreamRequests.WithLabelValues(service, outcome).Inc()
	upstreamDuration.WithLabelValues(service).Observe(d.Seconds())
}

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
