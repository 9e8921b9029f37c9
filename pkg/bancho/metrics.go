package bancho

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's Prometheus instruments.
type metrics struct {
	loginsTotal     *prometheus.CounterVec
	packetsTotal    *prometheus.CounterVec
	packetErrors    *prometheus.CounterVec
	requestDuration prometheus.Histogram
	onlinePlayers   prometheus.Gauge
	activeMatches   prometheus.Gauge
	queuedBytes     prometheus.Counter
	evictionsTotal  prometheus.Counter
}

var (
	globalMetrics     *metrics
	globalMetricsOnce sync.Once
)

func initMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bancho",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"status"}),

		packetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bancho",
			Name:      "packets_total",
			Help:      "Client packets processed by opcode.",
		}, []string{"opcode"}),

		packetErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bancho",
			Name:      "packet_errors_total",
			Help:      "Packets whose handler returned an error, by opcode.",
		}, []string{"opcode"}),

		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bancho",
			Name:      "request_duration_seconds",
			Help:      "Packet batch processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		onlinePlayers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bancho",
			Name:      "online_players",
			Help:      "Players currently online.",
		}),

		activeMatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bancho",
			Name:      "active_matches",
			Help:      "Multiplayer matches currently alive.",
		}),

		queuedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bancho",
			Name:      "queued_bytes_total",
			Help:      "Bytes enqueued to player outbound queues.",
		}),

		evictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bancho",
			Name:      "session_evictions_total",
			Help:      "Sessions evicted by the liveness sweep or re-login.",
		}),
	}
}

// serverMetrics returns the process-wide metrics, registering them on
// first use.
func serverMetrics() *metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = initMetrics(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}
