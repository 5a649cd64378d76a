package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors.
	Registry = prometheus.NewRegistry()

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moneytransfer",
			Subsystem: "wire",
			Name:      "requests_total",
			Help:      "Total number of requests dispatched.",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moneytransfer",
			Subsystem: "wire",
			Name:      "request_duration_seconds",
			Help:      "Time spent dispatching a request.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moneytransfer",
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Transfers by outcome.",
		},
		[]string{"outcome"},
	)

	connections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moneytransfer",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Accepted connections by how they ended.",
		},
		[]string{"result"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "moneytransfer",
			Subsystem: "server",
			Name:      "queue_depth",
			Help:      "Connections accepted but not yet picked up by a worker.",
		},
	)

	busyWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "moneytransfer",
			Subsystem: "server",
			Name:      "busy_workers",
			Help:      "Workers currently handling a connection.",
		},
	)
)

func init() {
	Registry.MustRegister(
		requests,
		requestDuration,
		transfers,
		connections,
		queueDepth,
		busyWorkers,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordTransfer(outcome string) {
	transfers.WithLabelValues(outcome).Inc()
}

func RecordConnection(result string) {
	connections.WithLabelValues(result).Inc()
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

func WorkerBusy() {
	busyWorkers.Inc()
}

func WorkerIdle() {
	busyWorkers.Dec()
}
