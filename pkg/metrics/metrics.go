package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink names used as the label of ingestion counters.
const (
	SinkFeed  = "feed"
	SinkStats = "stats"
)

// Collectors groups the prometheus instruments exported by the service. Each
// instance owns its registry so tests can build as many as they need.
type Collectors struct {
	registry         *prometheus.Registry
	readingsIngested *prometheus.CounterVec
	ingestFailures   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
}

// New registers the service collectors on a fresh registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "redisolar",
			Name:      "readings_ingested_total",
			Help:      "Meter readings successfully written, per sink.",
		}, []string{"sink"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "redisolar",
			Name:      "ingest_failures_total",
			Help:      "Meter readings that failed to be written, per sink.",
		}, []string{"sink"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "redisolar",
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "redisolar",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.readingsIngested,
		c.ingestFailures,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

// ObserveIngest records the outcome of writing one reading to a sink.
func (c *Collectors) ObserveIngest(sink string, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ingestFailures.WithLabelValues(sink).Inc()
		return
	}
	c.readingsIngested.WithLabelValues(sink).Inc()
}

// ObserveRequest records a served HTTP request.
func (c *Collectors) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
