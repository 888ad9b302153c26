// Package metrics collects and exposes Prometheus metrics for the node.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records engine and HTTP metrics against a Prometheus registry.
type Collector struct {
	operations      *prometheus.CounterVec
	arbitrationNoOp *prometheus.CounterVec
	promotions      prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector registers all node metrics with the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_operations_total",
			Help: "Engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		arbitrationNoOp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_arbitration_noop_total",
			Help: "Connection writes dropped by last-writer-wins arbitration.",
		}, []string{"kind"}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aura_group_promotions_total",
			Help: "Forming groups promoted to established.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aura_http_request_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.operations,
		c.arbitrationNoOp,
		c.promotions,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordOperation counts one engine operation with its outcome.
func (c *Collector) RecordOperation(op, outcome string) {
	c.operations.WithLabelValues(op, outcome).Inc()
}

// RecordArbitrationNoOp counts a stale pair write dropped by arbitration.
func (c *Collector) RecordArbitrationNoOp(kind string) {
	c.arbitrationNoOp.WithLabelValues(kind).Inc()
}

// RecordGroupPromotion counts a forming group flipping to established.
func (c *Collector) RecordGroupPromotion() {
	c.promotions.Inc()
}

// RecordHTTPRequest counts one served request and its latency.
func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
