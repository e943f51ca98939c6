// Package stats collects request and topology metrics, exposed both through
// Prometheus and as a cheap in-process snapshot for the status endpoint.
package stats

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v4"
)

// Collector records per-path-class request counts and proxy failures.
// Counters are lock-free; Prometheus collectors are registered once at
// construction.
type Collector struct {
	totalRequests atomic.Int64
	totalBytes    atomic.Int64
	requestsByKey *xsync.Map[string, *atomic.Int64]
	errorsByKind  *xsync.Map[string, *atomic.Int64]

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	proxyErrors     *prometheus.CounterVec
	activeUpstreams prometheus.Gauge
	epochGauge      prometheus.Gauge
}

// NewCollector builds a collector and registers its metrics with the given
// registerer, typically prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsByKey: xsync.NewMap[string, *atomic.Int64](),
		errorsByKind:  xsync.NewMap[string, *atomic.Int64](),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_requests_total",
			Help: "Requests handled by the bridge, by path class and status.",
		}, []string{"path_class", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_request_duration_seconds",
			Help:    "Request latency by path class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path_class"}),
		proxyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_proxy_errors_total",
			Help: "Proxy failures by kind.",
		}, []string{"kind"}),
		activeUpstreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_upstreams_active",
			Help: "Number of upstreams currently active.",
		}),
		epochGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_epoch",
			Help: "Current consolidated view epoch.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.requestsTotal, c.requestDuration, c.proxyErrors,
			c.activeUpstreams, c.epochGauge)
	}
	return c
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(pathClass string, status int, duration time.Duration, bytes int64) {
	c.totalRequests.Add(1)
	c.totalBytes.Add(bytes)

	key := pathClass + "|" + strconv.Itoa(status)
	counter, _ := c.requestsByKey.LoadOrStore(key, &atomic.Int64{})
	counter.Add(1)

	c.requestsTotal.WithLabelValues(pathClass, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(pathClass).Observe(duration.Seconds())
}

// RecordProxyError records one proxy failure by kind, e.g. "connect" or
// "rewrite".
func (c *Collector) RecordProxyError(kind string) {
	counter, _ := c.errorsByKind.LoadOrStore(kind, &atomic.Int64{})
	counter.Add(1)
	c.proxyErrors.WithLabelValues(kind).Inc()
}

// SetActiveUpstreams updates the active upstream gauge.
func (c *Collector) SetActiveUpstreams(n int) {
	c.activeUpstreams.Set(float64(n))
}

// SetEpoch updates the view epoch gauge.
func (c *Collector) SetEpoch(epoch int64) {
	c.epochGauge.Set(float64(epoch))
}

// Snapshot is a point-in-time copy of the counters for the status endpoint.
type Snapshot struct {
	TotalRequests int64            `json:"totalRequests"`
	TotalBytes    int64            `json:"totalBytes"`
	Requests      map[string]int64 `json:"requests"`
	ProxyErrors   map[string]int64 `json:"proxyErrors"`
}

// GetSnapshot copies the counters into a serialisable snapshot.
func (c *Collector) GetSnapshot() Snapshot {
	snap := Snapshot{
		TotalRequests: c.totalRequests.Load(),
		TotalBytes:    c.totalBytes.Load(),
		Requests:      make(map[string]int64),
		ProxyErrors:   make(map[string]int64),
	}

	c.requestsByKey.Range(func(key string, value *atomic.Int64) bool {
		snap.Requests[key] = value.Load()
		return true
	})
	c.errorsByKind.Range(func(kind string, value *atomic.Int64) bool {
		snap.ProxyErrors[kind] = value.Load()
		return true
	})
	return snap
}
