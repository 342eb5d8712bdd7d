// Package metrics exports plugin host activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
)

const outcomeOK = "ok"

// collectorConfig holds configuration for the Collector.
type collectorConfig struct {
	namespace string
	buckets   []float64
}

func defaultCollectorConfig() collectorConfig {
	return collectorConfig{
		namespace: "dlhost",
		buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs .. ~2.6s
	}
}

// Option configures the Collector.
type Option func(*collectorConfig)

// WithNamespace sets the metric name prefix (default: "dlhost").
func WithNamespace(ns string) Option {
	return func(c *collectorConfig) {
		c.namespace = ns
	}
}

// WithBuckets sets the exchange latency histogram buckets, in seconds.
func WithBuckets(b []float64) Option {
	return func(c *collectorConfig) {
		c.buckets = b
	}
}

// Collector implements ports.Recorder and prometheus.Collector.
type Collector struct {
	loads      *prometheus.CounterVec
	unloads    prometheus.Counter
	exchanges  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	generation prometheus.Gauge
	loaded     prometheus.Gauge
}

var (
	_ ports.Recorder       = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

// NewCollector creates an unregistered collector.
func NewCollector(opts ...Option) *Collector {
	cfg := defaultCollectorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Collector{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "loads_total",
			Help:      "Plugin load attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "unloads_total",
			Help:      "Plugin images released.",
		}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "exchanges_total",
			Help:      "Buffer exchanges by mode and outcome.",
		}, []string{"mode", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Time spent inside the plugin's exchange entry point.",
			Buckets:   cfg.buckets,
		}, []string{"mode"}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "generation",
			Help:      "Current load generation.",
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "plugin_loaded",
			Help:      "1 while a plugin is loaded.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.loads.Describe(ch)
	c.unloads.Describe(ch)
	c.exchanges.Describe(ch)
	c.latency.Describe(ch)
	c.generation.Describe(ch)
	c.loaded.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.loads.Collect(ch)
	c.unloads.Collect(ch)
	c.exchanges.Collect(ch)
	c.latency.Collect(ch)
	c.generation.Collect(ch)
	c.loaded.Collect(ch)
}

// RecordLoad implements ports.Recorder.
func (c *Collector) RecordLoad(backend string, generation uint64, err error) {
	c.loads.WithLabelValues(backend, outcome(err)).Inc()
	if err == nil {
		c.generation.Set(float64(generation))
		c.loaded.Set(1)
	}
}

// RecordUnload implements ports.Recorder.
func (c *Collector) RecordUnload(generation uint64) {
	c.unloads.Inc()
	c.generation.Set(float64(generation))
	c.loaded.Set(0)
}

// RecordExchange implements ports.Recorder.
func (c *Collector) RecordExchange(override bool, elapsed time.Duration, err error) {
	m := mode(override)
	c.exchanges.WithLabelValues(m, outcome(err)).Inc()
	if elapsed > 0 {
		c.latency.WithLabelValues(m).Observe(elapsed.Seconds())
	}
}

func mode(override bool) string {
	if override {
		return "override"
	}
	return "probe"
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return string(errors.KindOf(err))
}
