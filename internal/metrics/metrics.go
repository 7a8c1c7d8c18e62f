// Package metrics exposes Prometheus collectors for the dashboard client and
// the development API.
//
// Metrics collected:
//   - restodash_fetches_total: remote reads by result
//   - restodash_fetches_in_flight: remote reads waiting for the API
//   - restodash_mutations_total: settled submits by result
//   - restodash_mutations_in_flight: submits in the optimistic-applied state
//   - restodash_remote_write_duration_seconds: remote write latency
//   - restodash_api_requests_total: requests served by the development API
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/pders01/restodash/internal/mutation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Config configures the collectors
type Config struct {
	// Namespace is the metrics namespace (default: "restodash").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for remote write duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use. WriteText reads it back
	// when it is also a Gatherer, as *prometheus.Registry is.
	// Default: a new private registry
	Registry prometheus.Registerer
}

// Option configures the collectors
type Option func(*Config)

// WithNamespace sets the metrics namespace
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Collector implements cache.FetchObserver and mutation.Observer
type Collector struct {
	fetches         *prometheus.CounterVec
	fetchesInFlight prometheus.Gauge
	mutations       *prometheus.CounterVec
	inFlight        prometheus.Gauge
	writeDuration   prometheus.Histogram
	apiRequests     *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// New registers the collectors
func New(opts ...Option) *Collector {
	config := Config{
		Namespace: "restodash",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)
	gatherer, _ := config.Registry.(prometheus.Gatherer)

	return &Collector{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "fetches_total",
			Help:        "Total number of remote reads by result",
			ConstLabels: config.ConstLabels,
		}, []string{"key", "result"}),

		fetchesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "fetches_in_flight",
			Help:        "Number of remote reads waiting for the API",
			ConstLabels: config.ConstLabels,
		}),

		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "mutations_total",
			Help:        "Total number of settled optimistic mutations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"key", "result"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "mutations_in_flight",
			Help:        "Number of optimistic mutations waiting for the remote write",
			ConstLabels: config.ConstLabels,
		}),

		writeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "remote_write_duration_seconds",
			Help:        "Remote write duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "api_requests_total",
			Help:        "Total number of requests served by the development API",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		gatherer: gatherer,
	}
}

func (c *Collector) FetchStarted(key string) {
	c.fetchesInFlight.Inc()
}

func (c *Collector) FetchFinished(key string, err error) {
	c.fetchesInFlight.Dec()
	c.fetches.WithLabelValues(key, result(err == nil)).Inc()
}

func (c *Collector) MutationStarted(key string) {
	c.inFlight.Inc()
}

func (c *Collector) MutationSettled(key string, state mutation.State, elapsed time.Duration) {
	c.inFlight.Dec()
	c.writeDuration.Observe(elapsed.Seconds())
	c.mutations.WithLabelValues(key, result(state == mutation.StateSettledOK)).Inc()
}

// APIRequest counts a request served by the development API
func (c *Collector) APIRequest(route string, status int) {
	c.apiRequests.WithLabelValues(route, statusClass(status)).Inc()
}

// WriteText writes every metric of the registry in the Prometheus text
// format
func (c *Collector) WriteText(w io.Writer) error {
	if c.gatherer == nil {
		return fmt.Errorf("metrics registry cannot be gathered")
	}

	families, err := c.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
