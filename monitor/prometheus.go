package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glimte/svcbus-go/messaging"
)

const defaultNamespace = "svcbus"

// PrometheusCollector exports messaging metrics to Prometheus
type PrometheusCollector struct {
	published       *prometheus.CounterVec
	received        *prometheus.CounterVec
	errors          *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
}

// PrometheusOption configures a PrometheusCollector
type PrometheusOption func(*prometheusOptions)

type prometheusOptions struct {
	namespace  string
	registerer prometheus.Registerer
	buckets    []float64
}

// WithNamespace sets the metric namespace, "svcbus" by default
func WithNamespace(namespace string) PrometheusOption {
	return func(o *prometheusOptions) {
		o.namespace = namespace
	}
}

// WithRegisterer sets the registry metrics are registered with,
// prometheus.DefaultRegisterer by default
func WithRegisterer(registerer prometheus.Registerer) PrometheusOption {
	return func(o *prometheusOptions) {
		o.registerer = registerer
	}
}

// WithBuckets sets the publish latency histogram buckets in seconds
func WithBuckets(buckets []float64) PrometheusOption {
	return func(o *prometheusOptions) {
		o.buckets = buckets
	}
}

// NewPrometheusCollector creates and registers the collectors
func NewPrometheusCollector(opts ...PrometheusOption) (*PrometheusCollector, error) {
	o := prometheusOptions{
		namespace:  defaultNamespace,
		registerer: prometheus.DefaultRegisterer,
		buckets:    prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &PrometheusCollector{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "messages_published_total",
			Help:      "Publish attempts by message type, destination and outcome.",
		}, []string{"type", "destination", "outcome"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "messages_received_total",
			Help:      "Messages delivered to handlers by message type and destination.",
		}, []string{"type", "destination"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "errors_total",
			Help:      "Errors by component and error type.",
		}, []string{"component", "error_type"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "publish_duration_seconds",
			Help:      "Latency of successful publishes.",
			Buckets:   o.buckets,
		}, []string{"type", "destination"}),
	}

	for _, collector := range []prometheus.Collector{c.published, c.received, c.errors, c.publishDuration} {
		if err := o.registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordPublish implements messaging.MetricsCollector
func (c *PrometheusCollector) RecordPublish(typeName string, destination string, duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.published.WithLabelValues(typeName, destination, outcome).Inc()
	if success {
		c.publishDuration.WithLabelValues(typeName, destination).Observe(duration.Seconds())
	}
}

// RecordReceive implements messaging.MetricsCollector
func (c *PrometheusCollector) RecordReceive(typeName string, destination string) {
	c.received.WithLabelValues(typeName, destination).Inc()
}

// RecordError implements messaging.MetricsCollector
func (c *PrometheusCollector) RecordError(component string, errorType string) {
	c.errors.WithLabelValues(component, errorType).Inc()
}

var _ messaging.MetricsCollector = (*PrometheusCollector)(nil)
