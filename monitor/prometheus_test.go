package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(WithRegisterer(reg))
	require.NoError(t, err)

	c.RecordPublish("placeOrder", "Orders.Commands", 5*time.Millisecond, true)
	c.RecordPublish("placeOrder", "Orders.Commands", 5*time.Millisecond, true)
	c.RecordPublish("placeOrder", "Orders.Commands", time.Second, false)
	c.RecordReceive("orderPlaced", "Orders.Events")
	c.RecordError("source", "deserialize")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.published.WithLabelValues("placeOrder", "Orders.Commands", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.published.WithLabelValues("placeOrder", "Orders.Commands", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.received.WithLabelValues("orderPlaced", "Orders.Events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("source", "deserialize")))

	// failed publishes are not observed by the latency histogram
	assert.Equal(t, 1, testutil.CollectAndCount(c.publishDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"svcbus_messages_published_total",
		"svcbus_messages_received_total",
		"svcbus_errors_total",
		"svcbus_publish_duration_seconds",
	}, names)
}

func TestPrometheusCollector_Namespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(WithRegisterer(reg), WithNamespace("orders"), WithBuckets([]float64{0.1, 1}))
	require.NoError(t, err)
	c.RecordReceive("orderPlaced", "Orders.Events")

	n, err := testutil.GatherAndCount(reg, "orders_messages_received_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(WithRegisterer(reg))
	require.NoError(t, err)

	_, err = NewPrometheusCollector(WithRegisterer(reg))
	assert.Error(t, err)
}
