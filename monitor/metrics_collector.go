package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/glimte/svcbus-go/messaging"
)

const maxSamples = 100

// SimpleMetricsCollector keeps publish and receive statistics in memory
type SimpleMetricsCollector struct {
	mu sync.RWMutex

	// published and received counters by type name
	published map[string]int64
	failed    map[string]int64
	received  map[string]int64

	// error counters by component and error type
	errorCounters map[string]map[string]int64

	// publish latency by type name
	publishTimes map[string]*TimeStats
}

// TimeStats tracks timing statistics
type TimeStats struct {
	Count   int64
	TotalMs int64
	MinMs   int64
	MaxMs   int64
	samples []int64
}

// NewSimpleMetricsCollector creates an empty collector
func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	c := &SimpleMetricsCollector{}
	c.Reset()
	return c
}

// RecordPublish implements messaging.MetricsCollector
func (c *SimpleMetricsCollector) RecordPublish(typeName string, destination string, duration time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !success {
		c.failed[typeName]++
		return
	}
	c.published[typeName]++

	durationMs := duration.Milliseconds()
	stats, exists := c.publishTimes[typeName]
	if !exists {
		stats = &TimeStats{MinMs: durationMs, MaxMs: durationMs, samples: make([]int64, 0, maxSamples)}
		c.publishTimes[typeName] = stats
	}

	stats.Count++
	stats.TotalMs += durationMs
	stats.MinMs = min(stats.MinMs, durationMs)
	stats.MaxMs = max(stats.MaxMs, durationMs)

	if len(stats.samples) >= maxSamples {
		stats.samples = stats.samples[1:]
	}
	stats.samples = append(stats.samples, durationMs)
}

// RecordReceive implements messaging.MetricsCollector
func (c *SimpleMetricsCollector) RecordReceive(typeName string, destination string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received[typeName]++
}

// RecordError implements messaging.MetricsCollector
func (c *SimpleMetricsCollector) RecordError(component string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorCounters[component] == nil {
		c.errorCounters[component] = make(map[string]int64)
	}
	c.errorCounters[component][errorType]++
}

// MetricsSummary is a snapshot of the collected metrics
type MetricsSummary struct {
	Published    map[string]int64            `json:"published"`
	Failed       map[string]int64            `json:"failed"`
	Received     map[string]int64            `json:"received"`
	ErrorCounts  map[string]map[string]int64 `json:"error_counts"`
	PublishStats map[string]ProcessingStats  `json:"publish_stats"`
}

// ProcessingStats summarises the latency of one message type
type ProcessingStats struct {
	Count int64 `json:"count"`
	AvgMs int64 `json:"avg_ms"`
	MinMs int64 `json:"min_ms"`
	MaxMs int64 `json:"max_ms"`
	P50Ms int64 `json:"p50_ms"`
	P95Ms int64 `json:"p95_ms"`
	P99Ms int64 `json:"p99_ms"`
}

// GetMetricsSummary returns a copy of everything collected so far
func (c *SimpleMetricsCollector) GetMetricsSummary() MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := MetricsSummary{
		Published:    copyCounts(c.published),
		Failed:       copyCounts(c.failed),
		Received:     copyCounts(c.received),
		ErrorCounts:  make(map[string]map[string]int64, len(c.errorCounters)),
		PublishStats: make(map[string]ProcessingStats, len(c.publishTimes)),
	}

	for component, errs := range c.errorCounters {
		summary.ErrorCounts[component] = copyCounts(errs)
	}

	for typeName, stats := range c.publishTimes {
		procStats := ProcessingStats{Count: stats.Count, MinMs: stats.MinMs, MaxMs: stats.MaxMs}
		if stats.Count > 0 {
			procStats.AvgMs = stats.TotalMs / stats.Count
		}
		if len(stats.samples) > 0 {
			sorted := append([]int64(nil), stats.samples...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			procStats.P50Ms = percentile(sorted, 0.50)
			procStats.P95Ms = percentile(sorted, 0.95)
			procStats.P99Ms = percentile(sorted, 0.99)
		}
		summary.PublishStats[typeName] = procStats
	}

	return summary
}

// Reset clears all collected metrics
func (c *SimpleMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = make(map[string]int64)
	c.failed = make(map[string]int64)
	c.received = make(map[string]int64)
	c.errorCounters = make(map[string]map[string]int64)
	c.publishTimes = make(map[string]*TimeStats)
}

// percentile picks the nearest-rank value from sorted samples
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

var _ messaging.MetricsCollector = (*SimpleMetricsCollector)(nil)
