// Package monitor provides messaging.MetricsCollector implementations: an
// in-memory collector that keeps summaries for inspection and tests, and a
// Prometheus collector for export.
package monitor
