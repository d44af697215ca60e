// Package metrics defines Prometheus metrics for the melodex catalog engine.
//
// Metrics are registered via promauto at package initialization and cover:
//   - HTTP request counts, durations, and in-flight gauges
//   - Key-value store operation counts and durations
//   - Scanner runs, file counts, and durations
//   - Sweep pass durations and per-collection deletion counts
//
// Metrics are served on a dedicated port when METRICS_ENABLED is true.
package metrics
