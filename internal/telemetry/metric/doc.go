// Package metric provides Prometheus metrics for crmdesk.
//
// SessionMetrics observes the session store and the backend client:
//
//   - operation counters and latency histograms by operation and outcome
//   - an authenticated gauge following every published snapshot
//   - backend request counters by endpoint and status
//
// Metrics are exposed at /metrics in Prometheus text format when the
// shell runs with metrics.address set.
package metric
