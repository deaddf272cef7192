/*
Package metrics registers Prometheus metrics for step status counts,
scheduling latency, tag-usage levels, blob-GC sweeps, and wire protocol
request outcomes, plus a /health, /ready, /live HTTP handler set and a
Timer helper for histogram observation.

Collector polls the Step Record Store every 15 seconds and republishes
per-status counts as gauges; everything else is updated inline by the
component that produces the measurement (pkg/dag, pkg/scheduler,
pkg/protocol, pkg/admitter).
*/
package metrics
