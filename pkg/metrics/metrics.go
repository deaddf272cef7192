package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StepsByStatus counts Step Records currently in each StepStatus.
	StepsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_steps_total",
			Help: "Number of step records by status",
		},
		[]string{"status"},
	)

	// StepsAdmittedTotal counts steps written by the Pipeline Admitter.
	StepsAdmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_steps_admitted_total",
			Help: "Total number of steps admitted, by starting status",
		},
		[]string{"status"},
	)

	// StepsDispatched counts steps returned by get-steps across all calls.
	StepsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_steps_dispatched_total",
			Help: "Total number of steps dispatched to workers via get-steps",
		},
	)

	// SchedulingLatency times a single SelectReady call.
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_scheduling_latency_seconds",
			Help:    "Time taken to select ready steps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TagUsageGauge tracks current in-flight usage per rate-limited tag.
	TagUsageGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_tag_usage",
			Help: "Current usage count per rate-limited tag",
		},
		[]string{"tag"},
	)

	// BlobGCSweepsTotal counts blob-GC sweeps that deleted step-data,
	// versus sweeps that found the component not yet fully terminal.
	BlobGCSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_blob_gc_sweeps_total",
			Help: "Total number of blob-GC sweeps, by outcome",
		},
		[]string{"outcome"},
	)

	// StatusTransitionsTotal counts DAG state engine transitions applied.
	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_status_transitions_total",
			Help: "Total number of status transitions applied, by new status",
		},
		[]string{"status"},
	)

	// ProtocolRequestsTotal counts wire protocol requests handled.
	ProtocolRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_protocol_requests_total",
			Help: "Total number of wire protocol requests handled, by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(StepsByStatus)
	prometheus.MustRegister(StepsAdmittedTotal)
	prometheus.MustRegister(StepsDispatched)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(TagUsageGauge)
	prometheus.MustRegister(BlobGCSweepsTotal)
	prometheus.MustRegister(StatusTransitionsTotal)
	prometheus.MustRegister(ProtocolRequestsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
