// Package metrics provides Prometheus-compatible instrumentation for
// the checkpoint, verification, and workflow subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes counters and gauges under the "forge" namespace:
//
//   - checkpoints_created_total (counter, labels: session_id): checkpoint
//     creations, incremented by RecordCheckpointCreated.
//   - checkpoints_active (gauge): total checkpoints currently retained
//     across all sessions, set by SetActiveCheckpoints.
//   - cascade_size (histogram, labels: cascade_kind): node count touched by
//     an impact-analysis cascade preview/confirm.
//   - verification_checks_total (counter, labels: result): verification
//     runner outcomes (passed/failed/timed_out/panicked).
//   - workflow_tasks_total (counter, labels: status): workflow task
//     terminal outcomes (success/failed/cancelled/timeout).
//
// All metrics are registered against the supplied Registerer so callers
// can isolate them in tests with prometheus.NewRegistry() instead of the
// global DefaultRegisterer.
type Metrics struct {
	checkpointsCreated *prometheus.CounterVec
	checkpointsActive  prometheus.Gauge
	cascadeSize        *prometheus.HistogramVec
	verificationChecks *prometheus.CounterVec
	workflowTasks      *prometheus.CounterVec
}

// New registers and returns a Metrics collector against registry (use
// prometheus.DefaultRegisterer for the global registry).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		checkpointsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "checkpoints_created_total",
			Help:      "Cumulative count of checkpoints created",
		}, []string{"session_id"}),

		checkpointsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "forge",
			Name:      "checkpoints_active",
			Help:      "Total checkpoints currently retained across all sessions",
		}),

		cascadeSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forge",
			Name:      "cascade_size",
			Help:      "Number of hypotheses touched by an impact-analysis cascade",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"cascade_kind"}), // cascade_kind: preview, confirm, revert

		verificationChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "verification_checks_total",
			Help:      "Verification runner outcomes",
		}, []string{"result"}), // result: passed, failed, timed_out, panicked

		workflowTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "workflow_tasks_total",
			Help:      "Workflow task terminal outcomes",
		}, []string{"status"}), // status: success, failed, cancelled, timeout
	}
}

// RecordCheckpointCreated increments the per-session checkpoint counter.
func (m *Metrics) RecordCheckpointCreated(sessionID string) {
	m.checkpointsCreated.WithLabelValues(sessionID).Inc()
}

// SetActiveCheckpoints sets the current cross-session checkpoint total.
func (m *Metrics) SetActiveCheckpoints(total int) {
	m.checkpointsActive.Set(float64(total))
}

// RecordCascadeSize observes a cascade's touched-node count for kind
// ("preview", "confirm", "revert").
func (m *Metrics) RecordCascadeSize(kind string, size int) {
	m.cascadeSize.WithLabelValues(kind).Observe(float64(size))
}

// RecordVerificationResult increments the counter for a check's
// classification ("passed", "failed", "timed_out", "panicked").
func (m *Metrics) RecordVerificationResult(result string) {
	m.verificationChecks.WithLabelValues(result).Inc()
}

// RecordWorkflowTask increments the counter for a task's terminal
// status ("success", "failed", "cancelled", "timeout").
func (m *Metrics) RecordWorkflowTask(status string) {
	m.workflowTasks.WithLabelValues(status).Inc()
}
