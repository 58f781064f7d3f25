package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rom8726/resflow"
)

var _ MetricsCollector = (*PrometheusCollector)(nil)

type PrometheusCollector struct {
	workflowStarted   *prometheus.CounterVec
	workflowCompleted *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec

	stepSubmitted *prometheus.CounterVec
	stepFailed    *prometheus.CounterVec
	stepsReset    *prometheus.CounterVec
	stepResetSize *prometheus.HistogramVec

	locks *prometheus.CounterVec
}

func NewPrometheusCollector(registry prometheus.Registerer) *PrometheusCollector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	return &PrometheusCollector{
		workflowStarted: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resflow_workflow_started_total",
				Help: "Total number of workflows started",
			},
			[]string{"workflow_type"},
		),
		workflowCompleted: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resflow_workflow_completed_total",
				Help: "Total number of workflows that reached a complete status",
			},
			[]string{"workflow_type"},
		),
		workflowDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "resflow_workflow_duration_seconds",
				Help: "Time from workflow creation to completion in seconds",
				// one minute up to roughly eleven days
				Buckets: prometheus.ExponentialBuckets(60, 4, 8),
			},
			[]string{"workflow_type"},
		),
		stepSubmitted: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resflow_step_submitted_total",
				Help: "Total number of accepted step submissions",
			},
			[]string{"workflow_type", "step_name", "step_type", "status"},
		),
		stepFailed: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resflow_step_validation_failed_total",
				Help: "Total number of step submissions rejected by validation",
			},
			[]string{"workflow_type", "step_name", "step_type"},
		),
		stepsReset: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resflow_steps_reset_total",
				Help: "Total number of steps reset",
			},
			[]string{"workflow_type"},
		),
		stepResetSize: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resflow_step_reset_size",
				Help:    "Number of steps reset by one operation",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"workflow_type"},
		),
		locks: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resflow_workflow_lock_changes_total",
				Help: "Total number of workflow user lock changes",
			},
			[]string{"workflow_type", "action", "scope"},
		),
	}
}

func (c *PrometheusCollector) RecordWorkflowStarted(workflowType string) {
	c.workflowStarted.WithLabelValues(workflowType).Inc()
}

func (c *PrometheusCollector) RecordWorkflowCompleted(workflowType string, duration time.Duration) {
	c.workflowCompleted.WithLabelValues(workflowType).Inc()
	c.workflowDuration.WithLabelValues(workflowType).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordStepSubmitted(
	workflowType string,
	stepName string,
	stepType resflow.StepType,
	status resflow.Status,
) {
	c.stepSubmitted.WithLabelValues(workflowType, stepName, string(stepType), string(status)).Inc()
}

func (c *PrometheusCollector) RecordStepFailed(workflowType string, stepName string, stepType resflow.StepType) {
	c.stepFailed.WithLabelValues(workflowType, stepName, string(stepType)).Inc()
}

func (c *PrometheusCollector) RecordStepsReset(workflowType string, count int) {
	c.stepsReset.WithLabelValues(workflowType).Add(float64(count))
	c.stepResetSize.WithLabelValues(workflowType).Observe(float64(count))
}

func (c *PrometheusCollector) RecordLock(workflowType string, action LockAction, scope LockScope) {
	c.locks.WithLabelValues(workflowType, string(action), string(scope)).Inc()
}

