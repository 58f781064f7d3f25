package metrics

import (
	"context"
	"time"

	"github.com/rom8726/resflow"
)

var _ resflow.Plugin = (*MetricsPlugin)(nil)

type MetricsPlugin struct {
	resflow.BasePlugin

	collector MetricsCollector
	now       func() time.Time
}

func New(collector MetricsCollector) *MetricsPlugin {
	return &MetricsPlugin{
		BasePlugin: resflow.NewBasePlugin("metrics", resflow.PriorityHigh),
		collector:  collector,
		now:        time.Now,
	}
}

func (p *MetricsPlugin) OnWorkflowStart(_ context.Context, workflow *resflow.Workflow) error {
	if p.collector != nil {
		p.collector.RecordWorkflowStarted(workflow.Type)
	}

	return nil
}

// OnWorkflowComplete records the time from creation to completion.
func (p *MetricsPlugin) OnWorkflowComplete(_ context.Context, workflow *resflow.Workflow) error {
	if p.collector == nil {
		return nil
	}

	duration := p.now().Sub(workflow.CreatedAt)
	if duration < 0 {
		duration = 0
	}
	p.collector.RecordWorkflowCompleted(workflow.Type, duration)

	return nil
}

func (p *MetricsPlugin) OnStepSubmitted(
	_ context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	_ resflow.Actor,
) error {
	if p.collector != nil {
		p.collector.RecordStepSubmitted(workflow.Type, step.Name, step.Type, step.RootStatus())
	}

	return nil
}

func (p *MetricsPlugin) OnStepFailed(
	_ context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	_ error,
) error {
	if p.collector != nil {
		p.collector.RecordStepFailed(workflow.Type, step.Name, step.Type)
	}

	return nil
}

func (p *MetricsPlugin) OnStepReset(_ context.Context, workflow *resflow.Workflow, steps []*resflow.WorkflowStep) error {
	if p.collector != nil && len(steps) > 0 {
		p.collector.RecordStepsReset(workflow.Type, len(steps))
	}

	return nil
}

func (p *MetricsPlugin) OnLockAcquired(_ context.Context, workflow *resflow.Workflow, holder string) error {
	if p.collector != nil {
		p.collector.RecordLock(workflow.Type, LockAcquired, lockScope(holder))
	}

	return nil
}

func (p *MetricsPlugin) OnLockReleased(_ context.Context, workflow *resflow.Workflow, holder string) error {
	if p.collector != nil {
		p.collector.RecordLock(workflow.Type, LockReleased, lockScope(holder))
	}

	return nil
}
