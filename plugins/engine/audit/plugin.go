package audit

import (
	"context"
	"time"

	"github.com/rom8726/resflow"
)

var _ resflow.Plugin = (*AuditPlugin)(nil)

type AuditLogEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	EventType    string         `json:"event_type"`
	ResourceID   string         `json:"resource_id"`
	WorkflowID   string         `json:"workflow_id"`
	WorkflowType string         `json:"workflow_type"`
	StepID       string         `json:"step_id,omitempty"`
	StepName     string         `json:"step_name,omitempty"`
	Actor        string         `json:"actor,omitempty"`
	Status       string         `json:"status,omitempty"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type Writer interface {
	Write(ctx context.Context, entry *AuditLogEntry) error
}

type AuditPlugin struct {
	resflow.BasePlugin

	writer Writer
	now    func() time.Time
}

func New(writer Writer) *AuditPlugin {
	return &AuditPlugin{
		BasePlugin: resflow.NewBasePlugin("audit", resflow.PriorityNormal),
		writer:     writer,
		now:        time.Now,
	}
}

func (p *AuditPlugin) entry(eventType string, workflow *resflow.Workflow) *AuditLogEntry {
	return &AuditLogEntry{
		Timestamp:    p.now(),
		EventType:    eventType,
		ResourceID:   workflow.ResourceID,
		WorkflowID:   workflow.ID,
		WorkflowType: workflow.Type,
	}
}

func (p *AuditPlugin) OnWorkflowStart(ctx context.Context, workflow *resflow.Workflow) error {
	entry := p.entry(resflow.EventWorkflowStarted, workflow)
	entry.Actor = workflow.CreatorID
	entry.Metadata = map[string]any{"name": workflow.Name, "steps": len(workflow.Steps)}

	return p.logEvent(ctx, entry)
}

func (p *AuditPlugin) OnWorkflowComplete(ctx context.Context, workflow *resflow.Workflow) error {
	entry := p.entry(resflow.EventWorkflowCompleted, workflow)
	entry.Status = string(workflow.Status())

	return p.logEvent(ctx, entry)
}

// OnStepSubmitted records who submitted which values. A failed write aborts the submission.
func (p *AuditPlugin) OnStepSubmitted(
	ctx context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	actor resflow.Actor,
) error {
	entry := p.entry(resflow.EventStepSubmitted, workflow)
	entry.StepID = step.ID
	entry.StepName = step.Name
	entry.Actor = actor.Identity
	entry.Status = string(step.RootStatus())
	entry.Metadata = step.ParameterValues()

	return p.logEvent(ctx, entry)
}

func (p *AuditPlugin) OnStepFailed(
	ctx context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	err error,
) error {
	entry := p.entry(resflow.EventStepFailed, workflow)
	entry.StepID = step.ID
	entry.StepName = step.Name
	entry.Status = string(step.RootStatus())
	if err != nil {
		entry.Error = err.Error()
	}

	return p.logEvent(ctx, entry)
}

func (p *AuditPlugin) OnStepReset(ctx context.Context, workflow *resflow.Workflow, steps []*resflow.WorkflowStep) error {
	names := make([]any, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Name)
	}

	entry := p.entry(resflow.EventStepsReset, workflow)
	entry.Metadata = map[string]any{"steps": names}

	return p.logEvent(ctx, entry)
}

func (p *AuditPlugin) OnLockAcquired(ctx context.Context, workflow *resflow.Workflow, holder string) error {
	entry := p.entry(resflow.EventLockAcquired, workflow)
	entry.Actor = holder

	return p.logEvent(ctx, entry)
}

func (p *AuditPlugin) OnLockReleased(ctx context.Context, workflow *resflow.Workflow, holder string) error {
	entry := p.entry(resflow.EventLockReleased, workflow)
	entry.Actor = holder

	return p.logEvent(ctx, entry)
}

func (p *AuditPlugin) logEvent(ctx context.Context, entry *AuditLogEntry) error {
	return p.writer.Write(ctx, entry)
}
