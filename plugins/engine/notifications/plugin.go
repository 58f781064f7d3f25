package notifications

import (
	"context"

	"github.com/rom8726/resflow"
)

var _ resflow.Plugin = (*NotificationsPlugin)(nil)

type NotificationType string

const (
	NotificationTypeWorkflowCompleted NotificationType = "workflow_completed"
	NotificationTypeStepFailed        NotificationType = "step_failed"
	NotificationTypeStepsReset        NotificationType = "steps_reset"
	NotificationTypeWorkflowLocked    NotificationType = "workflow_locked"
	NotificationTypeWorkflowUnlocked  NotificationType = "workflow_unlocked"
)

type Notification struct {
	Type         NotificationType `json:"type"`
	ResourceID   string           `json:"resource_id"`
	WorkflowID   string           `json:"workflow_id"`
	WorkflowType string           `json:"workflow_type"`
	StepIDs      []string         `json:"step_ids,omitempty"`
	StepName     string           `json:"step_name,omitempty"`
	Status       string           `json:"status,omitempty"`
	Holder       string           `json:"holder,omitempty"`
	Error        string           `json:"error,omitempty"`
}

type NotificationChannel interface {
	Send(ctx context.Context, notification Notification) error
}

// NotificationsPlugin forwards committed workflow events to a channel. It
// only uses hooks that run after commit, so a slow or failing channel never
// blocks a submission.
type NotificationsPlugin struct {
	resflow.BasePlugin

	channel NotificationChannel
}

func New(channel NotificationChannel) *NotificationsPlugin {
	return &NotificationsPlugin{
		BasePlugin: resflow.NewBasePlugin("notifications", resflow.PriorityLow),
		channel:    channel,
	}
}

func newNotification(notificationType NotificationType, workflow *resflow.Workflow) Notification {
	return Notification{
		Type:         notificationType,
		ResourceID:   workflow.ResourceID,
		WorkflowID:   workflow.ID,
		WorkflowType: workflow.Type,
	}
}

func (p *NotificationsPlugin) OnWorkflowComplete(ctx context.Context, workflow *resflow.Workflow) error {
	if p.channel == nil {
		return nil
	}

	notification := newNotification(NotificationTypeWorkflowCompleted, workflow)
	notification.Status = string(workflow.Status())

	return p.channel.Send(ctx, notification)
}

func (p *NotificationsPlugin) OnStepFailed(
	ctx context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	err error,
) error {
	if p.channel == nil {
		return nil
	}

	notification := newNotification(NotificationTypeStepFailed, workflow)
	notification.StepIDs = []string{step.ID}
	notification.StepName = step.Name
	notification.Status = string(step.RootStatus())
	if err != nil {
		notification.Error = err.Error()
	}

	return p.channel.Send(ctx, notification)
}

func (p *NotificationsPlugin) OnStepReset(ctx context.Context, workflow *resflow.Workflow, steps []*resflow.WorkflowStep) error {
	if p.channel == nil || len(steps) == 0 {
		return nil
	}

	notification := newNotification(NotificationTypeStepsReset, workflow)
	for _, step := range steps {
		notification.StepIDs = append(notification.StepIDs, step.ID)
	}

	return p.channel.Send(ctx, notification)
}

func (p *NotificationsPlugin) OnLockAcquired(ctx context.Context, workflow *resflow.Workflow, holder string) error {
	if p.channel == nil {
		return nil
	}

	notification := newNotification(NotificationTypeWorkflowLocked, workflow)
	notification.Holder = holder

	return p.channel.Send(ctx, notification)
}

func (p *NotificationsPlugin) OnLockReleased(ctx context.Context, workflow *resflow.Workflow, holder string) error {
	if p.channel == nil {
		return nil
	}

	notification := newNotification(NotificationTypeWorkflowUnlocked, workflow)
	notification.Holder = holder

	return p.channel.Send(ctx, notification)
}
