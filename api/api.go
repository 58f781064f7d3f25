package api

import (
	"context"

	"github.com/rom8726/resflow"
)

type WorkflowStatusView struct {
	WorkflowID    string         `json:"workflow_id"`
	Status        resflow.Status `json:"status"`
	Style         string         `json:"style"`
	Complete      bool           `json:"complete"`
	NextStepIndex int            `json:"next_step_index"`
	NextStepID    string         `json:"next_step_id,omitempty"`
	LockHolder    string         `json:"lock_holder,omitempty"`
}

func NewWorkflowStatusView(workflow *resflow.Workflow) WorkflowStatusView {
	idx, next := workflow.NextStep()
	status := workflow.Status()

	view := WorkflowStatusView{
		WorkflowID:    workflow.ID,
		Status:        status,
		Style:         status.Style(),
		Complete:      workflow.Complete(),
		NextStepIndex: idx,
		LockHolder:    workflow.LockHolder(),
	}
	if next != nil {
		view.NextStepID = next.ID
	}

	return view
}

// StepView is a step as presented to one actor.
type StepView struct {
	Step        *resflow.WorkflowStep     `json:"step"`
	Style       string                    `json:"style"`
	PreviousID  string                    `json:"previous_id,omitempty"`
	NextID      string                    `json:"next_id,omitempty"`
	ReadOnly    bool                      `json:"read_only"`
	TabularData map[string]map[string]any `json:"tabular_data,omitempty"`
}

func NewStepView(
	ctx context.Context,
	engine resflow.IEngine,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	actor resflow.Actor,
) (*StepView, error) {
	prev, next, err := workflow.AdjacentSteps(step)
	if err != nil {
		return nil, err
	}

	active, err := engine.HasActiveRole(ctx, actor, step)
	if err != nil {
		return nil, err
	}

	view := &StepView{
		Step:     step,
		Style:    step.RootStatus().Style(),
		ReadOnly: !active || workflow.IsLockedFor(actor),
	}
	if prev != nil {
		view.PreviousID = prev.ID
	}
	if next != nil {
		view.NextID = next.ID
	}

	if step.Type == resflow.StepTypeResults {
		if view.TabularData, err = workflow.TabularDataForPreviousSteps(step); err != nil {
			return nil, err
		}
	}

	return view, nil
}
