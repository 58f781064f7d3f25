package review

import (
	"context"

	"github.com/rom8726/resflow"
)

type StepStatusSetter interface {
	SetStepStatus(
		ctx context.Context,
		workflowID string,
		stepID string,
		key string,
		status resflow.Status,
		actor resflow.Actor,
	) (*resflow.WorkflowStep, error)
}

type DecisionRequest struct {
	// StatusKey selects a ledger entry other than the root status.
	StatusKey string `json:"status_key,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

type DecisionResponse struct {
	StepID string         `json:"step_id"`
	Status resflow.Status `json:"status"`
}
