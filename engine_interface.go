package resflow

import (
	"context"
)

// IEngine is the surface the HTTP layer drives.
type IEngine interface {
	Catalog() *Catalog

	GetResource(ctx context.Context, id string) (*Resource, error)

	StartWorkflow(ctx context.Context, resourceID, workflowType, name string, creator Actor) (*Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, resourceID string) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	AcquireLock(ctx context.Context, workflowID string, actor *Actor) (bool, error)
	LockForAllUsers(ctx context.Context, workflowID string, actor Actor) (bool, error)
	ReleaseLock(ctx context.Context, workflowID string, actor Actor) (bool, error)

	SubmitStep(ctx context.Context, workflowID, stepID string, actor Actor, submission Submission) (*WorkflowStep, error)
	ResetStep(ctx context.Context, workflowID, stepID string, actor Actor) ([]*WorkflowStep, error)
	ViewResult(ctx context.Context, workflowID, stepID, resultID string, viewer Actor) (*ResultView, error)
	HasActiveRole(ctx context.Context, actor Actor, step *WorkflowStep) (bool, error)
}

var _ IEngine = (*Engine)(nil)
