package resflow

import (
	"context"
)

// Store persists resources and workflow aggregates. Loading a workflow
// returns its steps ordered by (order, insertion) with their results attached.
// The ForUpdate variants lock the row for the rest of the current transaction.
type Store interface {
	CreateResource(ctx context.Context, resource *Resource) error
	GetResource(ctx context.Context, id string) (*Resource, error)
	GetResourceForUpdate(ctx context.Context, id string) (*Resource, error)
	UpdateResource(ctx context.Context, resource *Resource) error
	DeleteResource(ctx context.Context, id string) error

	CreateWorkflow(ctx context.Context, workflow *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	GetWorkflowForUpdate(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, resourceID string) ([]*Workflow, error)
	UpdateWorkflow(ctx context.Context, workflow *Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	CreateStep(ctx context.Context, step *WorkflowStep) error
	UpdateStep(ctx context.Context, step *WorkflowStep) error

	CreateResult(ctx context.Context, result *Result) error
	UpdateResult(ctx context.Context, result *Result) error
	DeleteResult(ctx context.Context, id string) error
}
