package resflow

import (
	"context"
)

type IMonitor interface {
	GetWorkflowStats(ctx context.Context, resourceID string) ([]WorkflowStats, error)
	GetActiveWorkflows(ctx context.Context, resourceID string) ([]ActiveWorkflow, error)
}

// WorkflowLister is the read side a Monitor needs. Engine and Store both satisfy it.
type WorkflowLister interface {
	ListWorkflows(ctx context.Context, resourceID string) ([]*Workflow, error)
}

var _ IMonitor = (*Monitor)(nil)
