package cleanup

import (
	"context"

	"github.com/rom8726/resflow"
)

type Cleaner interface {
	ListWorkflows(ctx context.Context, resourceID string) ([]*resflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	DeleteResource(ctx context.Context, id string) error
}

type CleanupRequest struct {
	DaysToKeep int `json:"days_to_keep"`
}

type CleanupResponse struct {
	DeletedCount int64 `json:"deleted_count"`
	DaysToKeep   int   `json:"days_to_keep"`
}
