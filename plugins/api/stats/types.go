package stats

import (
	"github.com/rom8726/resflow"
)

type StatsResponse struct {
	ResourceID string                  `json:"resource_id"`
	Workflows  []resflow.WorkflowStats `json:"workflows"`
}

type ActiveResponse struct {
	ResourceID string                   `json:"resource_id"`
	Workflows  []resflow.ActiveWorkflow `json:"workflows"`
}
