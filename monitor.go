package resflow

import (
	"context"
	"fmt"
	"sort"
	"time"
)

type WorkflowStats struct {
	WorkflowType string `json:"workflow_type"`
	Total        int    `json:"total"`
	Complete     int    `json:"complete"`
	InProgress   int    `json:"in_progress"`
	Errored      int    `json:"errored"`
	Locked       int    `json:"locked"`
}

type ActiveWorkflow struct {
	WorkflowID     string        `json:"workflow_id"`
	WorkflowType   string        `json:"workflow_type"`
	Name           string        `json:"name"`
	Status         Status        `json:"status"`
	NextStep       string        `json:"next_step,omitempty"`
	Holder         string        `json:"holder,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Age            time.Duration `json:"age"`
	TotalSteps     int           `json:"total_steps"`
	CompletedSteps int           `json:"completed_steps"`
	FailedSteps    int           `json:"failed_steps"`
	WorkingSteps   int           `json:"working_steps"`
}

type Monitor struct {
	lister WorkflowLister
	now    func() time.Time
}

func NewMonitor(lister WorkflowLister) *Monitor {
	return &Monitor{lister: lister, now: time.Now}
}

// GetWorkflowStats summarizes the workflows of a resource per workflow type,
// sorted by type.
func (m *Monitor) GetWorkflowStats(ctx context.Context, resourceID string) ([]WorkflowStats, error) {
	workflows, err := m.lister.ListWorkflows(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	byType := make(map[string]*WorkflowStats)
	for _, workflow := range workflows {
		stats, ok := byType[workflow.Type]
		if !ok {
			stats = &WorkflowStats{WorkflowType: workflow.Type}
			byType[workflow.Type] = stats
		}

		stats.Total++
		switch {
		case workflow.Complete():
			stats.Complete++
		case workflow.Status().In(ErrorStatuses):
			stats.Errored++
		default:
			stats.InProgress++
		}
		if workflow.IsUserLocked() {
			stats.Locked++
		}
	}

	result := make([]WorkflowStats, 0, len(byType))
	for _, stats := range byType {
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkflowType < result[j].WorkflowType })

	return result, nil
}

// GetActiveWorkflows returns the incomplete workflows of a resource with step
// progress, oldest first.
func (m *Monitor) GetActiveWorkflows(ctx context.Context, resourceID string) ([]ActiveWorkflow, error) {
	workflows, err := m.lister.ListWorkflows(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	now := m.now()
	active := make([]ActiveWorkflow, 0, len(workflows))
	for _, workflow := range workflows {
		if workflow.Complete() {
			continue
		}

		item := ActiveWorkflow{
			WorkflowID:   workflow.ID,
			WorkflowType: workflow.Type,
			Name:         workflow.Name,
			Status:       workflow.Status(),
			Holder:       workflow.Holder,
			CreatedAt:    workflow.CreatedAt,
			Age:          now.Sub(workflow.CreatedAt),
			TotalSteps:   len(workflow.Steps),
		}
		if _, next := workflow.NextStep(); next != nil {
			item.NextStep = next.Name
		}

		for _, step := range workflow.Steps {
			status := step.Status(RootStatusKey, StatusPending)
			switch {
			case step.Complete():
				item.CompletedSteps++
			case status.In(ErrorStatuses):
				item.FailedSteps++
			case status.In(WorkingStatuses):
				item.WorkingSteps++
			}
		}

		active = append(active, item)
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })

	return active, nil
}
