package resflow

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps copies of every record, so callers never share state
// with the store or with each other. Values come back the way the SQL stores
// return them: decoded from JSON.
type MemoryStore struct {
	mu                  sync.RWMutex
	resources           map[string]*Resource
	workflows           map[string]*Workflow
	workflowsByResource map[string][]string
	steps               map[string]*WorkflowStep
	stepsByWorkflow     map[string][]string
	results             map[string]*Result
	resultsByWorkflow   map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources:           make(map[string]*Resource),
		workflows:           make(map[string]*Workflow),
		workflowsByResource: make(map[string][]string),
		steps:               make(map[string]*WorkflowStep),
		stepsByWorkflow:     make(map[string][]string),
		results:             make(map[string]*Result),
		resultsByWorkflow:   make(map[string][]string),
	}
}

// snapshot captures the current record set. The returned func puts it back.
// Stored records are replaced on update, never mutated, so copying the
// indexes is enough.
func (s *MemoryStore) snapshot() (restore func()) {
	s.mu.RLock()
	resources := maps.Clone(s.resources)
	workflows := maps.Clone(s.workflows)
	workflowsByResource := cloneIndex(s.workflowsByResource)
	steps := maps.Clone(s.steps)
	stepsByWorkflow := cloneIndex(s.stepsByWorkflow)
	results := maps.Clone(s.results)
	resultsByWorkflow := cloneIndex(s.resultsByWorkflow)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.resources = resources
		s.workflows = workflows
		s.workflowsByResource = workflowsByResource
		s.steps = steps
		s.stepsByWorkflow = stepsByWorkflow
		s.results = results
		s.resultsByWorkflow = resultsByWorkflow
	}
}

func cloneIndex(index map[string][]string) map[string][]string {
	out := make(map[string][]string, len(index))
	for key, ids := range index {
		out[key] = slices.Clone(ids)
	}

	return out
}

func cloneRecord[T any](value *T) (*T, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("copy record: %w", err)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy record: %w", err)
	}

	return &out, nil
}

func detachStep(step *WorkflowStep) (*WorkflowStep, error) {
	shallow := *step
	shallow.Results = nil
	shallow.Parent = nil

	return cloneRecord(&shallow)
}

func detachWorkflow(workflow *Workflow) (*Workflow, error) {
	shallow := *workflow
	shallow.Steps = nil
	shallow.Results = nil

	return cloneRecord(&shallow)
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}

	return ids
}

func (s *MemoryStore) CreateResource(_ context.Context, resource *Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[resource.ID]; exists {
		return fmt.Errorf("resource %q already exists", resource.ID)
	}

	stored, err := cloneRecord(resource)
	if err != nil {
		return err
	}
	s.resources[resource.ID] = stored

	return nil
}

func (s *MemoryStore) GetResource(_ context.Context, id string) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, exists := s.resources[id]
	if !exists {
		return nil, ErrEntityNotFound
	}

	return cloneRecord(resource)
}

func (s *MemoryStore) GetResourceForUpdate(ctx context.Context, id string) (*Resource, error) {
	return s.GetResource(ctx, id)
}

func (s *MemoryStore) UpdateResource(_ context.Context, resource *Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.resources[resource.ID]
	if !exists {
		return ErrEntityNotFound
	}

	stored, err := cloneRecord(resource)
	if err != nil {
		return err
	}
	stored.CreatedAt = existing.CreatedAt
	s.resources[resource.ID] = stored

	return nil
}

func (s *MemoryStore) DeleteResource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[id]; !exists {
		return ErrEntityNotFound
	}

	for _, workflowID := range append([]string(nil), s.workflowsByResource[id]...) {
		s.deleteWorkflowLocked(workflowID)
	}
	delete(s.workflowsByResource, id)
	delete(s.resources, id)

	return nil
}

func (s *MemoryStore) CreateWorkflow(_ context.Context, workflow *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[workflow.ResourceID]; !exists {
		return fmt.Errorf("resource %q: %w", workflow.ResourceID, ErrEntityNotFound)
	}
	if _, exists := s.workflows[workflow.ID]; exists {
		return fmt.Errorf("workflow %q already exists", workflow.ID)
	}

	stored, err := detachWorkflow(workflow)
	if err != nil {
		return err
	}

	steps := make([]*WorkflowStep, 0, len(workflow.Steps))
	var results []*Result
	for _, step := range workflow.Steps {
		storedStep, err := detachStep(step)
		if err != nil {
			return err
		}
		steps = append(steps, storedStep)
		for _, result := range step.Results {
			storedResult, err := cloneRecord(result)
			if err != nil {
				return err
			}
			results = append(results, storedResult)
		}
	}
	for _, result := range workflow.Results {
		storedResult, err := cloneRecord(result)
		if err != nil {
			return err
		}
		results = append(results, storedResult)
	}

	s.workflows[stored.ID] = stored
	s.workflowsByResource[stored.ResourceID] = append(s.workflowsByResource[stored.ResourceID], stored.ID)
	for _, step := range steps {
		s.steps[step.ID] = step
		s.stepsByWorkflow[stored.ID] = append(s.stepsByWorkflow[stored.ID], step.ID)
	}
	for _, result := range results {
		s.results[result.ID] = result
		s.resultsByWorkflow[stored.ID] = append(s.resultsByWorkflow[stored.ID], result.ID)
	}

	return nil
}

func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadWorkflowLocked(id)
}

func (s *MemoryStore) GetWorkflowForUpdate(ctx context.Context, id string) (*Workflow, error) {
	return s.GetWorkflow(ctx, id)
}

func (s *MemoryStore) loadWorkflowLocked(id string) (*Workflow, error) {
	stored, exists := s.workflows[id]
	if !exists {
		return nil, ErrEntityNotFound
	}

	workflow, err := cloneRecord(stored)
	if err != nil {
		return nil, err
	}

	steps := make([]*WorkflowStep, 0, len(s.stepsByWorkflow[id]))
	for _, stepID := range s.stepsByWorkflow[id] {
		step, err := cloneRecord(s.steps[stepID])
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	results := make([]*Result, 0, len(s.resultsByWorkflow[id]))
	for _, resultID := range s.resultsByWorkflow[id] {
		result, err := cloneRecord(s.results[resultID])
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Order < results[j].Order })

	assemble(workflow, steps, results)

	return workflow, nil
}

func (s *MemoryStore) ListWorkflows(_ context.Context, resourceID string) ([]*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.workflowsByResource[resourceID]
	workflows := make([]*Workflow, 0, len(ids))
	for _, id := range ids {
		workflow, err := s.loadWorkflowLocked(id)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}
	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (s *MemoryStore) UpdateWorkflow(_ context.Context, workflow *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.workflows[workflow.ID]
	if !exists {
		return ErrEntityNotFound
	}

	stored, err := detachWorkflow(workflow)
	if err != nil {
		return err
	}
	// identity columns are not updatable
	stored.ResourceID = existing.ResourceID
	stored.CreatorID = existing.CreatorID
	stored.Type = existing.Type
	stored.CreatedAt = existing.CreatedAt
	s.workflows[workflow.ID] = stored

	return nil
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, exists := s.workflows[id]
	if !exists {
		return ErrEntityNotFound
	}

	s.workflowsByResource[workflow.ResourceID] = removeID(s.workflowsByResource[workflow.ResourceID], id)
	s.deleteWorkflowLocked(id)

	return nil
}

func (s *MemoryStore) deleteWorkflowLocked(id string) {
	for _, stepID := range s.stepsByWorkflow[id] {
		delete(s.steps, stepID)
	}
	for _, resultID := range s.resultsByWorkflow[id] {
		delete(s.results, resultID)
	}
	delete(s.stepsByWorkflow, id)
	delete(s.resultsByWorkflow, id)
	delete(s.workflows, id)
}

func (s *MemoryStore) CreateStep(_ context.Context, step *WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[step.WorkflowID]; !exists {
		return fmt.Errorf("workflow %q: %w", step.WorkflowID, ErrEntityNotFound)
	}
	if _, exists := s.steps[step.ID]; exists {
		return fmt.Errorf("step %q already exists", step.ID)
	}

	stored, err := detachStep(step)
	if err != nil {
		return err
	}
	s.steps[stored.ID] = stored
	s.stepsByWorkflow[stored.WorkflowID] = append(s.stepsByWorkflow[stored.WorkflowID], stored.ID)

	return nil
}

func (s *MemoryStore) UpdateStep(_ context.Context, step *WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.steps[step.ID]
	if !exists || existing.WorkflowID != step.WorkflowID || existing.Type != step.Type {
		return ErrEntityNotFound
	}

	stored, err := detachStep(step)
	if err != nil {
		return err
	}
	stored.CreatedAt = existing.CreatedAt
	s.steps[step.ID] = stored

	return nil
}

func (s *MemoryStore) CreateResult(_ context.Context, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[result.WorkflowID]; !exists {
		return fmt.Errorf("workflow %q: %w", result.WorkflowID, ErrEntityNotFound)
	}
	if result.StepID != "" {
		if _, exists := s.steps[result.StepID]; !exists {
			return fmt.Errorf("step %q: %w", result.StepID, ErrEntityNotFound)
		}
	}
	if _, exists := s.results[result.ID]; exists {
		return fmt.Errorf("result %q already exists", result.ID)
	}

	stored, err := cloneRecord(result)
	if err != nil {
		return err
	}
	s.results[stored.ID] = stored
	s.resultsByWorkflow[stored.WorkflowID] = append(s.resultsByWorkflow[stored.WorkflowID], stored.ID)

	return nil
}

func (s *MemoryStore) UpdateResult(_ context.Context, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.results[result.ID]
	if !exists ||
		existing.WorkflowID != result.WorkflowID ||
		existing.StepID != result.StepID ||
		existing.Type != result.Type {
		return ErrEntityNotFound
	}

	stored, err := cloneRecord(result)
	if err != nil {
		return err
	}
	stored.CreatedAt = existing.CreatedAt
	s.results[result.ID] = stored

	return nil
}

func (s *MemoryStore) DeleteResult(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, exists := s.results[id]
	if !exists {
		return ErrEntityNotFound
	}

	s.resultsByWorkflow[result.WorkflowID] = removeID(s.resultsByWorkflow[result.WorkflowID], id)
	delete(s.results, id)

	return nil
}
