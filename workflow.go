package resflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Workflow struct {
	ID               string          `json:"id"`
	ResourceID       string          `json:"resource_id"`
	CreatorID        string          `json:"creator_id,omitempty"`
	Type             string          `json:"type"`
	Name             string          `json:"name"`
	LockWhenFinished bool            `json:"lock_when_finished"`
	CreatedAt        time.Time       `json:"created_at"`
	Steps            []*WorkflowStep `json:"steps"`
	Results          ResultSet       `json:"results,omitempty"`

	UserLock   `json:"user_lock"`
	Attributes `json:"attributes"`
}

func NewWorkflow(resourceID, workflowType, name, creatorID string) *Workflow {
	return &Workflow{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		CreatorID:  creatorID,
		Type:       workflowType,
		Name:       name,
		CreatedAt:  time.Now(),
	}
}

// AddStep appends step keeping steps ordered by Order. Steps with equal order
// keep their insertion order.
func (w *Workflow) AddStep(step *WorkflowStep) {
	step.WorkflowID = w.ID
	for _, result := range step.Results {
		result.WorkflowID = w.ID
	}
	w.Steps = append(w.Steps, step)
	w.sortSteps()
}

// AddResult attaches a workflow-level result at its own Order.
func (w *Workflow) AddResult(result *Result) {
	result.WorkflowID = w.ID
	result.StepID = ""
	w.Results = append(w.Results, result)
	w.Results.sort()
}

func (w *Workflow) AppendResult(result *Result) {
	result.Order = w.Results.nextOrder()
	w.AddResult(result)
}

func (w *Workflow) sortSteps() {
	sort.SliceStable(w.Steps, func(i, j int) bool { return w.Steps[i].Order < w.Steps[j].Order })
}

// linkParents resolves Parent pointers from ParentID after a load.
func (w *Workflow) linkParents() {
	byID := make(map[string]*WorkflowStep, len(w.Steps))
	for _, step := range w.Steps {
		byID[step.ID] = step
	}
	for _, step := range w.Steps {
		step.Parent = byID[step.ParentID]
	}
}

func (w *Workflow) Step(id string) (*WorkflowStep, error) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, nil
		}
	}

	return nil, fmt.Errorf("step %q in workflow %q: %w", id, w.ID, ErrEntityNotFound)
}

func (w *Workflow) StepByName(name string) *WorkflowStep {
	for _, step := range w.Steps {
		if step.Name == name {
			return step
		}
	}

	return nil
}

// NextStep returns the first step that is not complete. When every step is
// complete it returns the last step so callers can show final results.
func (w *Workflow) NextStep() (int, *WorkflowStep) {
	if len(w.Steps) == 0 {
		return 0, nil
	}

	for idx, step := range w.Steps {
		if !step.Complete() {
			return idx, step
		}
	}

	last := len(w.Steps) - 1

	return last, w.Steps[last]
}

// Status derives the workflow status from the next step. Pending past the
// first step reads as Continue.
func (w *Workflow) Status() Status {
	idx, step := w.NextStep()
	if step == nil {
		return StatusEmpty
	}

	status := step.Status(RootStatusKey, StatusPending)
	if status == StatusPending && idx > 0 {
		return StatusContinue
	}

	return status
}

func (w *Workflow) Complete() bool {
	_, step := w.NextStep()
	if step == nil {
		return false
	}

	return w.Status().In(step.CompleteStatuses())
}

func (w *Workflow) stepIndex(step *WorkflowStep) (int, error) {
	if step != nil {
		for i, candidate := range w.Steps {
			if candidate == step || (step.ID != "" && candidate.ID == step.ID) {
				return i, nil
			}
		}
	}

	name := ""
	if step != nil {
		name = step.Name
	}

	return -1, fmt.Errorf("%w: step %q is not a step of workflow %q", ErrNotOwned, name, w.Name)
}

func (w *Workflow) AdjacentSteps(step *WorkflowStep) (prev, next *WorkflowStep, err error) {
	idx, err := w.stepIndex(step)
	if err != nil {
		return nil, nil, err
	}

	if idx > 0 {
		prev = w.Steps[idx-1]
	}
	if idx < len(w.Steps)-1 {
		next = w.Steps[idx+1]
	}

	return prev, next, nil
}

func (w *Workflow) PreviousSteps(step *WorkflowStep) ([]*WorkflowStep, error) {
	idx, err := w.stepIndex(step)
	if err != nil {
		return nil, err
	}

	return append([]*WorkflowStep(nil), w.Steps[:idx]...), nil
}

func (w *Workflow) NextSteps(step *WorkflowStep) ([]*WorkflowStep, error) {
	idx, err := w.stepIndex(step)
	if err != nil {
		return nil, err
	}

	return append([]*WorkflowStep(nil), w.Steps[idx+1:]...), nil
}

// ResetNextSteps resets every step after step that has been touched, and step
// itself when includeCurrent is set. Pending steps are left alone. The steps
// that were reset are returned so callers can persist them.
func (w *Workflow) ResetNextSteps(step *WorkflowStep, includeCurrent bool) ([]*WorkflowStep, error) {
	idx, err := w.stepIndex(step)
	if err != nil {
		return nil, err
	}

	start := idx + 1
	if includeCurrent {
		start = idx
	}

	var reset []*WorkflowStep
	for _, candidate := range w.Steps[start:] {
		if candidate.Status(RootStatusKey, StatusPending) == StatusPending {
			continue
		}
		candidate.Reset()
		reset = append(reset, candidate)
	}

	if len(reset) > 0 {
		log.Debug().Str(KeyWorkflowID, w.ID).Str("step", step.Name).Int("reset", len(reset)).Msg("steps reset")
	}

	return reset, nil
}

// TabularDataForPreviousSteps returns form answers of earlier form-input steps
// keyed by step name, with value keys converted to display titles.
func (w *Workflow) TabularDataForPreviousSteps(step *WorkflowStep) (map[string]map[string]any, error) {
	previous, err := w.PreviousSteps(step)
	if err != nil {
		return nil, err
	}

	data := make(map[string]map[string]any)
	for _, prev := range previous {
		if prev.Type != StepTypeFormInput {
			continue
		}

		value, err := prev.Parameter(ParamFormValues)
		if err != nil {
			return nil, err
		}
		values, _ := asMap(value)

		display := make(map[string]any, len(values))
		for key, v := range values {
			display[DisplayTitle(key)] = v
		}
		data[prev.Name] = display
	}

	return data, nil
}

// DisplayTitle turns a snake_case key into a title: "peak_flow_cfs" becomes "Peak Flow Cfs".
func DisplayTitle(key string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range strings.ReplaceAll(key, "_", " ") {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true

			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}

	return b.String()
}

func (w *Workflow) Result(id string) *Result {
	result := w.Results.byID(id)
	if result == nil {
		log.Warn().Str(KeyWorkflowID, w.ID).Str("result_id", id).Msg("result not found")
	}

	return result
}

func (w *Workflow) ResultByCodename(codename string) *Result {
	result := w.Results.byCodename(codename)
	if result == nil {
		log.Warn().Str(KeyWorkflowID, w.ID).Str("codename", codename).Msg("result not found")
	}

	return result
}
