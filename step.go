package resflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const AttrLastResult = "last_result"

type WorkflowStep struct {
	ID          string             `json:"id"`
	WorkflowID  string             `json:"workflow_id"`
	ParentID    string             `json:"parent_id,omitempty"`
	Type        StepType           `json:"type"`
	Name        string             `json:"name"`
	Help        string             `json:"help,omitempty"`
	Order       int                `json:"order"`
	Params      Parameters         `json:"parameters"`
	Options     Options            `json:"options"`
	ActiveRoles []string           `json:"active_roles,omitempty"`
	Dirty       bool               `json:"dirty"`
	Controller  ControllerMetadata `json:"controller"`
	Results     ResultSet          `json:"results,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`

	StatusLedger `json:"status"`
	Attributes   `json:"attributes"`

	// Parent is resolved from ParentID when the owning workflow is loaded.
	Parent *WorkflowStep `json:"-"`
}

func NewStep(stepType StepType, name string) (*WorkflowStep, error) {
	kind, err := LookupStepKind(stepType)
	if err != nil {
		return nil, err
	}

	step := &WorkflowStep{
		ID:         uuid.NewString(),
		Type:       stepType,
		Name:       name,
		Params:     kind.InitParameters(),
		Options:    MergeOptions(kind.DefaultOptions(), nil),
		Controller: kind.Controller(),
		CreatedAt:  time.Now(),
	}
	_ = step.SetRootStatus(StatusPending)

	return step, nil
}

// Kind returns the registered behavior for the step type, falling back to the
// generic kind for rows written by a newer version.
func (s *WorkflowStep) Kind() StepKind {
	kind, err := LookupStepKind(s.Type)
	if err != nil {
		return stepKinds[StepTypeGeneric]
	}

	return kind
}

func (s *WorkflowStep) schema() Parameters {
	if s.Params == nil {
		s.Params = s.Kind().InitParameters()
	}

	return s.Params
}

func (s *WorkflowStep) Parameter(name string) (any, error) {
	param, ok := s.schema()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on step %q", ErrParameterNotFound, name, s.Name)
	}

	return param.Value, nil
}

func (s *WorkflowStep) SetParameter(name string, value any) error {
	params := s.schema()
	param, ok := params[name]
	if !ok {
		return fmt.Errorf("%w: %q on step %q", ErrParameterNotFound, name, s.Name)
	}

	param.Value = value
	params[name] = param

	return nil
}

// ParseParameters assigns declared parameters from values and ignores unknown names.
func (s *WorkflowStep) ParseParameters(values map[string]any) {
	params := s.schema()
	for name, value := range values {
		param, ok := params[name]
		if !ok {
			continue
		}
		param.Value = value
		params[name] = param
	}
}

func (s *WorkflowStep) Parameters() Parameters {
	return s.schema().clone()
}

func (s *WorkflowStep) ParameterValues() map[string]any {
	return s.schema().values()
}

// Validate checks required parameters first and only then the kind-specific rules.
func (s *WorkflowStep) Validate() error {
	for name, param := range s.schema() {
		if param.Required && isEmptyValue(param.Value) {
			return newValidationError(s, name, "required parameter is missing")
		}
	}

	return s.Kind().Validate(s)
}

// Reset returns the step to its initial state. Reset is idempotent.
func (s *WorkflowStep) Reset() {
	_ = s.SetRootStatus(StatusPending)
	s.Dirty = false
	s.Params = s.Kind().InitParameters()

	for _, result := range s.Results {
		result.Reset()
	}
}

func (s *WorkflowStep) CompleteStatuses() []Status {
	if extender, ok := s.Kind().(completionExtender); ok {
		return extender.CompleteStatuses()
	}

	return CompleteStatuses
}

func (s *WorkflowStep) Complete() bool {
	return s.Status(RootStatusKey, StatusPending).In(s.CompleteStatuses())
}

func (s *WorkflowStep) SetOptions(value any) error {
	override, err := toOptionsMap(value)
	if err != nil {
		return err
	}
	s.Options = MergeOptions(s.Kind().DefaultOptions(), override)

	return nil
}

func (s *WorkflowStep) Option(key string) (any, bool) {
	value, ok := s.Options[key]

	return value, ok
}

func (s *WorkflowStep) OptionString(key string) string {
	value, _ := s.Options[key].(string)

	return value
}

// ResolveOption returns the option value, following {"parent": "<parameter>"}
// references to the parent step's parameter.
func (s *WorkflowStep) ResolveOption(key string) (any, error) {
	value, ok := s.Options[key]
	if !ok {
		return nil, nil
	}

	ref, isMap := asMap(value)
	if !isMap {
		return value, nil
	}
	paramName, isRef := ref["parent"].(string)
	if !isRef {
		return value, nil
	}

	if s.Parent == nil {
		return nil, fmt.Errorf("resolve option %q: step %q has no parent: %w", key, s.Name, ErrEntityNotFound)
	}

	resolved, err := s.Parent.Parameter(paramName)
	if err != nil {
		return nil, fmt.Errorf("resolve option %q from parent %q: %w", key, s.Parent.Name, err)
	}

	return resolved, nil
}

// AddResult attaches result at its own Order.
func (s *WorkflowStep) AddResult(result *Result) {
	result.StepID = s.ID
	result.WorkflowID = s.WorkflowID
	s.Results = append(s.Results, result)
	s.Results.sort()
}

// AppendResult attaches result after the step's current results.
func (s *WorkflowStep) AppendResult(result *Result) {
	result.Order = s.Results.nextOrder()
	s.AddResult(result)
}

// Result returns the owned result with id, or nil after logging a warning.
func (s *WorkflowStep) Result(id string) *Result {
	result := s.Results.byID(id)
	if result == nil {
		log.Warn().Str("step", s.Name).Str("result_id", id).Msg("result not found")
	}

	return result
}

func (s *WorkflowStep) ResultByCodename(codename string) *Result {
	result := s.Results.byCodename(codename)
	if result == nil {
		log.Warn().Str("step", s.Name).Str("codename", codename).Msg("result not found")
	}

	return result
}

// LastResult returns the last viewed result, the first result when none was
// viewed yet, or nil when the step owns no results.
func (s *WorkflowStep) LastResult() *Result {
	if len(s.Results) == 0 {
		return nil
	}

	if id := s.AttributeString(AttrLastResult); id != "" {
		if result := s.Result(id); result != nil {
			return result
		}
	}

	return s.Results[0]
}

func (s *WorkflowStep) SetLastResult(result *Result) error {
	if s.Results.index(result) < 0 {
		return fmt.Errorf("%w: result %q is not a result of step %q", ErrNotOwned, resultID(result), s.Name)
	}
	s.SetAttribute(AttrLastResult, result.ID)

	return nil
}

func (s *WorkflowStep) AdjacentResults(result *Result) (prev, next *Result, err error) {
	prev, next, ok := s.Results.adjacent(result)
	if !ok {
		return nil, nil, fmt.Errorf("%w: result %q is not a result of step %q", ErrNotOwned, resultID(result), s.Name)
	}

	return prev, next, nil
}
