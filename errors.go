package resflow

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound      = errors.New("entity not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidOptions      = errors.New("invalid options: must be a map")
	ErrValidation          = errors.New("validation failed")
	ErrNotOwned            = errors.New("entity does not belong to this owner")
	ErrParameterNotFound   = errors.New("parameter not found")
	ErrUnknownStepType     = errors.New("unknown step type")
	ErrUnknownResultType   = errors.New("unknown result type")
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
	ErrLocked              = errors.New("workflow is locked by another user")
	ErrReadOnly            = errors.New("actor has no active role for this step")
	ErrOverrideRequired    = errors.New("actor may not override user locks")
	ErrRateLimited         = errors.New("too many submissions")
)

// ValidationError is a user-correctable input problem raised while validating a step.
type ValidationError struct {
	Step      string
	Parameter string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("step %q: parameter %q: %s", e.Step, e.Parameter, e.Message)
	}

	return fmt.Sprintf("step %q: %s", e.Step, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(step *WorkflowStep, parameter, format string, args ...any) *ValidationError {
	return &ValidationError{
		Step:      step.Name,
		Parameter: parameter,
		Message:   fmt.Sprintf(format, args...),
	}
}
