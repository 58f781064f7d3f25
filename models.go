package resflow

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending          Status = "Pending"
	StatusWorking          Status = "Working"
	StatusComplete         Status = "Complete"
	StatusError            Status = "Error"
	StatusFailed           Status = "Failed"
	StatusSubmitted        Status = "Submitted"
	StatusUnderReview      Status = "Under Review"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusChangesRequested Status = "Changes Requested"
	StatusReviewed         Status = "Reviewed"
	StatusReset            Status = "Reset"
	StatusDirty            Status = "Dirty"
	StatusAvailable        Status = "Available"
	StatusDeleting         Status = "Deleting"
	StatusSuccess          Status = "Success"
	StatusProcessing       Status = "Processing"
	StatusWaiting          Status = "Waiting"
	StatusOK               Status = "OK"
	StatusUnknown          Status = "Unknown"
	StatusContinue         Status = "Continue"
	StatusNone             Status = "None"
	StatusEmpty            Status = ""
)

var validStatuses = map[Status]struct{}{
	StatusPending:          {},
	StatusWorking:          {},
	StatusComplete:         {},
	StatusError:            {},
	StatusFailed:           {},
	StatusSubmitted:        {},
	StatusUnderReview:      {},
	StatusApproved:         {},
	StatusRejected:         {},
	StatusChangesRequested: {},
	StatusReviewed:         {},
	StatusReset:            {},
	StatusDirty:            {},
	StatusAvailable:        {},
	StatusDeleting:         {},
	StatusSuccess:          {},
	StatusProcessing:       {},
	StatusWaiting:          {},
	StatusOK:               {},
	StatusUnknown:          {},
	StatusContinue:         {},
	StatusNone:             {},
	StatusEmpty:            {},
}

var (
	// OKStatuses are terminal success values.
	OKStatuses = []Status{StatusSuccess, StatusComplete, StatusOK, StatusApproved, StatusReviewed, StatusAvailable}
	// ErrorStatuses are terminal failure values.
	ErrorStatuses = []Status{StatusError, StatusFailed, StatusRejected}
	// WorkingStatuses block progress while set.
	WorkingStatuses = []Status{
		StatusWorking, StatusProcessing, StatusWaiting, StatusSubmitted,
		StatusUnderReview, StatusChangesRequested, StatusDeleting,
	}
	// CompleteStatuses close a step for navigation purposes.
	CompleteStatuses = []Status{StatusComplete, StatusApproved, StatusReviewed}
)

func (s Status) IsValid() bool {
	_, ok := validStatuses[s]

	return ok
}

func (s Status) In(set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}

	return false
}

// Style maps a status to the bootstrap-like context class used by renderers.
func (s Status) Style() string {
	switch {
	case s.In(OKStatuses):
		return "success"
	case s.In(ErrorStatuses):
		return "danger"
	case s.In(WorkingStatuses):
		return "warning"
	default:
		return "primary"
	}
}

func ValidStatuses() []Status {
	statuses := make([]Status, 0, len(validStatuses))
	for status := range validStatuses {
		statuses = append(statuses, status)
	}

	return statuses
}

type StepType string

const (
	StepTypeGeneric      StepType = "generic_workflow_step"
	StepTypeFormInput    StepType = "form_input_resource_workflow_step"
	StepTypeSetStatus    StepType = "set_status_workflow_step"
	StepTypeTableInput   StepType = "table_input_resource_workflow_step"
	StepTypeSpatialInput StepType = "spatial_input_resource_workflow_step"
	StepTypeResults      StepType = "results_resource_workflow_step"
)

type ResultType string

const (
	ResultTypeDataset ResultType = "dataset_workflow_result"
	ResultTypePlot    ResultType = "plot_workflow_result"
	ResultTypeSpatial ResultType = "spatial_workflow_result"
	ResultTypeReport  ResultType = "report_workflow_result"
)

// ControllerMetadata binds an entity to the external controller that renders it.
type ControllerMetadata struct {
	Path   string         `json:"path" yaml:"path"`
	Kwargs map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
}

type Resource struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Organizations []string  `json:"organizations,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	StatusLedger `json:"status"`
	UserLock     `json:"user_lock"`
	Attributes   `json:"attributes"`
}

func NewResource(name, description string, organizations ...string) *Resource {
	return &Resource{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   description,
		Organizations: append([]string(nil), organizations...),
		CreatedAt:     time.Now(),
	}
}
