package api

import (
	"net/http"

	"github.com/rom8726/resflow"
)

type Plugin interface {
	Name() string
	Description() string
	RegisterRoutes(mux *http.ServeMux)
}

// ExtractActorFn resolves the caller of a request. Authentication is the host's concern.
type ExtractActorFn func(req *http.Request) (resflow.Actor, error)

type StartWorkflowRequest struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type LockRequest struct {
	ForAllUsers bool `json:"for_all_users"`
}

type LockResponse struct {
	WorkflowID string `json:"workflow_id"`
	Locked     bool   `json:"locked"`
}

type ResetResponse struct {
	StepIDs []string `json:"step_ids"`
}

type ValidationErrorResponse struct {
	Message   string                `json:"message"`
	Parameter string                `json:"parameter,omitempty"`
	Step      *resflow.WorkflowStep `json:"step"`
}
