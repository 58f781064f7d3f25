package review

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/api"
)

var _ api.Plugin = (*Plugin)(nil)

var ErrNotReviewer = errors.New("actor is not a reviewer")

type Plugin struct {
	setter         StepStatusSetter
	permissions    resflow.PermissionChecker
	extractActorFn api.ExtractActorFn
}

// New builds the review endpoints. When permissions is nil every caller may review.
func New(
	setter StepStatusSetter,
	permissions resflow.PermissionChecker,
	extractActorFn api.ExtractActorFn,
) *Plugin {
	return &Plugin{
		setter:         setter,
		permissions:    permissions,
		extractActorFn: extractActorFn,
	}
}

func (p *Plugin) Name() string { return "review" }

func (p *Plugin) Description() string { return "Approve, reject or request changes on a step" }

func (p *Plugin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(
		"POST /api/workflows/{id}/steps/{step_id}/review/approve",
		HandleReview(p.setter, p.permissions, p.extractActorFn, resflow.StatusApproved),
	)
	mux.HandleFunc(
		"POST /api/workflows/{id}/steps/{step_id}/review/reject",
		HandleReview(p.setter, p.permissions, p.extractActorFn, resflow.StatusRejected),
	)
	mux.HandleFunc(
		"POST /api/workflows/{id}/steps/{step_id}/review/request-changes",
		HandleReview(p.setter, p.permissions, p.extractActorFn, resflow.StatusChangesRequested),
	)
}

func HandleReview(
	setter StepStatusSetter,
	permissions resflow.PermissionChecker,
	extractActorFn api.ExtractActorFn,
	decision resflow.Status,
) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		workflowID := r.PathValue("id")
		stepID := r.PathValue("step_id")
		if workflowID == "" || stepID == "" {
			api.WriteErrorResponse(w, errors.New("workflow and step ids are required"), http.StatusBadRequest)

			return
		}

		actor, err := extractActorFn(r)
		if err != nil {
			api.WriteErrorResponse(w, err, http.StatusUnauthorized)

			return
		}

		if permissions != nil {
			ok, err := permissions.HasPermission(ctx, actor, resflow.RolePermission(resflow.RoleOrgReviewer))
			if err != nil {
				api.WriteErrorResponse(w, err, http.StatusInternalServerError)

				return
			}
			if !ok {
				api.WriteErrorResponse(w, ErrNotReviewer, http.StatusForbidden)

				return
			}
		}

		var req DecisionRequest
		if err := api.DecodeBody(r, &req); err != nil {
			api.WriteErrorResponse(w, err, http.StatusBadRequest)

			return
		}

		key := req.StatusKey
		if key == "" {
			key = resflow.RootStatusKey
		}

		step, err := setter.SetStepStatus(ctx, workflowID, stepID, key, decision, actor)
		if err != nil {
			api.WriteError(w, fmt.Errorf("review step: %w", err))

			return
		}

		log.Info().
			Str("workflow_id", workflowID).
			Str("step_id", stepID).
			Str("reviewer", actor.Identity).
			Str("decision", string(decision)).
			Str("comment", req.Comment).
			Msg("step reviewed")

		api.WriteJSON(w, http.StatusOK, DecisionResponse{
			StepID: step.ID,
			Status: step.Status(key, resflow.StatusPending),
		})
	}
}
