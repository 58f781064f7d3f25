package cleanup

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/api"
)

var _ api.Plugin = (*Plugin)(nil)

type Plugin struct {
	cleaner Cleaner
}

func New(cleaner Cleaner) *Plugin {
	return &Plugin{
		cleaner: cleaner,
	}
}

func (p *Plugin) Name() string { return "cleanup" }

func (p *Plugin) Description() string { return "Clean up completed workflows and deleted resources" }

func (p *Plugin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/resources/{id}/cleanup", HandleCleanupWorkflows(p.cleaner, time.Now))
	mux.HandleFunc("DELETE /api/resources/{id}", HandleDeleteResource(p.cleaner))
}

// HandleCleanupWorkflows deletes complete workflows of a resource created more
// than days_to_keep days ago. Unfinished workflows are never removed.
func HandleCleanupWorkflows(
	cleaner Cleaner,
	now func() time.Time,
) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resourceID := r.PathValue("id")

		var cleanupReq CleanupRequest
		if err := api.DecodeBody(r, &cleanupReq); err != nil {
			api.WriteErrorResponse(w, err, http.StatusBadRequest)

			return
		}

		if cleanupReq.DaysToKeep <= 0 {
			err := errors.New("days_to_keep must be greater than 0")
			api.WriteErrorResponse(w, err, http.StatusBadRequest)

			return
		}

		workflows, err := cleaner.ListWorkflows(ctx, resourceID)
		if err != nil {
			api.WriteError(w, err)

			return
		}

		cutoff := now().AddDate(0, 0, -cleanupReq.DaysToKeep)

		var deleted int64
		for _, workflow := range workflows {
			if !workflow.Complete() || !workflow.CreatedAt.Before(cutoff) {
				continue
			}
			if err := cleaner.DeleteWorkflow(ctx, workflow.ID); err != nil {
				if errors.Is(err, resflow.ErrEntityNotFound) {
					continue
				}
				api.WriteError(w, err)

				return
			}
			deleted++
		}

		log.Info().
			Str("resource_id", resourceID).
			Int64("deleted", deleted).
			Int("days_to_keep", cleanupReq.DaysToKeep).
			Msg("workflows cleaned up")

		api.WriteJSON(w, http.StatusOK, CleanupResponse{
			DeletedCount: deleted,
			DaysToKeep:   cleanupReq.DaysToKeep,
		})
	}
}

func HandleDeleteResource(cleaner Cleaner) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cleaner.DeleteResource(r.Context(), r.PathValue("id")); err != nil {
			api.WriteError(w, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
