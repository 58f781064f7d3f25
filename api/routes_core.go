package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rom8726/resflow"
)

func RegisterCoreRoutes(mux *http.ServeMux, engine resflow.IEngine, extractActorFn ExtractActorFn) {
	// Resources
	mux.HandleFunc("GET /api/resources/{id}", HandleGetResource(engine))
	mux.HandleFunc("GET /api/resources/{id}/workflows", HandleListWorkflows(engine))
	mux.HandleFunc("POST /api/resources/{id}/workflows", HandleStartWorkflow(engine, extractActorFn))

	// Workflows
	mux.HandleFunc("GET /api/workflows/{id}", HandleGetWorkflow(engine))
	mux.HandleFunc("DELETE /api/workflows/{id}", HandleDeleteWorkflow(engine))
	mux.HandleFunc("GET /api/workflows/{id}/status", HandleGetWorkflowStatus(engine))
	mux.HandleFunc("GET /api/workflows/{id}/graph", HandleGetWorkflowGraph(engine))
	mux.HandleFunc("POST /api/workflows/{id}/lock", HandleLockWorkflow(engine, extractActorFn))
	mux.HandleFunc("POST /api/workflows/{id}/unlock", HandleUnlockWorkflow(engine, extractActorFn))

	// Steps
	mux.HandleFunc("GET /api/workflows/{id}/steps/{step_id}", HandleGetStep(engine, extractActorFn))
	mux.HandleFunc("POST /api/workflows/{id}/steps/{step_id}/submit", HandleSubmitStep(engine, extractActorFn))
	mux.HandleFunc("POST /api/workflows/{id}/steps/{step_id}/reset", HandleResetStep(engine, extractActorFn))
	mux.HandleFunc("GET /api/workflows/{id}/steps/{step_id}/results/{result_id}", HandleViewResult(engine, extractActorFn))

	// Catalog
	mux.HandleFunc("GET /api/catalog", HandleGetCatalog(engine))
	mux.HandleFunc("GET /api/catalog/schema", HandleGetCatalogSchema())
}

func extractActor(w http.ResponseWriter, r *http.Request, extractActorFn ExtractActorFn) (resflow.Actor, bool) {
	if extractActorFn == nil {
		return resflow.Actor{}, true
	}

	actor, err := extractActorFn(r)
	if err != nil {
		WriteErrorResponse(w, err, http.StatusUnauthorized)

		return resflow.Actor{}, false
	}

	return actor, true
}

// DecodeBody decodes an optional JSON body into target.
func DecodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}

	return nil
}

func HandleGetResource(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resource, err := engine.GetResource(r.Context(), r.PathValue("id"))
		if err != nil {
			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusOK, resource)
	}
}

func HandleListWorkflows(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resourceID := r.PathValue("id")

		if _, err := engine.GetResource(ctx, resourceID); err != nil {
			WriteError(w, err)

			return
		}

		workflows, err := engine.ListWorkflows(ctx, resourceID)
		if err != nil {
			WriteError(w, err)

			return
		}
		if workflows == nil {
			workflows = []*resflow.Workflow{}
		}

		WriteJSON(w, http.StatusOK, workflows)
	}
}

func HandleStartWorkflow(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		var req StartWorkflowRequest
		if err := DecodeBody(r, &req); err != nil {
			WriteErrorResponse(w, err, http.StatusBadRequest)

			return
		}
		if req.Type == "" {
			WriteErrorResponse(w, errors.New("type is required"), http.StatusBadRequest)

			return
		}

		workflow, err := engine.StartWorkflow(r.Context(), r.PathValue("id"), req.Type, req.Name, actor)
		if err != nil {
			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusCreated, workflow)
	}
}

func HandleGetWorkflow(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		workflow, err := engine.GetWorkflow(r.Context(), r.PathValue("id"))
		if err != nil {
			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusOK, workflow)
	}
}

func HandleDeleteWorkflow(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
			WriteError(w, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleGetWorkflowStatus(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		workflow, err := engine.GetWorkflow(r.Context(), r.PathValue("id"))
		if err != nil {
			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusOK, NewWorkflowStatusView(workflow))
	}
}

// HandleGetWorkflowGraph renders the workflow as plain text.
func HandleGetWorkflowGraph(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		workflow, err := engine.GetWorkflow(r.Context(), r.PathValue("id"))
		if err != nil {
			WriteError(w, err)

			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, resflow.NewVisualizer().RenderWorkflow(workflow))
	}
}

func HandleLockWorkflow(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		var req LockRequest
		if err := DecodeBody(r, &req); err != nil {
			WriteErrorResponse(w, err, http.StatusBadRequest)

			return
		}

		workflowID := r.PathValue("id")

		var acquired bool
		var err error
		if req.ForAllUsers {
			acquired, err = engine.LockForAllUsers(r.Context(), workflowID, actor)
		} else {
			acquired, err = engine.AcquireLock(r.Context(), workflowID, &actor)
		}
		if err != nil {
			WriteError(w, err)

			return
		}
		if !acquired {
			WriteError(w, resflow.ErrLocked)

			return
		}

		WriteJSON(w, http.StatusOK, LockResponse{WorkflowID: workflowID, Locked: true})
	}
}

func HandleUnlockWorkflow(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		workflowID := r.PathValue("id")

		released, err := engine.ReleaseLock(r.Context(), workflowID, actor)
		if err != nil {
			WriteError(w, err)

			return
		}
		if !released {
			WriteError(w, resflow.ErrLocked)

			return
		}

		WriteJSON(w, http.StatusOK, LockResponse{WorkflowID: workflowID, Locked: false})
	}
}

func HandleGetStep(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		workflow, err := engine.GetWorkflow(ctx, r.PathValue("id"))
		if err != nil {
			WriteError(w, err)

			return
		}

		step, err := workflow.Step(r.PathValue("step_id"))
		if err != nil {
			WriteError(w, err)

			return
		}

		view, err := NewStepView(ctx, engine, workflow, step, actor)
		if err != nil {
			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusOK, view)
	}
}

func HandleSubmitStep(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		var submission resflow.Submission
		if err := DecodeBody(r, &submission); err != nil {
			WriteErrorResponse(w, err, http.StatusBadRequest)

			return
		}

		step, err := engine.SubmitStep(r.Context(), r.PathValue("id"), r.PathValue("step_id"), actor, submission)
		if err != nil {
			var validationErr *resflow.ValidationError
			if errors.As(err, &validationErr) {
				WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
					Message:   validationErr.Message,
					Parameter: validationErr.Parameter,
					Step:      step,
				})

				return
			}

			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusOK, step)
	}
}

func HandleResetStep(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		reset, err := engine.ResetStep(r.Context(), r.PathValue("id"), r.PathValue("step_id"), actor)
		if err != nil {
			WriteError(w, err)

			return
		}

		resp := ResetResponse{StepIDs: make([]string, 0, len(reset))}
		for _, step := range reset {
			resp.StepIDs = append(resp.StepIDs, step.ID)
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func HandleViewResult(engine resflow.IEngine, extractActorFn ExtractActorFn) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := extractActor(w, r, extractActorFn)
		if !ok {
			return
		}

		view, err := engine.ViewResult(r.Context(), r.PathValue("id"), r.PathValue("step_id"), r.PathValue("result_id"), actor)
		if err != nil {
			WriteError(w, err)

			return
		}

		WriteJSON(w, http.StatusOK, view)
	}
}

func HandleGetCatalog(engine resflow.IEngine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, engine.Catalog())
	}
}

func HandleGetCatalogSchema() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		schema, err := resflow.CatalogSchema()
		if err != nil {
			WriteError(w, err)

			return
		}

		w.Header().Set("Content-Type", "application/schema+json")
		_, _ = w.Write(schema)
	}
}
