package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rom8726/resflow"
)

type fakeLister struct {
	workflows []*resflow.Workflow
	err       error
}

func (f fakeLister) ListWorkflows(context.Context, string) ([]*resflow.Workflow, error) {
	return f.workflows, f.err
}

func newWorkflow(t *testing.T, status resflow.Status) *resflow.Workflow {
	t.Helper()

	workflow := resflow.NewWorkflow("res-1", "study", "Study", "alice")
	step, err := resflow.NewStep(resflow.StepTypeGeneric, "Only")
	require.NoError(t, err)
	require.NoError(t, step.SetRootStatus(status))
	workflow.AddStep(step)

	return workflow
}

func serve(t *testing.T, monitor resflow.IMonitor, path string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	New(monitor).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestHandleWorkflowStats(t *testing.T) {
	monitor := resflow.NewMonitor(fakeLister{workflows: []*resflow.Workflow{
		newWorkflow(t, resflow.StatusComplete),
		newWorkflow(t, resflow.StatusPending),
	}})

	rec := serve(t, monitor, "/api/resources/res-1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "res-1", resp.ResourceID)
	require.Len(t, resp.Workflows, 1)
	assert.Equal(t, 2, resp.Workflows[0].Total)
	assert.Equal(t, 1, resp.Workflows[0].Complete)
	assert.Equal(t, 1, resp.Workflows[0].InProgress)
}

func TestHandleActiveWorkflows(t *testing.T) {
	pending := newWorkflow(t, resflow.StatusPending)
	monitor := resflow.NewMonitor(fakeLister{workflows: []*resflow.Workflow{
		newWorkflow(t, resflow.StatusComplete),
		pending,
	}})

	rec := serve(t, monitor, "/api/resources/res-1/active")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ActiveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Workflows, 1)
	assert.Equal(t, pending.ID, resp.Workflows[0].WorkflowID)
	assert.Equal(t, "Only", resp.Workflows[0].NextStep)
}

func TestHandleWorkflowStats_NotFound(t *testing.T) {
	monitor := resflow.NewMonitor(fakeLister{err: resflow.ErrEntityNotFound})

	rec := serve(t, monitor, "/api/resources/missing/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleActiveWorkflows_Error(t *testing.T) {
	monitor := resflow.NewMonitor(fakeLister{err: errors.New("db down")})

	rec := serve(t, monitor, "/api/resources/res-1/active")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
