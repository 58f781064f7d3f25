package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rom8726/resflow"
)

type mockSetter struct {
	mock.Mock
}

func (m *mockSetter) SetStepStatus(
	ctx context.Context,
	workflowID string,
	stepID string,
	key string,
	status resflow.Status,
	actor resflow.Actor,
) (*resflow.WorkflowStep, error) {
	args := m.Called(ctx, workflowID, stepID, key, status, actor)
	step, _ := args.Get(0).(*resflow.WorkflowStep)

	return step, args.Error(1)
}

func reviewedStep(t *testing.T, key string, status resflow.Status) *resflow.WorkflowStep {
	t.Helper()

	step, err := resflow.NewStep(resflow.StepTypeGeneric, "Review")
	require.NoError(t, err)
	require.NoError(t, step.SetStatus(key, status))

	return step
}

func newRequest(body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/wf-1/steps/st-1/review/approve", &buf)
	req.SetPathValue("id", "wf-1")
	req.SetPathValue("step_id", "st-1")

	return req
}

func extractReviewer(*http.Request) (resflow.Actor, error) {
	return resflow.Actor{Identity: "rita"}, nil
}

func TestHandleReview_Approve(t *testing.T) {
	setter := &mockSetter{}
	actor := resflow.Actor{Identity: "rita"}
	step := reviewedStep(t, resflow.RootStatusKey, resflow.StatusApproved)

	setter.On("SetStepStatus", mock.Anything, "wf-1", "st-1", resflow.RootStatusKey, resflow.StatusApproved, actor).
		Return(step, nil)

	w := httptest.NewRecorder()
	HandleReview(setter, nil, extractReviewer, resflow.StatusApproved)(w, newRequest(DecisionRequest{Comment: "ok"}))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp DecisionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, step.ID, resp.StepID)
	assert.Equal(t, resflow.StatusApproved, resp.Status)
	setter.AssertExpectations(t)
}

func TestHandleReview_CustomStatusKey(t *testing.T) {
	setter := &mockSetter{}
	step := reviewedStep(t, "hydrology", resflow.StatusChangesRequested)

	setter.On("SetStepStatus", mock.Anything, "wf-1", "st-1", "hydrology", resflow.StatusChangesRequested, mock.Anything).
		Return(step, nil)

	w := httptest.NewRecorder()
	HandleReview(setter, nil, extractReviewer, resflow.StatusChangesRequested)(
		w, newRequest(DecisionRequest{StatusKey: "hydrology"}),
	)

	assert.Equal(t, http.StatusOK, w.Code)
	setter.AssertExpectations(t)
}

func TestHandleReview_NotReviewer(t *testing.T) {
	setter := &mockSetter{}
	permissions := resflow.StaticPermissions{}

	w := httptest.NewRecorder()
	HandleReview(setter, permissions, extractReviewer, resflow.StatusRejected)(w, newRequest(nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	setter.AssertNotCalled(t, "SetStepStatus")
}

func TestHandleReview_ReviewerAllowed(t *testing.T) {
	setter := &mockSetter{}
	permissions := resflow.StaticPermissions{}
	permissions.Grant("rita", resflow.RoleOrgReviewer)
	step := reviewedStep(t, resflow.RootStatusKey, resflow.StatusRejected)

	setter.On("SetStepStatus", mock.Anything, "wf-1", "st-1", resflow.RootStatusKey, resflow.StatusRejected, mock.Anything).
		Return(step, nil)

	w := httptest.NewRecorder()
	HandleReview(setter, permissions, extractReviewer, resflow.StatusRejected)(w, newRequest(nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReview_ExtractActorFails(t *testing.T) {
	setter := &mockSetter{}
	extract := func(*http.Request) (resflow.Actor, error) {
		return resflow.Actor{}, errors.New("no session")
	}

	w := httptest.NewRecorder()
	HandleReview(setter, nil, extract, resflow.StatusApproved)(w, newRequest(nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleReview_MissingPathValues(t *testing.T) {
	setter := &mockSetter{}
	req := httptest.NewRequest(http.MethodPost, "/api/workflows//steps//review/approve", nil)

	w := httptest.NewRecorder()
	HandleReview(setter, nil, extractReviewer, resflow.StatusApproved)(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleReview_EngineErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", resflow.ErrEntityNotFound, http.StatusNotFound},
		{"locked", fmt.Errorf("%w: held by %q", resflow.ErrLocked, "bob"), http.StatusConflict},
		{"invalid status", resflow.ErrInvalidStatus, http.StatusBadRequest},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setter := &mockSetter{}
			setter.On("SetStepStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tt.err)

			w := httptest.NewRecorder()
			HandleReview(setter, nil, extractReviewer, resflow.StatusApproved)(w, newRequest(nil))

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestPlugin_RegisterRoutes(t *testing.T) {
	setter := &mockSetter{}
	step := reviewedStep(t, resflow.RootStatusKey, resflow.StatusChangesRequested)
	setter.On("SetStepStatus", mock.Anything, "wf-1", "st-1", resflow.RootStatusKey, resflow.StatusChangesRequested, mock.Anything).
		Return(step, nil)

	mux := http.NewServeMux()
	New(setter, nil, extractReviewer).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/wf-1/steps/st-1/review/request-changes", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	setter.AssertExpectations(t)
}
