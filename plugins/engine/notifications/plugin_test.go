package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rom8726/resflow"
)

type recordingChannel struct {
	sent []Notification
	err  error
}

func (c *recordingChannel) Send(_ context.Context, notification Notification) error {
	c.sent = append(c.sent, notification)

	return c.err
}

func newWorkflow(t *testing.T) (*resflow.Workflow, *resflow.WorkflowStep) {
	t.Helper()

	workflow := resflow.NewWorkflow("res-1", "flood_study", "Study", "alice")
	step, err := resflow.NewStep(resflow.StepTypeGeneric, "Describe")
	require.NoError(t, err)
	workflow.AddStep(step)

	return workflow, step
}

func TestNotificationsPlugin_Events(t *testing.T) {
	channel := &recordingChannel{}
	plugin := New(channel)
	workflow, step := newWorkflow(t)
	ctx := context.Background()

	require.NoError(t, plugin.OnStepFailed(ctx, workflow, step, errors.New("bad geometry")))
	require.NoError(t, plugin.OnStepReset(ctx, workflow, []*resflow.WorkflowStep{step}))
	require.NoError(t, plugin.OnLockAcquired(ctx, workflow, resflow.LockedForAllUsers))
	require.NoError(t, plugin.OnWorkflowComplete(ctx, workflow))

	require.Len(t, channel.sent, 4)

	failed := channel.sent[0]
	assert.Equal(t, NotificationTypeStepFailed, failed.Type)
	assert.Equal(t, "res-1", failed.ResourceID)
	assert.Equal(t, []string{step.ID}, failed.StepIDs)
	assert.Equal(t, "bad geometry", failed.Error)

	assert.Equal(t, NotificationTypeStepsReset, channel.sent[1].Type)
	assert.Equal(t, resflow.LockedForAllUsers, channel.sent[2].Holder)
	assert.Equal(t, NotificationTypeWorkflowCompleted, channel.sent[3].Type)
}

func TestNotificationsPlugin_EmptyResetIsSkipped(t *testing.T) {
	channel := &recordingChannel{}
	workflow, _ := newWorkflow(t)

	require.NoError(t, New(channel).OnStepReset(context.Background(), workflow, nil))
	assert.Empty(t, channel.sent)
}

func TestNotificationsPlugin_NilChannel(t *testing.T) {
	plugin := New(nil)
	workflow, step := newWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, plugin.OnWorkflowComplete(ctx, workflow))
	assert.NoError(t, plugin.OnStepFailed(ctx, workflow, step, nil))
	assert.NoError(t, plugin.OnLockReleased(ctx, workflow, "alice"))
}

func TestNotificationsPlugin_ChannelErrorIsReturned(t *testing.T) {
	channel := &recordingChannel{err: errors.New("unreachable")}
	workflow, _ := newWorkflow(t)

	err := New(channel).OnLockReleased(context.Background(), workflow, "alice")
	assert.EqualError(t, err, "unreachable")
}

func TestWebhookChannel_Send(t *testing.T) {
	var received Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	channel := NewWebhookChannel(server.URL, time.Second)
	err := channel.Send(context.Background(), Notification{
		Type:       NotificationTypeWorkflowCompleted,
		WorkflowID: "wf-1",
	})

	require.NoError(t, err)
	assert.Equal(t, NotificationTypeWorkflowCompleted, received.Type)
	assert.Equal(t, "wf-1", received.WorkflowID)
}

func TestWebhookChannel_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookChannel(server.URL, time.Second).Send(context.Background(), Notification{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
