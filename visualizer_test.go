package resflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visualizerDefinition(t *testing.T) *WorkflowDefinition {
	t.Helper()

	def, err := NewBuilder("flood_study", WithBuilderDisplayName("Flood Study"), WithBuilderLockWhenFinished()).
		FormStep("Options", "Run Options").
		WithActiveRoles(RoleOrgUser).
		Step(StepTypeSpatialInput, "Area", WithStepParent("Options")).
		SetStatusStep("Approve", []Status{StatusApproved, StatusRejected}).
		ResultsStep("Review").
		Result(ResultTypeDataset, "Peak Flows", "peak_flows", nil).
		Build()
	require.NoError(t, err)

	return def
}

func TestVisualizer_RenderDefinition(t *testing.T) {
	result := NewVisualizer().RenderDefinition(visualizerDefinition(t))

	assert.Contains(t, result, "Workflow type: Flood Study (flood_study)")
	assert.Contains(t, result, "1. 📝 Options [form_input_resource_workflow_step]")
	assert.Contains(t, result, "  2. 🗺 Area [spatial_input_resource_workflow_step]")
	assert.Contains(t, result, "roles: user_role_org_user")
	assert.Contains(t, result, "3. 👤 Approve")
	assert.Contains(t, result, "📄 Peak Flows (peak_flows) [dataset_workflow_result]")
	assert.Contains(t, result, "🔒 locked for all users when finished")
}

func TestVisualizer_RenderWorkflow(t *testing.T) {
	workflow, err := visualizerDefinition(t).Instantiate("res-1", "Study", "alice")
	require.NoError(t, err)

	require.NoError(t, workflow.Steps[0].SetRootStatus(StatusComplete))
	require.True(t, workflow.AcquireUserLock(&Actor{Identity: "alice"}))

	result := NewVisualizer().RenderWorkflow(workflow)

	assert.Contains(t, result, "Workflow: Study [flood_study]")
	assert.Contains(t, result, "Status: Continue")
	assert.Contains(t, result, "Locked: alice")
	assert.Contains(t, result, "  ✅ 📝 Options: Complete")
	assert.Contains(t, result, "▶ ⏸ 🗺 Area: Pending")
	assert.Contains(t, result, "📄 Peak Flows")
}

func TestVisualizer_RenderWorkflow_Complete(t *testing.T) {
	def, err := NewBuilder("single").Step(StepTypeGeneric, "Only").Build()
	require.NoError(t, err)

	workflow, err := def.Instantiate("res-1", "Single", "alice")
	require.NoError(t, err)
	require.NoError(t, workflow.Steps[0].SetRootStatus(StatusComplete))
	workflow.AcquireUserLock(nil)

	result := NewVisualizer().RenderWorkflow(workflow)

	assert.Contains(t, result, "Status: Complete")
	assert.Contains(t, result, "Locked: all users")
	assert.NotContains(t, result, "▶")
}

func TestVisualizer_RenderWorkflow_NoSteps(t *testing.T) {
	workflow := NewWorkflow("res-1", "empty", "Empty", "alice")

	assert.Contains(t, NewVisualizer().RenderWorkflow(workflow), "Status: (no steps)")
}
