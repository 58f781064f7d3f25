package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rom8726/resflow"
)

func formStep(t *testing.T, workflowType string, form map[string]any) (*resflow.Workflow, *resflow.WorkflowStep) {
	t.Helper()

	workflow := resflow.NewWorkflow("res-1", workflowType, "Study", "alice")
	step, err := resflow.NewStep(resflow.StepTypeFormInput, "Options")
	require.NoError(t, err)
	step.ParseParameters(map[string]any{
		resflow.ParamFormValues:   form,
		resflow.ParamResourceName: "Dam 7",
	})
	workflow.AddStep(step)

	return workflow, step
}

func TestValidationPlugin_NoRules(t *testing.T) {
	p := New()
	workflow, step := formStep(t, "flood_study", map[string]any{})

	assert.NoError(t, p.OnStepSubmitted(context.Background(), workflow, step, resflow.Actor{}))
	assert.Equal(t, "validation", p.Name())
	assert.Equal(t, resflow.PriorityHigh, p.Priority())
}

func TestValidationPlugin_RuleFailureIsValidationError(t *testing.T) {
	p := New()
	p.AddRule("", "Options", RequireFormValues("return_period"))
	workflow, step := formStep(t, "flood_study", map[string]any{"storm": "SCS"})

	err := p.OnStepSubmitted(context.Background(), workflow, step, resflow.Actor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resflow.ErrValidation))

	var vErr *resflow.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Options", vErr.Step)
	assert.Contains(t, vErr.Message, "return_period")
}

func TestValidationPlugin_RulesScopedByWorkflowType(t *testing.T) {
	p := New()
	p.AddRule("dam_safety", "Options", func(map[string]any) error { return errors.New("never") })

	workflow, step := formStep(t, "flood_study", map[string]any{})
	assert.NoError(t, p.OnStepSubmitted(context.Background(), workflow, step, resflow.Actor{}))

	workflow, step = formStep(t, "dam_safety", map[string]any{})
	assert.Error(t, p.OnStepSubmitted(context.Background(), workflow, step, resflow.Actor{}))
}

func TestRequireFormValues(t *testing.T) {
	rule := RequireFormValues("a", "b")

	assert.NoError(t, rule(map[string]any{resflow.ParamFormValues: map[string]any{"a": 1, "b": false}}))
	assert.Error(t, rule(map[string]any{resflow.ParamFormValues: map[string]any{"a": 1, "b": ""}}))
	assert.Error(t, rule(map[string]any{}))
}

func TestValidationPlugin_AddCatalogRules(t *testing.T) {
	catalog, err := resflow.NewCatalog(resflow.WorkflowDefinition{
		Type: "flood_study",
		Steps: []resflow.StepTemplate{
			{
				Type:    resflow.StepTypeFormInput,
				Name:    "Options",
				Options: map[string]any{OptionRequiredFields: []any{"return_period", ""}},
			},
			{Type: resflow.StepTypeFormInput, Name: "Notes"},
			{
				Type:    resflow.StepTypeGeneric,
				Name:    "Model",
				Options: map[string]any{OptionRequiredFields: []any{"ignored"}},
			},
		},
	})
	require.NoError(t, err)

	p := New()
	assert.Equal(t, 1, p.AddCatalogRules(catalog))

	workflow, step := formStep(t, "flood_study", map[string]any{})
	err = p.OnStepSubmitted(context.Background(), workflow, step, resflow.Actor{})
	require.ErrorIs(t, err, resflow.ErrValidation)

	workflow, step = formStep(t, "flood_study", map[string]any{"return_period": 100})
	assert.NoError(t, p.OnStepSubmitted(context.Background(), workflow, step, resflow.Actor{}))
}
