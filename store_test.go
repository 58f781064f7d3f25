package resflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestSQLStore(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	name := "postgres"
	if useSQLite {
		name = "sqlite"
	}
	t.Logf("running store tests against %s", name)

	testStore(t, func(*testing.T) Store { return store })
}

func storeFixture(t *testing.T) (*Resource, *Workflow) {
	t.Helper()

	resource := NewResource("Dam A", "Spillway study", "org-1")
	require.NoError(t, resource.SetRootStatus(StatusAvailable))
	resource.SetAttribute("region", "north")

	def, err := NewBuilder("flood_study").
		FormStep("Details", "Site Details").
		Step(StepTypeGeneric, "Model").
		WithParent("Details").
		ResultsStep("Results").
		Result(ResultTypeDataset, "Peak Flows", "peak_flows", nil).
		Result(ResultTypePlot, "Hydrograph", "hydrograph", nil).
		Build()
	require.NoError(t, err)

	workflow, err := def.Instantiate(resource.ID, "Spring", "alice")
	require.NoError(t, err)

	summary, err := NewResult(ResultTypeReport, "Summary", "summary")
	require.NoError(t, err)
	workflow.AddResult(summary)

	return resource, workflow
}

func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("resource lifecycle", func(t *testing.T) {
		store := newStore(t)
		resource, _ := storeFixture(t)

		require.NoError(t, store.CreateResource(ctx, resource))

		loaded, err := store.GetResource(ctx, resource.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dam A", loaded.Name)
		assert.Equal(t, []string{"org-1"}, loaded.Organizations)
		assert.Equal(t, StatusAvailable, loaded.RootStatus())
		assert.Equal(t, "north", loaded.AttributeString("region"))

		loaded.Holder = "alice"
		require.NoError(t, loaded.SetStatus("review", StatusUnderReview))
		require.NoError(t, store.UpdateResource(ctx, loaded))

		locked, err := store.GetResourceForUpdate(ctx, resource.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", locked.Holder)
		assert.Equal(t, StatusUnderReview, locked.Status("review", StatusNone))

		require.NoError(t, store.DeleteResource(ctx, resource.ID))
		_, err = store.GetResource(ctx, resource.ID)
		require.ErrorIs(t, err, ErrEntityNotFound)
		require.ErrorIs(t, store.DeleteResource(ctx, resource.ID), ErrEntityNotFound)
		require.ErrorIs(t, store.UpdateResource(ctx, loaded), ErrEntityNotFound)
	})

	t.Run("workflow aggregate", func(t *testing.T) {
		store := newStore(t)
		resource, workflow := storeFixture(t)
		require.NoError(t, store.CreateResource(ctx, resource))
		require.NoError(t, store.CreateWorkflow(ctx, workflow))

		loaded, err := store.GetWorkflow(ctx, workflow.ID)
		require.NoError(t, err)

		assert.Equal(t, workflow.Type, loaded.Type)
		assert.Equal(t, "alice", loaded.CreatorID)
		require.Len(t, loaded.Steps, 3)
		for i, step := range loaded.Steps {
			assert.Equal(t, workflow.Steps[i].ID, step.ID)
			assert.Equal(t, workflow.Steps[i].Type, step.Type)
		}

		model := loaded.Steps[1]
		require.NotNil(t, model.Parent)
		assert.Equal(t, loaded.Steps[0], model.Parent)
		assert.Equal(t, "Site Details", loaded.Steps[0].OptionString("form_title"))

		results := loaded.Steps[2].Results
		require.Len(t, results, 2)
		assert.Equal(t, "peak_flows", results[0].Codename)
		assert.Equal(t, "hydrograph", results[1].Codename)

		require.Len(t, loaded.Results, 1)
		assert.Equal(t, "summary", loaded.Results[0].Codename)
		assert.Empty(t, loaded.Results[0].StepID)

		_, err = store.GetWorkflow(ctx, "missing")
		require.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("step and workflow updates", func(t *testing.T) {
		store := newStore(t)
		resource, workflow := storeFixture(t)
		require.NoError(t, store.CreateResource(ctx, resource))
		require.NoError(t, store.CreateWorkflow(ctx, workflow))

		details := workflow.Steps[0]
		details.ParseParameters(map[string]any{
			ParamFormValues:   map[string]any{"peak_flow": 120},
			ParamResourceName: "Dam A",
		})
		require.NoError(t, details.SetRootStatus(StatusComplete))
		details.Dirty = true
		require.NoError(t, store.UpdateStep(ctx, details))

		workflow.Holder = LockedForAllUsers
		workflow.SetAttribute("note", "frozen")
		require.NoError(t, store.UpdateWorkflow(ctx, workflow))

		loaded, err := store.GetWorkflowForUpdate(ctx, workflow.ID)
		require.NoError(t, err)
		assert.True(t, loaded.IsLockedForAllUsers())
		assert.Equal(t, "frozen", loaded.AttributeString("note"))

		step := loaded.Steps[0]
		assert.Equal(t, StatusComplete, step.RootStatus())
		assert.True(t, step.Dirty)
		values, err := step.Parameter(ParamFormValues)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"peak_flow": float64(120)}, values)
		assert.Equal(t, StatusContinue, loaded.Status())

		ghost, err := NewStep(StepTypeGeneric, "Ghost")
		require.NoError(t, err)
		ghost.WorkflowID = workflow.ID
		require.ErrorIs(t, store.UpdateStep(ctx, ghost), ErrEntityNotFound)
	})

	t.Run("results", func(t *testing.T) {
		store := newStore(t)
		resource, workflow := storeFixture(t)
		require.NoError(t, store.CreateResource(ctx, resource))
		require.NoError(t, store.CreateWorkflow(ctx, workflow))

		table := workflow.Steps[2].Results[0]
		require.NoError(t, table.AddDataset("Flows", []string{"rp", "flow"}, [][]any{{10, 100}, {100, 250}}, true))
		require.NoError(t, table.SetRootStatus(StatusComplete))
		require.NoError(t, store.UpdateResult(ctx, table))

		extra, err := NewResult(ResultTypeSpatial, "Extent", "extent")
		require.NoError(t, err)
		workflow.Steps[2].AppendResult(extra)
		require.NoError(t, store.CreateResult(ctx, extra))

		loaded, err := store.GetWorkflow(ctx, workflow.ID)
		require.NoError(t, err)
		results := loaded.Steps[2].Results
		require.Len(t, results, 3)

		datasets := results[0].Datasets()
		require.Len(t, datasets, 1)
		assert.Equal(t, "Flows", datasets[0]["title"])
		assert.Equal(t, StatusComplete, results[0].RootStatus())
		assert.Equal(t, "extent", results[2].Codename)

		require.NoError(t, store.DeleteResult(ctx, extra.ID))
		require.ErrorIs(t, store.DeleteResult(ctx, extra.ID), ErrEntityNotFound)

		loaded, err = store.GetWorkflow(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.Steps[2].Results, 2)
	})

	t.Run("list and delete", func(t *testing.T) {
		store := newStore(t)
		resource, first := storeFixture(t)
		require.NoError(t, store.CreateResource(ctx, resource))
		require.NoError(t, store.CreateWorkflow(ctx, first))

		_, second := storeFixture(t)
		second.ResourceID = resource.ID
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, store.CreateWorkflow(ctx, second))

		workflows, err := store.ListWorkflows(ctx, resource.ID)
		require.NoError(t, err)
		require.Len(t, workflows, 2)
		assert.Equal(t, first.ID, workflows[0].ID)
		assert.Len(t, workflows[1].Steps, 3)

		empty, err := store.ListWorkflows(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)

		require.NoError(t, store.DeleteWorkflow(ctx, first.ID))
		require.ErrorIs(t, store.DeleteWorkflow(ctx, first.ID), ErrEntityNotFound)

		require.NoError(t, store.DeleteResource(ctx, resource.ID))
		_, err = store.GetWorkflow(ctx, second.ID)
		require.ErrorIs(t, err, ErrEntityNotFound, "workflows go with their resource")
	})
}
