package resflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	OptionResourceLockRequired    = "resource_lock_required"
	OptionReleaseLockOnCompletion = "release_resource_lock_on_completion"
)

// Submission carries user input for a step. Status is honored by set-status
// steps only and must be one of the statuses the step offers.
type Submission struct {
	Values map[string]any `json:"values"`
	Status Status         `json:"status,omitempty"`
}

// ResultView is a result opened from its step, with its neighbours for paging.
type ResultView struct {
	Result     *Result `json:"result"`
	PreviousID string  `json:"previous_id,omitempty"`
	NextID     string  `json:"next_id,omitempty"`
}

// Engine runs every mutation of a workflow inside one transaction on a fresh,
// row-locked load of the aggregate.
type Engine struct {
	txManager     TxManager
	store         Store
	catalog       *Catalog
	permissions   PermissionChecker
	pluginManager *PluginManager
}

func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{}
	for _, opt := range opts {
		opt(engine)
	}

	if engine.store == nil {
		engine.store = NewMemoryStore()
	}
	if engine.txManager == nil {
		if store, ok := engine.store.(*SQLiteStore); ok {
			engine.txManager = NewSQLiteTxManager(store)
		} else {
			engine.txManager = NewMemoryTxManager()
		}
	}
	if manager, ok := engine.txManager.(*MemoryTxManager); ok {
		if store, ok := engine.store.(snapshotter); ok {
			manager.track(store)
		}
	}
	if engine.catalog == nil {
		engine.catalog, _ = NewCatalog()
	}
	if engine.pluginManager == nil {
		engine.pluginManager = NewPluginManager()
	}

	return engine
}

func (engine *Engine) Catalog() *Catalog {
	return engine.catalog
}

type afterCommit []func(ctx context.Context)

func (a *afterCommit) add(fn func(ctx context.Context)) {
	*a = append(*a, fn)
}

// transact runs fn in a read-committed transaction and fires the collected
// observational hooks once it has committed.
func (engine *Engine) transact(ctx context.Context, fn func(ctx context.Context, after *afterCommit) error) error {
	var after afterCommit

	err := engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		after = after[:0]

		return fn(ctx, &after)
	})
	if err != nil {
		return err
	}

	for _, hook := range after {
		hook(ctx)
	}

	return nil
}

// resolveActor grants the user lock override to actors holding the permission.
func (engine *Engine) resolveActor(ctx context.Context, actor Actor) (Actor, error) {
	if actor.CanOverride || engine.permissions == nil || actor.Identity == "" {
		return actor, nil
	}

	ok, err := engine.permissions.HasPermission(ctx, actor, PermissionOverrideUserLocks)
	if err != nil {
		return actor, fmt.Errorf("check override permission: %w", err)
	}
	actor.CanOverride = ok

	return actor, nil
}

func (engine *Engine) HasActiveRole(ctx context.Context, actor Actor, step *WorkflowStep) (bool, error) {
	return HasActiveRole(ctx, engine.permissions, actor, step)
}

func (engine *Engine) CreateResource(ctx context.Context, resource *Resource) error {
	return engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		if err := engine.store.CreateResource(ctx, resource); err != nil {
			return fmt.Errorf("create resource: %w", err)
		}

		return nil
	})
}

func (engine *Engine) GetResource(ctx context.Context, id string) (*Resource, error) {
	return engine.store.GetResource(ctx, id)
}

// DeleteResource removes the resource together with its workflows.
func (engine *Engine) DeleteResource(ctx context.Context, id string) error {
	return engine.store.DeleteResource(ctx, id)
}

func (engine *Engine) SetResourceStatus(ctx context.Context, id, key string, status Status) error {
	return engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		resource, err := engine.store.GetResourceForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("get resource: %w", err)
		}

		if err := resource.SetStatus(key, status); err != nil {
			return err
		}

		return engine.store.UpdateResource(ctx, resource)
	})
}

// StartWorkflow instantiates workflowType from the catalog for the resource.
// An empty name falls back to the type's display name.
func (engine *Engine) StartWorkflow(
	ctx context.Context,
	resourceID string,
	workflowType string,
	name string,
	creator Actor,
) (*Workflow, error) {
	def, err := engine.catalog.Definition(workflowType)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = def.DisplayName
	}
	if name == "" {
		name = def.Type
	}

	workflow, err := def.Instantiate(resourceID, name, creator.Identity)
	if err != nil {
		return nil, fmt.Errorf("instantiate workflow: %w", err)
	}

	err = engine.transact(ctx, func(ctx context.Context, _ *afterCommit) error {
		if _, err := engine.store.GetResource(ctx, resourceID); err != nil {
			return fmt.Errorf("get resource: %w", err)
		}

		if err := engine.pluginManager.ExecuteWorkflowStart(ctx, workflow); err != nil {
			return err
		}

		if err := engine.store.CreateWorkflow(ctx, workflow); err != nil {
			return fmt.Errorf("create workflow: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str(KeyWorkflowID, workflow.ID).
		Str(KeyResourceID, resourceID).
		Str("type", workflowType).
		Int("steps", len(workflow.Steps)).
		Msg("workflow started")

	return workflow, nil
}

func (engine *Engine) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	return engine.store.GetWorkflow(ctx, id)
}

func (engine *Engine) ListWorkflows(ctx context.Context, resourceID string) ([]*Workflow, error) {
	return engine.store.ListWorkflows(ctx, resourceID)
}

func (engine *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	return engine.store.DeleteWorkflow(ctx, id)
}

// AcquireLock locks the workflow for actor, or for all users when actor is nil.
func (engine *Engine) AcquireLock(ctx context.Context, workflowID string, actor *Actor) (bool, error) {
	var acquired bool

	err := engine.transact(ctx, func(ctx context.Context, after *afterCommit) error {
		workflow, err := engine.store.GetWorkflowForUpdate(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("get workflow: %w", err)
		}

		before := workflow.LockHolder()
		acquired = workflow.AcquireUserLock(actor)
		if !acquired || workflow.LockHolder() == before {
			return nil
		}

		if err := engine.store.UpdateWorkflow(ctx, workflow); err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}

		holder := workflow.LockHolder()
		after.add(func(ctx context.Context) {
			engine.pluginManager.ExecuteLockAcquired(ctx, workflow, holder)
		})

		return nil
	})
	if err != nil {
		return false, err
	}

	return acquired, nil
}

// LockForAllUsers puts the workflow into the all-users lock. Only actors that
// may override user locks can do that, since nobody else can release it.
func (engine *Engine) LockForAllUsers(ctx context.Context, workflowID string, actor Actor) (bool, error) {
	actor, err := engine.resolveActor(ctx, actor)
	if err != nil {
		return false, err
	}
	if !actor.CanOverride {
		return false, fmt.Errorf("lock workflow %s for all users: %w", workflowID, ErrOverrideRequired)
	}

	return engine.AcquireLock(ctx, workflowID, nil)
}

func (engine *Engine) ReleaseLock(ctx context.Context, workflowID string, actor Actor) (bool, error) {
	actor, err := engine.resolveActor(ctx, actor)
	if err != nil {
		return false, err
	}

	var released bool

	err = engine.transact(ctx, func(ctx context.Context, after *afterCommit) error {
		workflow, err := engine.store.GetWorkflowForUpdate(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("get workflow: %w", err)
		}

		holder := workflow.LockHolder()
		released = workflow.ReleaseUserLock(actor)
		if !released || holder == "" {
			return nil
		}

		if err := engine.store.UpdateWorkflow(ctx, workflow); err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}

		after.add(func(ctx context.Context) {
			engine.pluginManager.ExecuteLockReleased(ctx, workflow, holder)
		})

		return nil
	})
	if err != nil {
		return false, err
	}

	return released, nil
}

// SubmitStep applies user input to a step. A validation failure is committed
// as an Error status on the step and returned together with the step.
func (engine *Engine) SubmitStep(
	ctx context.Context,
	workflowID string,
	stepID string,
	actor Actor,
	submission Submission,
) (*WorkflowStep, error) {
	actor, err := engine.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var (
		submitted     *WorkflowStep
		validationErr error
	)

	err = engine.transact(ctx, func(ctx context.Context, after *afterCommit) error {
		workflow, step, err := engine.loadStepForUpdate(ctx, workflowID, stepID)
		if err != nil {
			return err
		}

		if err := engine.checkEditable(ctx, workflow, step, actor); err != nil {
			return err
		}

		if optionBool(step, OptionResourceLockRequired) {
			if err := engine.lockResource(ctx, workflow.ResourceID, actor); err != nil {
				return err
			}
		}

		workflowWasComplete := workflow.Complete()
		stepWasComplete := step.Complete()

		wasDirty := step.Dirty

		// fail commits the Error status instead of aborting the transaction.
		fail := func(err error) error {
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				return err
			}

			step.Dirty = wasDirty
			_ = step.SetRootStatus(StatusError)
			if err := engine.store.UpdateStep(ctx, step); err != nil {
				return fmt.Errorf("update step: %w", err)
			}

			submitted, validationErr = step, vErr
			after.add(func(ctx context.Context) {
				engine.pluginManager.ExecuteStepFailed(ctx, workflow, step, vErr)
			})

			return nil
		}

		step.ParseParameters(submission.Values)

		status, err := submittedStatus(step, submission)
		if err != nil {
			return fail(err)
		}

		if stepWasComplete {
			step.Dirty = true
		}
		if err := step.SetRootStatus(status); err != nil {
			return err
		}

		if err := engine.pluginManager.ExecuteStepSubmitted(ctx, workflow, step, actor); err != nil {
			return fail(err)
		}

		if step.Dirty {
			reset, err := workflow.ResetNextSteps(step, false)
			if err != nil {
				return err
			}
			if err := engine.saveSteps(ctx, reset); err != nil {
				return err
			}
			step.Dirty = false

			if len(reset) > 0 {
				after.add(func(ctx context.Context) {
					engine.pluginManager.ExecuteStepReset(ctx, workflow, reset)
				})
			}
		}

		if err := engine.store.UpdateStep(ctx, step); err != nil {
			return fmt.Errorf("update step: %w", err)
		}

		if optionBool(step, OptionReleaseLockOnCompletion) && step.Complete() {
			if err := engine.unlockResource(ctx, workflow.ResourceID, actor); err != nil {
				return err
			}
		}

		if err := engine.finishWorkflow(ctx, workflow, workflowWasComplete, after); err != nil {
			return err
		}

		submitted = step

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str(KeyWorkflowID, workflowID).
		Str("step", submitted.Name).
		Str(KeyStatus, string(submitted.RootStatus())).
		Msg("step submitted")

	return submitted, validationErr
}

// submittedStatus validates the step and picks the status it moves to.
func submittedStatus(step *WorkflowStep, submission Submission) (Status, error) {
	if err := step.Validate(); err != nil {
		return StatusEmpty, err
	}

	if step.Type != StepTypeSetStatus {
		return StatusComplete, nil
	}

	allowed, err := AllowedStatuses(step)
	if err != nil {
		return StatusEmpty, err
	}

	requested := submission.Status
	if requested == StatusEmpty {
		if len(allowed) != 1 {
			return StatusEmpty, newValidationError(step, "", "a status must be selected")
		}
		requested = allowed[0]
	}
	if !requested.In(allowed) {
		return StatusEmpty, newValidationError(step, "", "status %q is not offered by this step", requested)
	}

	return requested, nil
}

// SetStepStatus writes one entry of the step's status ledger.
func (engine *Engine) SetStepStatus(
	ctx context.Context,
	workflowID string,
	stepID string,
	key string,
	status Status,
	actor Actor,
) (*WorkflowStep, error) {
	actor, err := engine.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var updated *WorkflowStep

	err = engine.transact(ctx, func(ctx context.Context, after *afterCommit) error {
		workflow, step, err := engine.loadStepForUpdate(ctx, workflowID, stepID)
		if err != nil {
			return err
		}

		if workflow.IsLockedFor(actor) {
			return fmt.Errorf("%w: held by %q", ErrLocked, workflow.LockHolder())
		}

		workflowWasComplete := workflow.Complete()
		if err := step.SetStatus(key, status); err != nil {
			return err
		}

		if err := engine.store.UpdateStep(ctx, step); err != nil {
			return fmt.Errorf("update step: %w", err)
		}

		if err := engine.finishWorkflow(ctx, workflow, workflowWasComplete, after); err != nil {
			return err
		}

		updated = step

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ResetStep resets the step and every touched step after it.
func (engine *Engine) ResetStep(ctx context.Context, workflowID, stepID string, actor Actor) ([]*WorkflowStep, error) {
	actor, err := engine.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var reset []*WorkflowStep

	err = engine.transact(ctx, func(ctx context.Context, after *afterCommit) error {
		workflow, step, err := engine.loadStepForUpdate(ctx, workflowID, stepID)
		if err != nil {
			return err
		}

		if err := engine.checkEditable(ctx, workflow, step, actor); err != nil {
			return err
		}

		reset, err = workflow.ResetNextSteps(step, true)
		if err != nil {
			return err
		}
		if err := engine.saveSteps(ctx, reset); err != nil {
			return err
		}

		if len(reset) > 0 {
			after.add(func(ctx context.Context) {
				engine.pluginManager.ExecuteStepReset(ctx, workflow, reset)
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reset, nil
}

// AddResult appends result to the step with stepID, or to the workflow
// itself when stepID is empty.
func (engine *Engine) AddResult(ctx context.Context, workflowID, stepID string, result *Result) error {
	return engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		workflow, err := engine.store.GetWorkflowForUpdate(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("get workflow: %w", err)
		}

		if stepID == "" {
			workflow.AppendResult(result)
		} else {
			step, err := workflow.Step(stepID)
			if err != nil {
				return err
			}
			if step.Type != StepTypeResults {
				return fmt.Errorf("%w: step %q does not hold results", ErrNotOwned, step.Name)
			}
			step.AppendResult(result)
		}

		if err := engine.store.CreateResult(ctx, result); err != nil {
			return fmt.Errorf("create result: %w", err)
		}

		return nil
	})
}

// SaveResult persists data and options written by a result producer.
func (engine *Engine) SaveResult(ctx context.Context, result *Result) error {
	return engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		if err := engine.store.UpdateResult(ctx, result); err != nil {
			return fmt.Errorf("update result: %w", err)
		}

		return nil
	})
}

// ViewResult returns a result with its neighbours. The step remembers it as
// the last viewed result only when viewer could edit the step.
func (engine *Engine) ViewResult(ctx context.Context, workflowID, stepID, id string, viewer Actor) (*ResultView, error) {
	viewer, err := engine.resolveActor(ctx, viewer)
	if err != nil {
		return nil, err
	}

	var view *ResultView

	err = engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		workflow, step, err := engine.loadStepForUpdate(ctx, workflowID, stepID)
		if err != nil {
			return err
		}

		result := step.Result(id)
		if result == nil {
			return fmt.Errorf("result %q: %w", id, ErrEntityNotFound)
		}

		record, err := engine.mayRecordView(ctx, workflow, step, viewer)
		if err != nil {
			return err
		}
		if record {
			if err := step.SetLastResult(result); err != nil {
				return err
			}
			if err := engine.store.UpdateStep(ctx, step); err != nil {
				return fmt.Errorf("update step: %w", err)
			}
		}

		prev, next, err := step.AdjacentResults(result)
		if err != nil {
			return err
		}

		view = &ResultView{Result: result, PreviousID: resultID(prev), NextID: resultID(next)}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

func (engine *Engine) mayRecordView(ctx context.Context, workflow *Workflow, step *WorkflowStep, viewer Actor) (bool, error) {
	if viewer.Identity == "" || workflow.IsLockedFor(viewer) {
		return false, nil
	}

	return HasActiveRole(ctx, engine.permissions, viewer, step)
}

func (engine *Engine) loadStepForUpdate(ctx context.Context, workflowID, stepID string) (*Workflow, *WorkflowStep, error) {
	workflow, err := engine.store.GetWorkflowForUpdate(ctx, workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("get workflow: %w", err)
	}

	step, err := workflow.Step(stepID)
	if err != nil {
		return nil, nil, err
	}

	return workflow, step, nil
}

func (engine *Engine) checkEditable(ctx context.Context, workflow *Workflow, step *WorkflowStep, actor Actor) error {
	if workflow.IsLockedFor(actor) {
		return fmt.Errorf("%w: held by %q", ErrLocked, workflow.LockHolder())
	}

	ok, err := engine.HasActiveRole(ctx, actor, step)
	if err != nil {
		return fmt.Errorf("check active roles: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: step %q", ErrReadOnly, step.Name)
	}

	return nil
}

func (engine *Engine) saveSteps(ctx context.Context, steps []*WorkflowStep) error {
	for _, step := range steps {
		if err := engine.store.UpdateStep(ctx, step); err != nil {
			return fmt.Errorf("update step %q: %w", step.Name, err)
		}
		for _, result := range step.Results {
			if err := engine.store.UpdateResult(ctx, result); err != nil {
				return fmt.Errorf("update result %q: %w", result.Codename, err)
			}
		}
	}

	return nil
}

// finishWorkflow reacts to the workflow becoming complete: it locks the
// workflow for all users when configured and notifies plugins.
func (engine *Engine) finishWorkflow(ctx context.Context, workflow *Workflow, wasComplete bool, after *afterCommit) error {
	if wasComplete || !workflow.Complete() {
		return nil
	}

	if workflow.LockWhenFinished && !workflow.IsLockedForAllUsers() {
		workflow.ReleaseUserLock(Actor{CanOverride: true})
		workflow.AcquireUserLock(nil)

		if err := engine.store.UpdateWorkflow(ctx, workflow); err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}

		after.add(func(ctx context.Context) {
			engine.pluginManager.ExecuteLockAcquired(ctx, workflow, LockedForAllUsers)
		})
	}

	after.add(func(ctx context.Context) {
		engine.pluginManager.ExecuteWorkflowComplete(ctx, workflow)
	})

	return nil
}

func (engine *Engine) lockResource(ctx context.Context, resourceID string, actor Actor) error {
	resource, err := engine.store.GetResourceForUpdate(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("get resource: %w", err)
	}

	if resource.IsLockedFor(actor) {
		return fmt.Errorf("%w: resource %q held by %q", ErrLocked, resource.ID, resource.LockHolder())
	}

	before := resource.LockHolder()
	if !resource.AcquireUserLock(&actor) || resource.LockHolder() == before {
		return nil
	}

	return engine.store.UpdateResource(ctx, resource)
}

func (engine *Engine) unlockResource(ctx context.Context, resourceID string, actor Actor) error {
	resource, err := engine.store.GetResourceForUpdate(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("get resource: %w", err)
	}

	if !resource.IsUserLocked() || !resource.ReleaseUserLock(actor) {
		return nil
	}

	return engine.store.UpdateResource(ctx, resource)
}

func optionBool(step *WorkflowStep, key string) bool {
	value, _ := step.Options[key].(bool)

	return value
}
