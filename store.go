package resflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*StoreImpl)(nil)

type StoreImpl struct {
	db Tx
}

func NewStore(pool *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: pool}
}

func (store *StoreImpl) getExecutor(ctx context.Context) Tx {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}

	return store.db
}

func pgPlaceholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}

	return strings.Join(parts, ", ")
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEntityNotFound
	}

	return err
}

func (store *StoreImpl) CreateResource(ctx context.Context, resource *Resource) error {
	executor := store.getExecutor(ctx)

	args, err := resourceArgs(resource)
	if err != nil {
		return err
	}

	query := `INSERT INTO resflow.resources (` + resourceColumns + `) VALUES (` + pgPlaceholders(len(args)) + `)`
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}

	return nil
}

func (store *StoreImpl) GetResource(ctx context.Context, id string) (*Resource, error) {
	return store.getResource(ctx, id, "")
}

func (store *StoreImpl) GetResourceForUpdate(ctx context.Context, id string) (*Resource, error) {
	return store.getResource(ctx, id, " FOR UPDATE")
}

func (store *StoreImpl) getResource(ctx context.Context, id, suffix string) (*Resource, error) {
	executor := store.getExecutor(ctx)

	query := `SELECT ` + resourceColumns + ` FROM resflow.resources WHERE id = $1` + suffix

	resource, err := scanResource(executor.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}

	return resource, nil
}

func (store *StoreImpl) UpdateResource(ctx context.Context, resource *Resource) error {
	executor := store.getExecutor(ctx)

	args, err := resourceArgs(resource)
	if err != nil {
		return err
	}

	const query = `
UPDATE resflow.resources
SET name = $2, description = $3, organizations = $4, status = $5, user_lock = $6, attributes = $7
WHERE id = $1`

	tag, err := executor.Exec(ctx, query, args[:7]...)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) DeleteResource(ctx context.Context, id string) error {
	executor := store.getExecutor(ctx)

	tag, err := executor.Exec(ctx, `DELETE FROM resflow.resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) CreateWorkflow(ctx context.Context, workflow *Workflow) error {
	executor := store.getExecutor(ctx)

	args, err := workflowArgs(workflow)
	if err != nil {
		return err
	}

	query := `INSERT INTO resflow.workflows (` + workflowColumns + `) VALUES (` + pgPlaceholders(len(args)) + `)`
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}

	for _, step := range workflow.Steps {
		if err := store.CreateStep(ctx, step); err != nil {
			return err
		}
		for _, result := range step.Results {
			if err := store.CreateResult(ctx, result); err != nil {
				return err
			}
		}
	}
	for _, result := range workflow.Results {
		if err := store.CreateResult(ctx, result); err != nil {
			return err
		}
	}

	return nil
}

func (store *StoreImpl) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	return store.getWorkflow(ctx, id, "")
}

func (store *StoreImpl) GetWorkflowForUpdate(ctx context.Context, id string) (*Workflow, error) {
	return store.getWorkflow(ctx, id, " FOR UPDATE")
}

func (store *StoreImpl) getWorkflow(ctx context.Context, id, suffix string) (*Workflow, error) {
	executor := store.getExecutor(ctx)

	query := `SELECT ` + workflowColumns + ` FROM resflow.workflows WHERE id = $1` + suffix

	workflow, err := scanWorkflow(executor.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}

	if err := store.loadChildren(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (store *StoreImpl) loadChildren(ctx context.Context, workflow *Workflow) error {
	executor := store.getExecutor(ctx)

	const stepsQuery = `SELECT ` + stepColumns + `
FROM resflow.workflow_steps
WHERE workflow_id = $1
ORDER BY step_order, seq`

	rows, err := executor.Query(ctx, stepsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("query steps: %w", err)
	}

	var steps []*WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			rows.Close()

			return fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate steps: %w", err)
	}

	const resultsQuery = `SELECT ` + resultSelectColumns + `
FROM resflow.workflow_results
WHERE workflow_id = $1
ORDER BY result_order, seq`

	rows, err = executor.Query(ctx, resultsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return fmt.Errorf("scan result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate results: %w", err)
	}

	assemble(workflow, steps, results)

	return nil
}

func (store *StoreImpl) ListWorkflows(ctx context.Context, resourceID string) ([]*Workflow, error) {
	executor := store.getExecutor(ctx)

	const query = `SELECT ` + workflowColumns + `
FROM resflow.workflows
WHERE resource_id = $1
ORDER BY created_at, id`

	rows, err := executor.Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}

	var workflows []*Workflow
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			rows.Close()

			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, workflow)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}

	for _, workflow := range workflows {
		if err := store.loadChildren(ctx, workflow); err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

func (store *StoreImpl) UpdateWorkflow(ctx context.Context, workflow *Workflow) error {
	executor := store.getExecutor(ctx)

	attributes, err := marshalJSON("attributes", nonNilMap(workflow.Attributes))
	if err != nil {
		return err
	}

	const query = `
UPDATE resflow.workflows
SET name = $2, lock_when_finished = $3, user_lock = $4, attributes = $5
WHERE id = $1`

	tag, err := executor.Exec(ctx, query,
		workflow.ID, workflow.Name, workflow.LockWhenFinished, workflow.Holder, attributes,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) DeleteWorkflow(ctx context.Context, id string) error {
	executor := store.getExecutor(ctx)

	tag, err := executor.Exec(ctx, `DELETE FROM resflow.workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) CreateStep(ctx context.Context, step *WorkflowStep) error {
	executor := store.getExecutor(ctx)

	args, err := stepArgs(step)
	if err != nil {
		return err
	}

	query := `INSERT INTO resflow.workflow_steps (` + stepColumns + `) VALUES (` + pgPlaceholders(len(args)) + `)`
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}

	return nil
}

func (store *StoreImpl) UpdateStep(ctx context.Context, step *WorkflowStep) error {
	executor := store.getExecutor(ctx)

	args, err := stepArgs(step)
	if err != nil {
		return err
	}

	const query = `
UPDATE resflow.workflow_steps
SET parent_id = $3, name = $5, help = $6, step_order = $7, status = $8, parameters = $9,
	options = $10, attributes = $11, active_roles = $12, dirty = $13, controller = $14
WHERE id = $1 AND workflow_id = $2 AND type = $4`

	tag, err := executor.Exec(ctx, query, args[:14]...)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) CreateResult(ctx context.Context, result *Result) error {
	executor := store.getExecutor(ctx)

	args, err := resultArgs(result)
	if err != nil {
		return err
	}

	query := `INSERT INTO resflow.workflow_results (` + resultColumns + `) VALUES (` + pgPlaceholders(len(args)) + `)`
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	return nil
}

func (store *StoreImpl) UpdateResult(ctx context.Context, result *Result) error {
	executor := store.getExecutor(ctx)

	args, err := resultArgs(result)
	if err != nil {
		return err
	}

	const query = `
UPDATE resflow.workflow_results
SET name = $5, codename = $6, description = $7, result_order = $8, data = $9, status = $10,
	options = $11, attributes = $12, controller = $13
WHERE id = $1 AND workflow_id = $2 AND step_id IS NOT DISTINCT FROM $3 AND type = $4`

	tag, err := executor.Exec(ctx, query, args[:13]...)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) DeleteResult(ctx context.Context, id string) error {
	executor := store.getExecutor(ctx)

	tag, err := executor.Exec(ctx, `DELETE FROM resflow.workflow_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}
