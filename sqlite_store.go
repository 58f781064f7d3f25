package resflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is a single-connection Store backed by SQLite. Pair it with
// SQLiteTxManager: SQLite has no row locks, so the ForUpdate reads rely on
// the manager serializing callers. Calls made outside a transaction queue
// on the connection.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteInMemoryStore creates a private in-memory database with the schema applied.
func NewSQLiteInMemoryStore() (*SQLiteStore, error) {
	return openSQLiteStore(":memory:")
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	return openSQLiteStore(path)
}

func openSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: consistent and the pragmas applied
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	if err := RunSQLiteMigrations(context.Background(), db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlitePlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sqliteNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEntityNotFound
	}

	return err
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (s *SQLiteStore) CreateResource(ctx context.Context, resource *Resource) error {
	args, err := resourceArgs(resource)
	if err != nil {
		return err
	}

	query := `INSERT INTO resources (` + resourceColumns + `) VALUES (` + sqlitePlaceholders(len(args)) + `)`
	if _, err := s.executor(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetResource(ctx context.Context, id string) (*Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`

	resource, err := scanResource(s.executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, sqliteNotFound(err)
	}

	return resource, nil
}

func (s *SQLiteStore) GetResourceForUpdate(ctx context.Context, id string) (*Resource, error) {
	return s.GetResource(ctx, id)
}

func (s *SQLiteStore) UpdateResource(ctx context.Context, resource *Resource) error {
	args, err := resourceArgs(resource)
	if err != nil {
		return err
	}

	const query = `UPDATE resources
SET name = ?, description = ?, organizations = ?, status = ?, user_lock = ?, attributes = ?
WHERE id = ?`

	updateArgs := append([]any{}, args[1:7]...)
	updateArgs = append(updateArgs, args[0])

	res, err := s.executor(ctx).ExecContext(ctx, query, updateArgs...)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) DeleteResource(ctx context.Context, id string) error {
	res, err := s.executor(ctx).ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) CreateWorkflow(ctx context.Context, workflow *Workflow) error {
	args, err := workflowArgs(workflow)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx sqlExecutor) error {
		query := `INSERT INTO workflows (` + workflowColumns + `) VALUES (` + sqlitePlaceholders(len(args)) + `)`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert workflow: %w", err)
		}

		for _, step := range workflow.Steps {
			if err := insertStep(ctx, tx, step); err != nil {
				return err
			}
			for _, result := range step.Results {
				if err := insertResult(ctx, tx, result); err != nil {
					return err
				}
			}
		}
		for _, result := range workflow.Results {
			if err := insertResult(ctx, tx, result); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`

	var workflow *Workflow
	err := s.withTx(ctx, func(q sqlExecutor) error {
		var err error
		workflow, err = scanWorkflow(q.QueryRowContext(ctx, query, id))
		if err != nil {
			return sqliteNotFound(err)
		}

		return s.loadChildren(ctx, q, workflow)
	})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (s *SQLiteStore) GetWorkflowForUpdate(ctx context.Context, id string) (*Workflow, error) {
	return s.GetWorkflow(ctx, id)
}

func (s *SQLiteStore) loadChildren(ctx context.Context, q sqlExecutor, workflow *Workflow) error {
	rows, err := q.QueryContext(ctx, `SELECT `+stepColumns+`
FROM workflow_steps WHERE workflow_id = ? ORDER BY step_order, seq`, workflow.ID)
	if err != nil {
		return fmt.Errorf("query steps: %w", err)
	}

	var steps []*WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			_ = rows.Close()

			return fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate steps: %w", err)
	}

	rows, err = q.QueryContext(ctx, `SELECT `+resultSelectColumns+`
FROM workflow_results WHERE workflow_id = ? ORDER BY result_order, seq`, workflow.ID)
	if err != nil {
		return fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

func (s *SQLiteStore) ListWorkflows(ctx context.Context, resourceID string) ([]*Workflow, error) {
	var workflows []*Workflow

	err := s.withTx(ctx, func(q sqlExecutor) error {
		rows, err := q.QueryContext(ctx, `SELECT `+workflowColumns+`
FROM workflows WHERE resource_id = ? ORDER BY created_at, seq`, resourceID)
		if err != nil {
			return fmt.Errorf("query workflows: %w", err)
		}

		for rows.Next() {
			workflow, err := scanWorkflow(rows)
			if err != nil {
				_ = rows.Close()

				return fmt.Errorf("scan workflow: %w", err)
			}
			workflows = append(workflows, workflow)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate workflows: %w", err)
		}

		for _, workflow := range workflows {
			if err := s.loadChildren(ctx, q, workflow); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workflows, nil
}

func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, workflow *Workflow) error {
	attributes, err := marshalJSON("attributes", nonNilMap(workflow.Attributes))
	if err != nil {
		return err
	}

	res, err := s.executor(ctx).ExecContext(ctx,
		`UPDATE workflows SET name = ?, lock_when_finished = ?, user_lock = ?, attributes = ? WHERE id = ?`,
		workflow.Name, workflow.LockWhenFinished, workflow.Holder, attributes, workflow.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.executor(ctx).ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) CreateStep(ctx context.Context, step *WorkflowStep) error {
	return insertStep(ctx, s.executor(ctx), step)
}

func insertStep(ctx context.Context, executor sqlExecutor, step *WorkflowStep) error {
	args, err := stepArgs(step)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_steps (` + stepColumns + `) VALUES (` + sqlitePlaceholders(len(args)) + `)`
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}

	return nil
}

func (s *SQLiteStore) UpdateStep(ctx context.Context, step *WorkflowStep) error {
	args, err := stepArgs(step)
	if err != nil {
		return err
	}

	const query = `UPDATE workflow_steps
SET parent_id = ?, name = ?, help = ?, step_order = ?, status = ?, parameters = ?,
	options = ?, attributes = ?, active_roles = ?, dirty = ?, controller = ?
WHERE id = ? AND workflow_id = ? AND type = ?`

	updateArgs := append([]any{args[2]}, args[4:14]...)
	updateArgs = append(updateArgs, args[0], args[1], args[3])

	res, err := s.executor(ctx).ExecContext(ctx, query, updateArgs...)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) CreateResult(ctx context.Context, result *Result) error {
	return insertResult(ctx, s.executor(ctx), result)
}

func insertResult(ctx context.Context, executor sqlExecutor, result *Result) error {
	args, err := resultArgs(result)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_results (` + resultColumns + `) VALUES (` + sqlitePlaceholders(len(args)) + `)`
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	return nil
}

func (s *SQLiteStore) UpdateResult(ctx context.Context, result *Result) error {
	args, err := resultArgs(result)
	if err != nil {
		return err
	}

	const query = `UPDATE workflow_results
SET name = ?, codename = ?, description = ?, result_order = ?, data = ?, status = ?,
	options = ?, attributes = ?, controller = ?
WHERE id = ? AND workflow_id = ? AND step_id IS ? AND type = ?`

	updateArgs := append([]any{}, args[4:13]...)
	updateArgs = append(updateArgs, args[0], args[1], args[2], args[3])

	res, err := s.executor(ctx).ExecContext(ctx, query, updateArgs...)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) DeleteResult(ctx context.Context, id string) error {
	res, err := s.executor(ctx).ExecContext(ctx, `DELETE FROM workflow_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}

	return expectAffected(res)
}
