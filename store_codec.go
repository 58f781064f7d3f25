package resflow

import (
	"encoding/json"
	"fmt"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	resourceColumns = `id, name, description, organizations, status, user_lock, attributes, created_at`
	workflowColumns = `id, resource_id, creator_id, type, name, lock_when_finished, user_lock, attributes, created_at`
	stepColumns     = `id, workflow_id, parent_id, type, name, help, step_order, status, parameters, options,
	attributes, active_roles, dirty, controller, created_at`
	resultColumns = `id, workflow_id, step_id, type, name, codename, description, result_order, data, status,
	options, attributes, controller, created_at`
	resultSelectColumns = `id, workflow_id, COALESCE(step_id, ''), type, name, codename, description, result_order,
	data, status, options, attributes, controller, created_at`
)

func marshalJSON(field string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", field, err)
	}

	return data, nil
}

func unmarshalJSON(field string, data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal %s: %w", field, err)
	}

	return nil
}

func resourceArgs(resource *Resource) ([]any, error) {
	organizations, err := marshalJSON("organizations", nonNilStrings(resource.Organizations))
	if err != nil {
		return nil, err
	}
	status, err := marshalJSON("status", nonNilMap(resource.StatusLedger))
	if err != nil {
		return nil, err
	}
	attributes, err := marshalJSON("attributes", nonNilMap(resource.Attributes))
	if err != nil {
		return nil, err
	}

	return []any{
		resource.ID, resource.Name, resource.Description, organizations, status,
		resource.Holder, attributes, resource.CreatedAt,
	}, nil
}

func scanResource(row rowScanner) (*Resource, error) {
	var resource Resource
	var organizations, status, attributes []byte

	if err := row.Scan(
		&resource.ID, &resource.Name, &resource.Description, &organizations, &status,
		&resource.Holder, &attributes, &resource.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalJSON("organizations", organizations, &resource.Organizations); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("status", status, &resource.StatusLedger); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("attributes", attributes, &resource.Attributes); err != nil {
		return nil, err
	}

	return &resource, nil
}

func workflowArgs(workflow *Workflow) ([]any, error) {
	attributes, err := marshalJSON("attributes", nonNilMap(workflow.Attributes))
	if err != nil {
		return nil, err
	}

	return []any{
		workflow.ID, workflow.ResourceID, workflow.CreatorID, workflow.Type, workflow.Name,
		workflow.LockWhenFinished, workflow.Holder, attributes, workflow.CreatedAt,
	}, nil
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var workflow Workflow
	var attributes []byte

	if err := row.Scan(
		&workflow.ID, &workflow.ResourceID, &workflow.CreatorID, &workflow.Type, &workflow.Name,
		&workflow.LockWhenFinished, &workflow.Holder, &attributes, &workflow.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalJSON("attributes", attributes, &workflow.Attributes); err != nil {
		return nil, err
	}

	return &workflow, nil
}

func stepArgs(step *WorkflowStep) ([]any, error) {
	status, err := marshalJSON("status", nonNilMap(step.StatusLedger))
	if err != nil {
		return nil, err
	}
	params, err := marshalJSON("parameters", nonNilMap(step.Params))
	if err != nil {
		return nil, err
	}
	options, err := marshalJSON("options", nonNilMap(step.Options))
	if err != nil {
		return nil, err
	}
	attributes, err := marshalJSON("attributes", nonNilMap(step.Attributes))
	if err != nil {
		return nil, err
	}
	roles, err := marshalJSON("active_roles", nonNilStrings(step.ActiveRoles))
	if err != nil {
		return nil, err
	}
	controller, err := marshalJSON("controller", step.Controller)
	if err != nil {
		return nil, err
	}

	return []any{
		step.ID, step.WorkflowID, step.ParentID, step.Type, step.Name, step.Help, step.Order,
		status, params, options, attributes, roles, step.Dirty, controller, step.CreatedAt,
	}, nil
}

func scanStep(row rowScanner) (*WorkflowStep, error) {
	var step WorkflowStep
	var status, params, options, attributes, roles, controller []byte

	if err := row.Scan(
		&step.ID, &step.WorkflowID, &step.ParentID, &step.Type, &step.Name, &step.Help, &step.Order,
		&status, &params, &options, &attributes, &roles, &step.Dirty, &controller, &step.CreatedAt,
	); err != nil {
		return nil, err
	}

	fields := []struct {
		name   string
		data   []byte
		target any
	}{
		{"status", status, &step.StatusLedger},
		{"parameters", params, &step.Params},
		{"options", options, &step.Options},
		{"attributes", attributes, &step.Attributes},
		{"active_roles", roles, &step.ActiveRoles},
		{"controller", controller, &step.Controller},
	}
	for _, f := range fields {
		if err := unmarshalJSON(f.name, f.data, f.target); err != nil {
			return nil, err
		}
	}

	return &step, nil
}

func resultArgs(result *Result) ([]any, error) {
	data, err := marshalJSON("data", nonNilMap(result.Data))
	if err != nil {
		return nil, err
	}
	status, err := marshalJSON("status", nonNilMap(result.StatusLedger))
	if err != nil {
		return nil, err
	}
	options, err := marshalJSON("options", nonNilMap(result.Options))
	if err != nil {
		return nil, err
	}
	attributes, err := marshalJSON("attributes", nonNilMap(result.Attributes))
	if err != nil {
		return nil, err
	}
	controller, err := marshalJSON("controller", result.Controller)
	if err != nil {
		return nil, err
	}

	return []any{
		result.ID, result.WorkflowID, nullableString(result.StepID), result.Type, result.Name, result.Codename,
		result.Description, result.Order, data, status, options, attributes, controller, result.CreatedAt,
	}, nil
}

func scanResult(row rowScanner) (*Result, error) {
	var result Result
	var data, status, options, attributes, controller []byte

	if err := row.Scan(
		&result.ID, &result.WorkflowID, &result.StepID, &result.Type, &result.Name, &result.Codename,
		&result.Description, &result.Order, &data, &status, &options, &attributes, &controller, &result.CreatedAt,
	); err != nil {
		return nil, err
	}

	fields := []struct {
		name   string
		data   []byte
		target any
	}{
		{"data", data, &result.Data},
		{"status", status, &result.StatusLedger},
		{"options", options, &result.Options},
		{"attributes", attributes, &result.Attributes},
		{"controller", controller, &result.Controller},
	}
	for _, f := range fields {
		if err := unmarshalJSON(f.name, f.data, f.target); err != nil {
			return nil, err
		}
	}
	if result.Data == nil {
		result.Data = map[string]any{}
	}

	return &result, nil
}

// assemble attaches results to their steps and links parents.
func assemble(workflow *Workflow, steps []*WorkflowStep, results []*Result) {
	byID := make(map[string]*WorkflowStep, len(steps))
	for _, step := range steps {
		byID[step.ID] = step
	}

	for _, result := range results {
		if step, ok := byID[result.StepID]; ok && result.StepID != "" {
			step.Results = append(step.Results, result)

			continue
		}
		workflow.Results = append(workflow.Results, result)
	}

	workflow.Steps = steps
	workflow.linkParents()
}

func nonNilMap[M ~map[string]V, V any](m M) M {
	if m == nil {
		return M{}
	}

	return m
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}

	return value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
