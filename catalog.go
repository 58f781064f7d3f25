package resflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Catalog holds the workflow types a deployment can start.
type Catalog struct {
	WorkflowTypes []WorkflowDefinition `json:"workflow_types" yaml:"workflow_types" jsonschema:"required"`

	index map[string]*WorkflowDefinition
}

type WorkflowDefinition struct {
	Type             string         `json:"type" yaml:"type" jsonschema:"required"`
	DisplayName      string         `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	LockWhenFinished bool           `json:"lock_when_finished,omitempty" yaml:"lock_when_finished,omitempty"`
	Steps            []StepTemplate `json:"steps" yaml:"steps" jsonschema:"required,minItems=1"`
}

type StepTemplate struct {
	Type        StepType            `json:"type" yaml:"type" jsonschema:"required"`
	Name        string              `json:"name" yaml:"name" jsonschema:"required"`
	Help        string              `json:"help,omitempty" yaml:"help,omitempty"`
	Parent      string              `json:"parent,omitempty" yaml:"parent,omitempty"`
	Options     map[string]any      `json:"options,omitempty" yaml:"options,omitempty"`
	ActiveRoles []string            `json:"active_roles,omitempty" yaml:"active_roles,omitempty"`
	Controller  *ControllerMetadata `json:"controller,omitempty" yaml:"controller,omitempty"`
	Results     []ResultTemplate    `json:"results,omitempty" yaml:"results,omitempty"`
}

type ResultTemplate struct {
	Type        ResultType     `json:"type" yaml:"type" jsonschema:"required"`
	Name        string         `json:"name" yaml:"name" jsonschema:"required"`
	Codename    string         `json:"codename" yaml:"codename" jsonschema:"required"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

func NewCatalog(definitions ...WorkflowDefinition) (*Catalog, error) {
	catalog := &Catalog{WorkflowTypes: definitions}
	if err := catalog.build(); err != nil {
		return nil, err
	}

	return catalog, nil
}

func LoadCatalog(r io.Reader) (*Catalog, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var catalog Catalog
	if err := decoder.Decode(&catalog); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("decode catalog: empty document")
		}

		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := catalog.build(); err != nil {
		return nil, err
	}

	return &catalog, nil
}

func LoadCatalogFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	return LoadCatalog(bytes.NewReader(content))
}

func (c *Catalog) build() error {
	c.index = make(map[string]*WorkflowDefinition, len(c.WorkflowTypes))
	for i := range c.WorkflowTypes {
		def := &c.WorkflowTypes[i]
		if err := def.validate(); err != nil {
			return err
		}
		if _, exists := c.index[def.Type]; exists {
			return fmt.Errorf("workflow type %q is defined twice", def.Type)
		}
		c.index[def.Type] = def
	}

	return nil
}

func (c *Catalog) Definition(workflowType string) (*WorkflowDefinition, error) {
	def, ok := c.index[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflowType, workflowType)
	}

	return def, nil
}

func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.index))
	for workflowType := range c.index {
		types = append(types, workflowType)
	}
	sort.Strings(types)

	return types
}

func (d *WorkflowDefinition) validate() error {
	if d.Type == "" {
		return fmt.Errorf("workflow type is required")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow type %q has no steps", d.Type)
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for _, tmpl := range d.Steps {
		if _, err := LookupStepKind(tmpl.Type); err != nil {
			return fmt.Errorf("workflow type %q step %q: %w", d.Type, tmpl.Name, err)
		}
		if tmpl.Name == "" {
			return fmt.Errorf("workflow type %q has a step without name", d.Type)
		}
		if _, dup := seen[tmpl.Name]; dup {
			return fmt.Errorf("workflow type %q: duplicate step name %q", d.Type, tmpl.Name)
		}
		if tmpl.Parent != "" {
			if _, ok := seen[tmpl.Parent]; !ok {
				return fmt.Errorf("workflow type %q step %q: parent %q must be an earlier step", d.Type, tmpl.Name, tmpl.Parent)
			}
		}
		seen[tmpl.Name] = struct{}{}

		if len(tmpl.Results) > 0 && tmpl.Type != StepTypeResults {
			return fmt.Errorf("workflow type %q step %q: only results steps may declare results", d.Type, tmpl.Name)
		}

		codenames := make(map[string]struct{}, len(tmpl.Results))
		for _, rt := range tmpl.Results {
			if _, err := LookupResultKind(rt.Type); err != nil {
				return fmt.Errorf("workflow type %q step %q result %q: %w", d.Type, tmpl.Name, rt.Name, err)
			}
			if _, dup := codenames[rt.Codename]; dup {
				return fmt.Errorf("workflow type %q step %q: duplicate result codename %q", d.Type, tmpl.Name, rt.Codename)
			}
			codenames[rt.Codename] = struct{}{}
		}
	}

	return nil
}

// Instantiate builds a new workflow with steps and results from the definition.
func (d *WorkflowDefinition) Instantiate(resourceID, name, creatorID string) (*Workflow, error) {
	workflow := NewWorkflow(resourceID, d.Type, name, creatorID)
	workflow.LockWhenFinished = d.LockWhenFinished

	byName := make(map[string]*WorkflowStep, len(d.Steps))
	for order, tmpl := range d.Steps {
		step, err := NewStep(tmpl.Type, tmpl.Name)
		if err != nil {
			return nil, err
		}
		step.Help = tmpl.Help
		step.Order = order
		step.ActiveRoles = append([]string(nil), tmpl.ActiveRoles...)
		if tmpl.Controller != nil {
			step.Controller = *tmpl.Controller
		}
		if err := step.SetOptions(tmpl.Options); err != nil {
			return nil, fmt.Errorf("step %q: %w", tmpl.Name, err)
		}
		if parent, ok := byName[tmpl.Parent]; ok {
			step.ParentID = parent.ID
			step.Parent = parent
		}

		for resultOrder, rt := range tmpl.Results {
			result, err := NewResult(rt.Type, rt.Name, rt.Codename)
			if err != nil {
				return nil, err
			}
			result.Description = rt.Description
			result.Order = resultOrder
			if err := result.SetOptions(rt.Options); err != nil {
				return nil, fmt.Errorf("result %q: %w", rt.Codename, err)
			}
			step.AddResult(result)
		}

		byName[tmpl.Name] = step
		workflow.AddStep(step)
	}

	return workflow, nil
}

// CatalogSchema returns the JSON Schema describing catalog documents.
func CatalogSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Catalog{})

	return json.MarshalIndent(schema, "", "  ")
}
