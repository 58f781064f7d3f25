package validate

import (
	"context"
	"fmt"
	"sync"

	"github.com/rom8726/resflow"
)

var _ resflow.Plugin = (*ValidationPlugin)(nil)

// ValidationRule inspects the parameter values of a submitted step.
type ValidationRule func(values map[string]any) error

type ValidationPlugin struct {
	resflow.BasePlugin

	rules map[ruleKey][]ValidationRule
	mu    sync.RWMutex
}

type ruleKey struct {
	workflowType string
	stepName     string
}

func New() *ValidationPlugin {
	return &ValidationPlugin{
		BasePlugin: resflow.NewBasePlugin("validation", resflow.PriorityHigh),
		rules:      make(map[ruleKey][]ValidationRule),
	}
}

// AddRule registers rule for steps named stepName. An empty workflowType
// applies the rule in every workflow type.
func (p *ValidationPlugin) AddRule(workflowType, stepName string, rule ValidationRule) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := ruleKey{workflowType: workflowType, stepName: stepName}
	p.rules[key] = append(p.rules[key], rule)
}

func (p *ValidationPlugin) rulesFor(workflowType, stepName string) []ValidationRule {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rules := append([]ValidationRule(nil), p.rules[ruleKey{stepName: stepName}]...)

	return append(rules, p.rules[ruleKey{workflowType: workflowType, stepName: stepName}]...)
}

// OnStepSubmitted runs the rules after built-in validation. A failing rule is
// reported as a validation error of the step.
func (p *ValidationPlugin) OnStepSubmitted(
	_ context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	_ resflow.Actor,
) error {
	values := step.ParameterValues()

	for i, rule := range p.rulesFor(workflow.Type, step.Name) {
		if err := rule(values); err != nil {
			return &resflow.ValidationError{
				Step:    step.Name,
				Message: fmt.Sprintf("rule %d: %v", i, err),
			}
		}
	}

	return nil
}

// OptionRequiredFields lists form answer keys a form step must fill in.
const OptionRequiredFields = "required_fields"

// AddCatalogRules registers RequireFormValues for every form step template in
// catalog that carries the required_fields option.
func (p *ValidationPlugin) AddCatalogRules(catalog *resflow.Catalog) int {
	added := 0
	for _, def := range catalog.WorkflowTypes {
		for _, tmpl := range def.Steps {
			if tmpl.Type != resflow.StepTypeFormInput {
				continue
			}

			raw, _ := tmpl.Options[OptionRequiredFields].([]any)
			keys := make([]string, 0, len(raw))
			for _, v := range raw {
				if key, ok := v.(string); ok && key != "" {
					keys = append(keys, key)
				}
			}
			if len(keys) == 0 {
				continue
			}

			p.AddRule(def.Type, tmpl.Name, RequireFormValues(keys...))
			added++
		}
	}

	return added
}

// RequireFormValues checks that the form answers contain every key with a non-empty value.
func RequireFormValues(keys ...string) ValidationRule {
	return func(values map[string]any) error {
		form, _ := values[resflow.ParamFormValues].(map[string]any)
		for _, key := range keys {
			value, ok := form[key]
			if !ok || value == nil || value == "" {
				return fmt.Errorf("%q is required", key)
			}
		}

		return nil
	}
}
