package resflow

import (
	"errors"
	"fmt"
)

// Builder assembles a WorkflowDefinition in code. Steps are kept in the order
// they are added; With* methods apply to the most recent step.
type Builder struct {
	def          WorkflowDefinition
	defaultRoles []string
	errs         []error
}

func NewBuilder(workflowType string, opts ...BuilderOption) *Builder {
	builder := &Builder{
		def: WorkflowDefinition{Type: workflowType},
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder
}

func (builder *Builder) current() *StepTemplate {
	if len(builder.def.Steps) == 0 {
		return nil
	}

	return &builder.def.Steps[len(builder.def.Steps)-1]
}

func (builder *Builder) Step(stepType StepType, name string, opts ...StepOption) *Builder {
	tmpl := StepTemplate{
		Type:        stepType,
		Name:        name,
		ActiveRoles: append([]string(nil), builder.defaultRoles...),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	builder.def.Steps = append(builder.def.Steps, tmpl)

	return builder
}

func (builder *Builder) FormStep(name, title string, opts ...StepOption) *Builder {
	opts = append([]StepOption{WithStepOption("form_title", title)}, opts...)

	return builder.Step(StepTypeFormInput, name, opts...)
}

// SetStatusStep adds a step offering statuses, each labelled with its own name.
func (builder *Builder) SetStatusStep(name string, statuses []Status, opts ...StepOption) *Builder {
	offered := make([]any, 0, len(statuses))
	for _, status := range statuses {
		offered = append(offered, map[string]any{"status": string(status), "label": string(status)})
	}

	opts = append([]StepOption{WithStepOption("statuses", offered)}, opts...)

	return builder.Step(StepTypeSetStatus, name, opts...)
}

func (builder *Builder) ResultsStep(name string, opts ...StepOption) *Builder {
	return builder.Step(StepTypeResults, name, opts...)
}

// Result attaches a result template to the current results step.
func (builder *Builder) Result(resultType ResultType, name, codename string, options map[string]any) *Builder {
	step := builder.current()
	if step == nil {
		builder.errs = append(builder.errs, fmt.Errorf("builder %q: result %q added before any step", builder.def.Type, codename))

		return builder
	}

	step.Results = append(step.Results, ResultTemplate{
		Type:     resultType,
		Name:     name,
		Codename: codename,
		Options:  options,
	})

	return builder
}

func (builder *Builder) WithHelp(help string) *Builder {
	return builder.apply("WithHelp", WithStepHelp(help))
}

func (builder *Builder) WithParent(parent string) *Builder {
	return builder.apply("WithParent", WithStepParent(parent))
}

func (builder *Builder) WithOption(key string, value any) *Builder {
	return builder.apply("WithOption", WithStepOption(key, value))
}

func (builder *Builder) WithActiveRoles(roles ...string) *Builder {
	return builder.apply("WithActiveRoles", WithStepActiveRoles(roles...))
}

func (builder *Builder) apply(method string, opt StepOption) *Builder {
	step := builder.current()
	if step == nil {
		builder.errs = append(builder.errs, fmt.Errorf("builder %q: %s called with no step", builder.def.Type, method))

		return builder
	}

	opt(step)

	return builder
}

func (builder *Builder) Build() (*WorkflowDefinition, error) {
	if len(builder.errs) > 0 {
		return nil, errors.Join(builder.errs...)
	}

	def := builder.def
	def.Steps = append([]StepTemplate(nil), builder.def.Steps...)

	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("builder %q: %w", def.Type, err)
	}

	return &def, nil
}
