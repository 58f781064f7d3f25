package resflow

type StepOption func(step *StepTemplate)

func WithStepHelp(help string) StepOption {
	return func(step *StepTemplate) {
		step.Help = help
	}
}

func WithStepParent(parent string) StepOption {
	return func(step *StepTemplate) {
		step.Parent = parent
	}
}

func WithStepOption(key string, value any) StepOption {
	return func(step *StepTemplate) {
		if step.Options == nil {
			step.Options = make(map[string]any)
		}
		step.Options[key] = value
	}
}

func WithStepActiveRoles(roles ...string) StepOption {
	return func(step *StepTemplate) {
		step.ActiveRoles = append([]string(nil), roles...)
	}
}

func WithStepController(path string, kwargs map[string]any) StepOption {
	return func(step *StepTemplate) {
		step.Controller = &ControllerMetadata{Path: path, Kwargs: kwargs}
	}
}

type BuilderOption func(builder *Builder)

func WithBuilderDisplayName(name string) BuilderOption {
	return func(builder *Builder) {
		builder.def.DisplayName = name
	}
}

func WithBuilderLockWhenFinished() BuilderOption {
	return func(builder *Builder) {
		builder.def.LockWhenFinished = true
	}
}

// WithBuilderActiveRoles sets the roles given to every step added afterwards.
func WithBuilderActiveRoles(roles ...string) BuilderOption {
	return func(builder *Builder) {
		builder.defaultRoles = append([]string(nil), roles...)
	}
}
