package resflow

import (
	"fmt"
	"strings"
)

type Visualizer struct{}

func NewVisualizer() *Visualizer {
	return &Visualizer{}
}

// RenderDefinition draws the steps of a workflow type in order. Steps with a
// parent are nested under it.
func (v *Visualizer) RenderDefinition(def *WorkflowDefinition) string {
	var b strings.Builder

	title := def.Type
	if def.DisplayName != "" {
		title = fmt.Sprintf("%s (%s)", def.DisplayName, def.Type)
	}
	fmt.Fprintf(&b, "Workflow type: %s\n", title)
	b.WriteString("======================================\n\n")

	depth := make(map[string]int, len(def.Steps))
	for i, step := range def.Steps {
		level := 0
		if step.Parent != "" {
			level = depth[step.Parent] + 1
		}
		depth[step.Name] = level

		fmt.Fprintf(&b, "%s%d. %s %s [%s]\n", v.indent(level), i+1, v.getStepSymbol(step.Type), step.Name, step.Type)
		if len(step.ActiveRoles) > 0 {
			fmt.Fprintf(&b, "%s   roles: %s\n", v.indent(level), strings.Join(step.ActiveRoles, ", "))
		}
		for _, result := range step.Results {
			fmt.Fprintf(&b, "%s   📄 %s (%s) [%s]\n", v.indent(level), result.Name, result.Codename, result.Type)
		}
	}

	if def.LockWhenFinished {
		b.WriteString("\n🔒 locked for all users when finished\n")
	}

	return b.String()
}

// RenderWorkflow shows the progress of a workflow, marking the next step.
func (v *Visualizer) RenderWorkflow(workflow *Workflow) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Workflow: %s [%s]\n", workflow.Name, workflow.Type)
	fmt.Fprintf(&b, "Status: %s\n", v.displayStatus(workflow.Status()))
	if holder := workflow.LockHolder(); holder != "" {
		if workflow.IsLockedForAllUsers() {
			holder = "all users"
		}
		fmt.Fprintf(&b, "Locked: %s\n", holder)
	}
	b.WriteString("======================================\n\n")

	nextIdx, _ := workflow.NextStep()
	complete := workflow.Complete()

	for i, step := range workflow.Steps {
		status := step.Status(RootStatusKey, StatusPending)

		marker := "  "
		if i == nextIdx && !complete {
			marker = "▶ "
		}

		fmt.Fprintf(&b, "%s%s %s %s: %s\n", marker, v.getStatusSymbol(status), v.getStepSymbol(step.Type), step.Name, status)
		for _, result := range step.Results {
			fmt.Fprintf(&b, "      📄 %s\n", result.Name)
		}
	}

	return b.String()
}

func (v *Visualizer) displayStatus(status Status) string {
	if status == StatusEmpty {
		return "(no steps)"
	}

	return string(status)
}

func (v *Visualizer) getStatusSymbol(status Status) string {
	switch {
	case status.In(OKStatuses):
		return "✅"
	case status.In(ErrorStatuses):
		return "❌"
	case status.In(WorkingStatuses):
		return "⏳"
	case status == StatusPending:
		return "⏸"
	default:
		return "•"
	}
}

func (v *Visualizer) getStepSymbol(stepType StepType) string {
	switch stepType {
	case StepTypeFormInput:
		return "📝"
	case StepTypeSetStatus:
		return "👤"
	case StepTypeTableInput:
		return "▦"
	case StepTypeSpatialInput:
		return "🗺"
	case StepTypeResults:
		return "📊"
	default:
		return "→"
	}
}

func (v *Visualizer) indent(level int) string {
	return strings.Repeat("  ", level)
}
