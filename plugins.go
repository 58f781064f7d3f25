package resflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

type PluginPriority int

const (
	PriorityLow    PluginPriority = 0
	PriorityNormal PluginPriority = 50
	PriorityHigh   PluginPriority = 100
)

// Plugin observes workflow lifecycle events raised by the Engine.
// OnWorkflowStart and OnStepSubmitted run inside the transaction and abort it
// on error, except that a *ValidationError from OnStepSubmitted is recorded on
// the step like a failed built-in validation. The other hooks run after commit
// and their errors are only logged.
type Plugin interface {
	// Name returns unique plugin identifier
	Name() string

	// Priority determines execution order (higher = earlier)
	Priority() PluginPriority

	OnWorkflowStart(ctx context.Context, workflow *Workflow) error
	OnWorkflowComplete(ctx context.Context, workflow *Workflow) error
	OnStepSubmitted(ctx context.Context, workflow *Workflow, step *WorkflowStep, actor Actor) error
	OnStepFailed(ctx context.Context, workflow *Workflow, step *WorkflowStep, err error) error
	OnStepReset(ctx context.Context, workflow *Workflow, steps []*WorkflowStep) error
	OnLockAcquired(ctx context.Context, workflow *Workflow, holder string) error
	OnLockReleased(ctx context.Context, workflow *Workflow, holder string) error
}

// BasePlugin provides default no-op implementations
type BasePlugin struct {
	name     string
	priority PluginPriority
}

func NewBasePlugin(name string, priority PluginPriority) BasePlugin {
	return BasePlugin{name: name, priority: priority}
}

func (p BasePlugin) Name() string                                            { return p.name }
func (p BasePlugin) Priority() PluginPriority                                { return p.priority }
func (p BasePlugin) OnWorkflowStart(context.Context, *Workflow) error        { return nil }
func (p BasePlugin) OnWorkflowComplete(context.Context, *Workflow) error     { return nil }
func (p BasePlugin) OnLockAcquired(context.Context, *Workflow, string) error { return nil }
func (p BasePlugin) OnLockReleased(context.Context, *Workflow, string) error { return nil }
func (p BasePlugin) OnStepSubmitted(context.Context, *Workflow, *WorkflowStep, Actor) error {
	return nil
}
func (p BasePlugin) OnStepFailed(context.Context, *Workflow, *WorkflowStep, error) error {
	return nil
}
func (p BasePlugin) OnStepReset(context.Context, *Workflow, []*WorkflowStep) error {
	return nil
}

// PluginManager manages plugin lifecycle
type PluginManager struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewPluginManager() *PluginManager {
	return &PluginManager{
		plugins: make([]Plugin, 0),
	}
}

func (pm *PluginManager) Register(plugin Plugin) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.plugins = append(pm.plugins, plugin)

	sort.SliceStable(pm.plugins, func(i, j int) bool {
		return pm.plugins[i].Priority() > pm.plugins[j].Priority()
	})
}

func (pm *PluginManager) Plugins() []Plugin {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return append([]Plugin(nil), pm.plugins...)
}

func (pm *PluginManager) ExecuteWorkflowStart(ctx context.Context, workflow *Workflow) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnWorkflowStart(ctx, workflow); err != nil {
			return fmt.Errorf("plugin %s failed: %w", plugin.Name(), err)
		}
	}

	return nil
}

func (pm *PluginManager) ExecuteStepSubmitted(ctx context.Context, workflow *Workflow, step *WorkflowStep, actor Actor) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnStepSubmitted(ctx, workflow, step, actor); err != nil {
			return fmt.Errorf("plugin %s failed: %w", plugin.Name(), err)
		}
	}

	return nil
}

func (pm *PluginManager) ExecuteWorkflowComplete(ctx context.Context, workflow *Workflow) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnWorkflowComplete(ctx, workflow); err != nil {
			logPluginError(plugin, "workflow complete", workflow, err)
		}
	}
}

func (pm *PluginManager) ExecuteStepFailed(ctx context.Context, workflow *Workflow, step *WorkflowStep, stepErr error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnStepFailed(ctx, workflow, step, stepErr); err != nil {
			logPluginError(plugin, "step failed", workflow, err)
		}
	}
}

func (pm *PluginManager) ExecuteStepReset(ctx context.Context, workflow *Workflow, steps []*WorkflowStep) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnStepReset(ctx, workflow, steps); err != nil {
			logPluginError(plugin, "step reset", workflow, err)
		}
	}
}

func (pm *PluginManager) ExecuteLockAcquired(ctx context.Context, workflow *Workflow, holder string) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnLockAcquired(ctx, workflow, holder); err != nil {
			logPluginError(plugin, "lock acquired", workflow, err)
		}
	}
}

func (pm *PluginManager) ExecuteLockReleased(ctx context.Context, workflow *Workflow, holder string) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if err := plugin.OnLockReleased(ctx, workflow, holder); err != nil {
			logPluginError(plugin, "lock released", workflow, err)
		}
	}
}

func logPluginError(plugin Plugin, hook string, workflow *Workflow, err error) {
	log.Error().
		Err(err).
		Str("plugin", plugin.Name()).
		Str("hook", hook).
		Str("workflow_id", workflow.ID).
		Msg("plugin hook failed")
}
