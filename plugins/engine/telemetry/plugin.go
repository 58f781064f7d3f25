package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rom8726/resflow"
)

var _ resflow.Plugin = (*TelemetryPlugin)(nil)

// workflowEntry keeps the long-lived span of a workflow so step spans can be
// linked to it. Workflows wait on people, so entries expire by TTL.
type workflowEntry struct {
	span      trace.Span
	createdAt time.Time
}

type TelemetryPlugin struct {
	resflow.BasePlugin

	tracer      trace.Tracer
	mu          sync.Mutex
	workflows   map[string]*workflowEntry
	workflowTTL time.Duration
	now         func() time.Time
}

type TelemetryOption func(*TelemetryPlugin)

func WithWorkflowTTL(ttl time.Duration) TelemetryOption {
	return func(p *TelemetryPlugin) {
		p.workflowTTL = ttl
	}
}

func New(tracer trace.Tracer, opts ...TelemetryOption) *TelemetryPlugin {
	if tracer == nil {
		tracer = otel.Tracer("resflow")
	}

	plugin := &TelemetryPlugin{
		BasePlugin:  resflow.NewBasePlugin("telemetry", resflow.PriorityHigh),
		tracer:      tracer,
		workflows:   make(map[string]*workflowEntry),
		workflowTTL: 7 * 24 * time.Hour,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(plugin)
	}

	return plugin
}

func workflowAttributes(workflow *resflow.Workflow) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("workflow.id", workflow.ID),
		attribute.String("workflow.type", workflow.Type),
		attribute.String("workflow.resource_id", workflow.ResourceID),
		attribute.String("workflow.status", string(workflow.Status())),
	}
}

func stepAttributes(step *resflow.WorkflowStep) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("step.id", step.ID),
		attribute.String("step.name", step.Name),
		attribute.String("step.type", string(step.Type)),
		attribute.String("step.status", string(step.RootStatus())),
	}
}

func (p *TelemetryPlugin) OnWorkflowStart(ctx context.Context, workflow *resflow.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	spanName := fmt.Sprintf("workflow.%s", workflow.Type)
	_, span := p.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(workflowAttributes(workflow)...)
	span.SetAttributes(attribute.Int("workflow.steps", len(workflow.Steps)))

	p.workflows[workflow.ID] = &workflowEntry{
		span:      span,
		createdAt: p.now(),
	}

	p.cleanupExpired()

	return nil
}

func (p *TelemetryPlugin) OnWorkflowComplete(_ context.Context, workflow *resflow.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.workflows[workflow.ID]; ok {
		entry.span.SetAttributes(workflowAttributes(workflow)...)
		entry.span.SetStatus(codes.Ok, "workflow completed")
		entry.span.End()
		delete(p.workflows, workflow.ID)
	}

	return nil
}

func (p *TelemetryPlugin) OnStepSubmitted(
	ctx context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	actor resflow.Actor,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, span := p.tracer.Start(p.parentCtx(ctx, workflow.ID), fmt.Sprintf("step.%s", step.Name))
	span.SetAttributes(stepAttributes(step)...)
	span.SetAttributes(
		attribute.String("workflow.id", workflow.ID),
		attribute.String("actor", actor.Identity),
	)
	span.SetStatus(codes.Ok, "step submitted")
	span.End()

	return nil
}

func (p *TelemetryPlugin) OnStepFailed(
	ctx context.Context,
	workflow *resflow.Workflow,
	step *resflow.WorkflowStep,
	err error,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, span := p.tracer.Start(p.parentCtx(ctx, workflow.ID), fmt.Sprintf("step.%s", step.Name))
	span.SetAttributes(stepAttributes(step)...)
	span.SetAttributes(attribute.String("workflow.id", workflow.ID))
	if err != nil {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, "step failed")
	span.End()

	return nil
}

func (p *TelemetryPlugin) OnStepReset(ctx context.Context, workflow *resflow.Workflow, steps []*resflow.WorkflowStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Name)
	}

	_, span := p.tracer.Start(p.parentCtx(ctx, workflow.ID), "steps.reset")
	span.SetAttributes(
		attribute.String("workflow.id", workflow.ID),
		attribute.StringSlice("steps", names),
	)
	span.End()

	return nil
}

func (p *TelemetryPlugin) OnLockAcquired(_ context.Context, workflow *resflow.Workflow, holder string) error {
	p.addWorkflowEvent(workflow.ID, "lock.acquired", holder)

	return nil
}

func (p *TelemetryPlugin) OnLockReleased(_ context.Context, workflow *resflow.Workflow, holder string) error {
	p.addWorkflowEvent(workflow.ID, "lock.released", holder)

	return nil
}

func (p *TelemetryPlugin) addWorkflowEvent(workflowID, name, holder string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.workflows[workflowID]; ok {
		entry.span.AddEvent(name, trace.WithAttributes(attribute.String("holder", holder)))
	}
}

// parentCtx returns the workflow span context when the workflow is tracked.
// Caller must hold p.mu.
func (p *TelemetryPlugin) parentCtx(ctx context.Context, workflowID string) context.Context {
	if entry, ok := p.workflows[workflowID]; ok {
		return trace.ContextWithSpan(ctx, entry.span)
	}

	return ctx
}

func (p *TelemetryPlugin) cleanupExpired() {
	now := p.now()

	for id, entry := range p.workflows {
		if now.Sub(entry.createdAt) > p.workflowTTL {
			entry.span.SetStatus(codes.Error, "span expired due to TTL")
			entry.span.End()
			delete(p.workflows, id)
		}
	}
}
