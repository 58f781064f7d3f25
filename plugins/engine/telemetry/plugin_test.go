package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rom8726/resflow"
)

func newRecordingPlugin(t *testing.T, opts ...TelemetryOption) (*TelemetryPlugin, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return New(tp.Tracer("test"), opts...), recorder
}

func newWorkflow(t *testing.T) (*resflow.Workflow, *resflow.WorkflowStep) {
	t.Helper()

	workflow := resflow.NewWorkflow("resource-1", "flood_study", "Study", "alice")
	step, err := resflow.NewStep(resflow.StepTypeGeneric, "Describe")
	if err != nil {
		t.Fatalf("NewStep() error = %v", err)
	}
	workflow.AddStep(step)

	return workflow, step
}

func endedByName(recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}

	return nil
}

func TestTelemetryPlugin_New(t *testing.T) {
	plugin := New(nil)

	if plugin.Name() != "telemetry" {
		t.Errorf("Name() = %q, want %q", plugin.Name(), "telemetry")
	}
	if plugin.Priority() != resflow.PriorityHigh {
		t.Errorf("Priority() = %v, want %v", plugin.Priority(), resflow.PriorityHigh)
	}
	if plugin.tracer == nil {
		t.Fatal("tracer should not be nil when nil is passed")
	}
	if plugin.workflowTTL != 7*24*time.Hour {
		t.Errorf("workflowTTL = %v, want %v", plugin.workflowTTL, 7*24*time.Hour)
	}

	custom := New(nil, WithWorkflowTTL(time.Hour))
	if custom.workflowTTL != time.Hour {
		t.Errorf("workflowTTL = %v, want %v", custom.workflowTTL, time.Hour)
	}
}

func TestTelemetryPlugin_WorkflowLifecycle(t *testing.T) {
	plugin, recorder := newRecordingPlugin(t)
	ctx := context.Background()
	workflow, step := newWorkflow(t)

	if err := plugin.OnWorkflowStart(ctx, workflow); err != nil {
		t.Fatalf("OnWorkflowStart() error = %v", err)
	}
	if err := plugin.OnStepSubmitted(ctx, workflow, step, resflow.Actor{Identity: "alice"}); err != nil {
		t.Fatalf("OnStepSubmitted() error = %v", err)
	}
	if err := plugin.OnWorkflowComplete(ctx, workflow); err != nil {
		t.Fatalf("OnWorkflowComplete() error = %v", err)
	}

	if got := len(recorder.Ended()); got != 2 {
		t.Fatalf("ended spans = %d, want 2", got)
	}

	workflowSpan := endedByName(recorder, "workflow.flood_study")
	stepSpan := endedByName(recorder, "step.Describe")
	if workflowSpan == nil || stepSpan == nil {
		t.Fatal("expected workflow and step spans")
	}
	if stepSpan.Parent().SpanID() != workflowSpan.SpanContext().SpanID() {
		t.Error("step span should be a child of the workflow span")
	}
	if workflowSpan.Status().Code != codes.Ok {
		t.Errorf("workflow span status = %v, want Ok", workflowSpan.Status().Code)
	}
	if len(plugin.workflows) != 0 {
		t.Errorf("tracked workflows = %d, want 0", len(plugin.workflows))
	}
}

func TestTelemetryPlugin_StepFailed(t *testing.T) {
	plugin, recorder := newRecordingPlugin(t)
	workflow, step := newWorkflow(t)

	if err := plugin.OnStepFailed(context.Background(), workflow, step, errors.New("bad input")); err != nil {
		t.Fatalf("OnStepFailed() error = %v", err)
	}

	span := endedByName(recorder, "step.Describe")
	if span == nil {
		t.Fatal("expected step span")
	}
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestTelemetryPlugin_LockEvents(t *testing.T) {
	plugin, recorder := newRecordingPlugin(t)
	ctx := context.Background()
	workflow, step := newWorkflow(t)

	_ = plugin.OnWorkflowStart(ctx, workflow)
	_ = plugin.OnLockAcquired(ctx, workflow, "alice")
	_ = plugin.OnLockReleased(ctx, workflow, "alice")
	_ = plugin.OnStepReset(ctx, workflow, []*resflow.WorkflowStep{step})
	_ = plugin.OnWorkflowComplete(ctx, workflow)

	span := endedByName(recorder, "workflow.flood_study")
	if span == nil {
		t.Fatal("expected workflow span")
	}

	events := span.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Name != "lock.acquired" || events[1].Name != "lock.released" {
		t.Errorf("events = %q, %q", events[0].Name, events[1].Name)
	}
	if endedByName(recorder, "steps.reset") == nil {
		t.Error("expected reset span")
	}
}

func TestTelemetryPlugin_ExpiresStaleWorkflows(t *testing.T) {
	plugin, recorder := newRecordingPlugin(t, WithWorkflowTTL(time.Hour))
	ctx := context.Background()

	stale, _ := newWorkflow(t)
	_ = plugin.OnWorkflowStart(ctx, stale)

	plugin.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	fresh, _ := newWorkflow(t)
	_ = plugin.OnWorkflowStart(ctx, fresh)

	if _, ok := plugin.workflows[stale.ID]; ok {
		t.Error("stale workflow should be expired")
	}
	if _, ok := plugin.workflows[fresh.ID]; !ok {
		t.Error("fresh workflow should be tracked")
	}

	ended := recorder.Ended()
	if len(ended) != 1 || ended[0].Status().Code != codes.Error {
		t.Fatalf("expected one expired span with error status, got %d", len(ended))
	}
}
