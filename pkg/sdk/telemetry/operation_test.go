package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestEmitPlanAndRunStepSuccess(t *testing.T) {
	t.Parallel()

	tracer, recorder := newTestTracer()
	op, err := EmitPlan(context.Background(), tracer, "setup.pull", Plan{Steps: []PlannedStep{
		{ID: "pull", Title: "pulling registry.example.com/acme/app:stable"},
	}})
	if err != nil {
		t.Fatalf("EmitPlan() error = %v", err)
	}

	if err := op.RunStep(op.Context(), "pull", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	op.End(nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended span count = %d, want 2", len(spans))
	}

	root := findSpanByName(spans, "setup.pull")
	if root == nil {
		t.Fatal("missing root span")
	}
	if len(root.Events()) == 0 {
		t.Fatal("expected root plan event")
	}
	planEvent := root.Events()[0]
	if planEvent.Name != PlanEventName {
		t.Fatalf("plan event name = %q, want %q", planEvent.Name, PlanEventName)
	}
	if got := getAttr(planEvent.Attributes, PlanVersionKey); got != PlanVersion {
		t.Fatalf("plan event version = %q, want %q", got, PlanVersion)
	}

	child := findSpanByName(spans, "pull")
	if child == nil {
		t.Fatal("missing child step span")
	}
	if child.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Fatalf("step parent span id = %s, want %s", child.Parent().SpanID(), root.SpanContext().SpanID())
	}
	if got := getAttr(child.Attributes(), StepOutcomeKey); got != "done" {
		t.Fatalf("step outcome = %q, want done", got)
	}
}

func TestRunStepFailureSetsErrorStatus(t *testing.T) {
	t.Parallel()

	tracer, recorder := newTestTracer()
	op, err := EmitPlan(context.Background(), tracer, "setup.auth", Plan{Steps: []PlannedStep{{ID: "auth", Title: "logging in"}}})
	if err != nil {
		t.Fatalf("EmitPlan() error = %v", err)
	}

	denied := errors.New("unauthorized: incorrect username or password")
	err = op.RunStep(op.Context(), "auth", func(context.Context) error {
		return denied
	})
	if !errors.Is(err, denied) {
		t.Fatalf("RunStep() error = %v, want denied", err)
	}
	op.End(err)

	child := findSpanByName(recorder.Ended(), "auth")
	if child == nil {
		t.Fatal("missing failed step span")
	}
	if child.Status().Code != codes.Error {
		t.Fatalf("step status code = %v, want %v", child.Status().Code, codes.Error)
	}
	if child.Status().Description != denied.Error() {
		t.Fatalf("step status description = %q", child.Status().Description)
	}
	if got := getAttr(child.Attributes(), StepOutcomeKey); got != "failed" {
		t.Fatalf("step outcome = %q, want failed", got)
	}
}

func TestEmitPlanValidationFailure(t *testing.T) {
	t.Parallel()

	tracer, _ := newTestTracer()
	testCases := []struct {
		name string
		plan Plan
	}{
		{name: "duplicate", plan: Plan{Steps: []PlannedStep{{ID: "pull"}, {ID: "pull"}}}},
		{name: "empty id", plan: Plan{Steps: []PlannedStep{{ID: " "}}}},
		{name: "missing parent", plan: Plan{Steps: []PlannedStep{{ID: "install", ParentID: "pull"}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := EmitPlan(context.Background(), tracer, "setup", tc.plan); err == nil {
				t.Fatal("EmitPlan() error = nil, want validation error")
			}
		})
	}
}

func TestNilOperationRunsStepWithoutTelemetry(t *testing.T) {
	t.Parallel()

	var op *Operation
	called := false
	if err := op.RunStep(context.Background(), "install", func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	if !called {
		t.Fatal("step function was not called")
	}
	op.End(errors.New("ignored"))
}

func newTestTracer() (trace.Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return provider.Tracer("telemetry-test"), recorder
}

func findSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func getAttr(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
