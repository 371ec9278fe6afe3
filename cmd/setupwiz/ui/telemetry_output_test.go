package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"setupwiz/pkg/sdk/telemetry"
)

func TestFormatStepLine(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		step stepState
		msg  string
		want string
	}{
		{
			name: "running root",
			step: stepState{ID: "auth", Title: "logging in to registry.example.com", Status: stepRunning},
			want: "  [->] logging in to registry.example.com",
		},
		{
			name: "done child",
			step: stepState{ID: "layers", ParentID: "pull", Title: "layers", Status: stepDone},
			want: "    [ok] layers",
		},
		{
			name: "failed with message",
			step: stepState{ID: "install", Title: "installing app:stable", Status: stepFailed},
			msg:  "port is already allocated",
			want: "  [x] installing app:stable (port is already allocated)",
		},
		{
			name: "untitled",
			step: stepState{ID: "envgen", Status: stepPending},
			want: "  [..] envgen",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatStepLine(tc.step, tc.msg); got != tc.want {
				t.Fatalf("formatStepLine() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLineOutputFollowsSpans(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	out := NewTelemetryOutputTo(&buf, false)

	op, err := telemetry.EmitPlan(context.Background(), out.Tracer("test"), "setup.install", telemetry.Plan{
		Steps: []telemetry.PlannedStep{{ID: "install", Title: "installing app:stable"}},
	})
	if err != nil {
		t.Fatalf("EmitPlan() error = %v", err)
	}
	runErr := op.RunStep(op.Context(), "install", func(context.Context) error {
		return errors.New("port is already allocated")
	})
	op.End(runErr)
	out.Close()

	want := "  [->] installing app:stable\n  [x] installing app:stable (port is already allocated)\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestStepObserverOrdersPlannedAndAdHocSteps(t *testing.T) {
	t.Parallel()

	var snapshots []stepSnapshot
	observer := newStepObserver(func(s stepSnapshot) {
		snapshots = append(snapshots, stepSnapshot{Steps: append([]stepState(nil), s.Steps...)})
	})

	observer.onPlan(telemetry.Plan{Steps: []telemetry.PlannedStep{{ID: "pull", Title: "pulling app:beta"}}})
	observer.onStepStart("verify")
	observer.onStepStart("pull")
	observer.onStepEnd("pull", false, "")
	observer.onStepEnd("verify", true, " digest mismatch ")

	final := snapshots[len(snapshots)-1]
	if len(final.Steps) != 2 || final.Steps[0].ID != "pull" || final.Steps[1].ID != "verify" {
		t.Fatalf("final steps = %+v", final.Steps)
	}
	if final.Steps[0].Status != stepDone || final.Steps[0].Title != "pulling app:beta" {
		t.Fatalf("pull = %+v", final.Steps[0])
	}
	if final.Steps[1].Status != stepFailed || final.Steps[1].Message != "digest mismatch" {
		t.Fatalf("verify = %+v", final.Steps[1])
	}
}

func TestChecklistDrawsFinalState(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewChecklist(&buf)
	c.OnSnapshot(stepSnapshot{Steps: []stepState{{ID: "auth", Title: "logging in", Status: stepRunning}}})
	c.OnSnapshot(stepSnapshot{Steps: []stepState{{ID: "auth", Title: "logging in", Status: stepDone}}})
	c.Close()
	c.Close()

	out := buf.String()
	if !strings.Contains(out, "✓") || !strings.Contains(out, "logging in") {
		t.Fatalf("checklist output = %q", out)
	}
}
