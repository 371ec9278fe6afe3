package wizard

import "testing"

func TestStateEquality(t *testing.T) {
	t.Parallel()

	if Error("a") != Error("a") {
		t.Fatal("error states with equal messages should be equal")
	}
	if Error("a") == Error("b") {
		t.Fatal("error states with different messages should differ")
	}
	if Confirmation == Installing {
		t.Fatal("distinct steps should differ")
	}
}

func TestStateMessage(t *testing.T) {
	t.Parallel()

	if _, ok := Confirmation.Message(); ok {
		t.Fatal("Confirmation.Message() ok = true, want false")
	}
	msg, ok := Error("pull failed").Message()
	if !ok || msg != "pull failed" {
		t.Fatalf("Error.Message() = %q, %v", msg, ok)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		state State
		want  string
	}{
		{state: RegistrySetup, want: "registry_setup"},
		{state: UpdatePulling, want: "update_pulling"},
		{state: Success, want: "success"},
		{state: Error(" timeout "), want: "error(timeout)"},
		{state: State{}, want: "unknown"},
	}

	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	t.Parallel()

	for _, state := range nonTerminalStates {
		if state.IsTerminal() {
			t.Fatalf("%s should not be terminal", state)
		}
		if !state.IsValid() {
			t.Fatalf("%s should be valid", state)
		}
	}
	if !Success.IsTerminal() || !Error("x").IsTerminal() {
		t.Fatal("success and error should be terminal")
	}
	if (State{}).IsValid() {
		t.Fatal("zero state should be invalid")
	}
}

func TestParseSelectionRoundTrip(t *testing.T) {
	t.Parallel()

	for _, sel := range allSelections {
		got, ok := ParseSelection(sel.String())
		if !ok || got != sel {
			t.Fatalf("ParseSelection(%q) = %v, %v", sel.String(), got, ok)
		}
	}

	if got, ok := ParseSelection(" Check_Updates "); !ok || got != CheckUpdates {
		t.Fatalf("ParseSelection(Check_Updates) = %v, %v", got, ok)
	}
	if _, ok := ParseSelection("install"); ok {
		t.Fatal("ParseSelection(install) ok = true, want false")
	}
}

func TestOfferedMenus(t *testing.T) {
	t.Parallel()

	if got := len(Offered(Confirmation)); got != len(allSelections) {
		t.Fatalf("confirmation offers %d selections, want %d", got, len(allSelections))
	}
	if got := Offered(UpdateList); len(got) != 2 || got[0] != Proceed || got[1] != Cancel {
		t.Fatalf("update list offers %v", got)
	}
	if got := Offered(Installing); len(got) != 1 || got[0] != Cancel {
		t.Fatalf("installing offers %v", got)
	}
	if got := Offered(Success); got != nil {
		t.Fatalf("success offers %v, want none", got)
	}
}
