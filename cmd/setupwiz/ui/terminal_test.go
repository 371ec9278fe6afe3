package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"setupwiz/pkg/sdk/setup"
	"setupwiz/wizard"
)

var testCandidates = []setup.Candidate{
	{Channel: "stable", Ref: "registry.example.com/acme/app:stable", RemoteDigest: "sha256:0123456789abcdef0123", LocalDigest: "sha256:0123456789abcdef0123"},
	{Channel: "beta", Ref: "registry.example.com/acme/app:beta", RemoteDigest: "sha256:fedcba9876543210fedc"},
}

func TestTerminalUsesScriptedCredentialsOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Out: &buf})
	defaults := setup.Credentials{Registry: "registry.example.com", Username: "deploy", Secret: "hunter2"}

	got, err := term.Credentials(context.Background(), defaults)
	if err != nil || got != defaults {
		t.Fatalf("Credentials() = %+v, %v", got, err)
	}

	_, err = term.Credentials(context.Background(), defaults)
	var noInteraction *ErrNoInteraction
	if !errors.As(err, &noInteraction) {
		t.Fatalf("second Credentials() error = %v, want *ErrNoInteraction", err)
	}
}

func TestTerminalPromptsForCredentials(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Out: &buf, Interactive: true})
	var labels []string
	term.prompt = func(_ context.Context, label, _, value, _ string) (string, error) {
		labels = append(labels, label)
		if value != "" {
			return value, nil
		}
		return "deploy", nil
	}
	term.secret = func(context.Context, string, string) (string, error) { return "hunter2", nil }

	got, err := term.Credentials(context.Background(), setup.Credentials{Registry: "registry.example.com"})
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	want := setup.Credentials{Registry: "registry.example.com", Username: "deploy", Secret: "hunter2"}
	if got != want {
		t.Fatalf("Credentials() = %+v, want %+v", got, want)
	}
	if strings.Join(labels, ",") != "Registry,Username" {
		t.Fatalf("prompted labels = %v", labels)
	}
}

func TestTerminalMapsPromptCancel(t *testing.T) {
	t.Parallel()

	term := NewTerminal(TerminalOptions{Out: &bytes.Buffer{}, Interactive: true})
	term.choose = func(context.Context, string, []string, string) (int, error) { return -1, ErrCancelled }

	_, err := term.Select(context.Background(), wizard.Confirmation, wizard.Offered(wizard.Confirmation))
	if !errors.Is(err, setup.ErrCancelled) {
		t.Fatalf("Select() error = %v, want setup.ErrCancelled", err)
	}
	if _, err := term.Profile(context.Background(), []string{"small"}); !errors.Is(err, setup.ErrCancelled) {
		t.Fatalf("Profile() error = %v, want setup.ErrCancelled", err)
	}
}

func TestTerminalInterruptedMenuIsNotASelection(t *testing.T) {
	t.Parallel()

	term := NewTerminal(TerminalOptions{Out: &bytes.Buffer{}, Interactive: true})
	term.choose = func(context.Context, string, []string, string) (int, error) { return -1, ErrInterrupted }

	sel, err := term.Select(context.Background(), wizard.Confirmation, wizard.Offered(wizard.Confirmation))
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Select() = %s, %v, want ErrInterrupted", sel, err)
	}
	if errors.Is(err, setup.ErrCancelled) {
		t.Fatal("interrupted menu must not read as a cancel")
	}
}

func TestTerminalScriptedSelectionsThenMenu(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Out: &buf, Interactive: true, Selections: []wizard.Selection{wizard.GenerateEnv}})
	var shown []string
	term.choose = func(_ context.Context, _ string, options []string, _ string) (int, error) {
		shown = options
		return 1, nil
	}

	options := wizard.Offered(wizard.Confirmation)
	first, err := term.Select(context.Background(), wizard.Confirmation, options)
	if err != nil || first != wizard.GenerateEnv {
		t.Fatalf("first Select() = %s, %v", first, err)
	}
	if shown != nil {
		t.Fatal("menu shown while a scripted answer was queued")
	}
	second, err := term.Select(context.Background(), wizard.Confirmation, options)
	if err != nil || second != options[1] {
		t.Fatalf("second Select() = %s, %v", second, err)
	}
	if len(shown) != len(options) || shown[0] != wizard.Proceed.Label() {
		t.Fatalf("menu options = %v", shown)
	}
}

func TestTerminalNonInteractiveWithoutAnswers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Out: &buf})
	var noInteraction *ErrNoInteraction

	if _, err := term.Select(context.Background(), wizard.Confirmation, nil); !errors.As(err, &noInteraction) || noInteraction.Hint != "use --select to choose the next step" {
		t.Fatalf("Select() error = %v", err)
	}
	if _, err := term.Profile(context.Background(), []string{"small"}); !errors.As(err, &noInteraction) {
		t.Fatalf("Profile() error = %v", err)
	}
	if _, err := term.Candidate(context.Background(), testCandidates); !errors.As(err, &noInteraction) {
		t.Fatalf("Candidate() error = %v", err)
	}
	if !strings.Contains(buf.String(), "beta") {
		t.Fatalf("candidate table not printed: %q", buf.String())
	}
}

func TestTerminalCandidateByChannel(t *testing.T) {
	t.Parallel()

	term := NewTerminal(TerminalOptions{Out: &bytes.Buffer{}, Interactive: true, Channel: "beta"})
	term.pick = func(context.Context, []string, [][]string, string) (int, error) { return -1, nil }

	idx, err := term.Candidate(context.Background(), testCandidates)
	if err != nil || idx != 1 {
		t.Fatalf("Candidate() = %d, %v, want 1", idx, err)
	}
	idx, err = term.Candidate(context.Background(), testCandidates)
	if err != nil || idx != -1 {
		t.Fatalf("second Candidate() = %d, %v, want interactive back-out", idx, err)
	}

	missing := NewTerminal(TerminalOptions{Out: &bytes.Buffer{}, Channel: "nightly"})
	if _, err := missing.Candidate(context.Background(), testCandidates); err == nil || !strings.Contains(err.Error(), "stable, beta") {
		t.Fatalf("Candidate() error = %v, want available channels", err)
	}
}

func TestCandidateRows(t *testing.T) {
	t.Parallel()

	headers, rows := candidateRows(testCandidates)
	if len(headers) != 4 || len(rows) != 2 {
		t.Fatalf("candidateRows() = %v, %v", headers, rows)
	}
	if rows[0][3] != "current" || rows[1][3] != "new" {
		t.Fatalf("statuses = %q, %q", rows[0][3], rows[1][3])
	}
	if rows[1][2] != "sha256:fedcba987654" {
		t.Fatalf("digest = %q", rows[1][2])
	}
}

func TestTerminalPresenter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Out: &buf})
	data := &setup.Data{
		RunID: "run-1",
		Auth:  setup.Auth{Registry: "registry.example.com", Username: "deploy", IdentityToken: "tok"},
		Image: "registry.example.com/acme/app:stable",
		Installed: &setup.InstallResult{
			ContainerID:   "0123456789abcdef",
			ContainerName: "setupwiz-app",
			Image:         "registry.example.com/acme/app:stable",
			Digest:        "sha256:aa",
		},
	}

	term.Summary(wizard.Confirmation, data)
	term.Success(data)
	term.Failure("invalid token", data)
	term.Notice("no updates available")

	out := buf.String()
	for _, want := range []string{
		"registry.example.com/acme/app:stable",
		"0123456789ab",
		"setup failed: invalid token",
		"run-1",
		"no updates available",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Fatal("container id should be shortened")
	}
}
