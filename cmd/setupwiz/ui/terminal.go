package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"setupwiz/pkg/sdk/setup"
	"setupwiz/wizard"
)

var (
	_ setup.Prompter  = (*Terminal)(nil)
	_ setup.Presenter = (*Terminal)(nil)
)

type TerminalOptions struct {
	Out         io.Writer
	Interactive bool
	// Selections answer menu prompts in order before falling back to the
	// interactive menu.
	Selections []wizard.Selection
	// Channel answers the update list prompt by channel name.
	Channel string
}

// Terminal asks the user for wizard decisions and renders wizard screens.
// Answers given up front through TerminalOptions are used first.
type Terminal struct {
	out         io.Writer
	interactive bool

	mu          sync.Mutex
	selections  []wizard.Selection
	channel     string
	credsUsed   bool
	channelUsed bool

	// Overridable for tests.
	prompt func(ctx context.Context, label, placeholder, value, hint string) (string, error)
	secret func(ctx context.Context, label, hint string) (string, error)
	choose func(ctx context.Context, title string, options []string, hint string) (int, error)
	pick   func(ctx context.Context, headers []string, rows [][]string, hint string) (int, error)
}

func NewTerminal(opts TerminalOptions) *Terminal {
	return &Terminal{
		out:         opts.Out,
		interactive: opts.Interactive,
		selections:  append([]wizard.Selection(nil), opts.Selections...),
		channel:     strings.TrimSpace(opts.Channel),
		prompt:      Prompt,
		secret:      Secret,
		choose:      Choose,
		pick:        InteractiveTable,
	}
}

func (t *Terminal) Credentials(ctx context.Context, defaults setup.Credentials) (setup.Credentials, error) {
	t.mu.Lock()
	first := !t.credsUsed
	t.credsUsed = true
	t.mu.Unlock()

	complete := defaults.Registry != "" && defaults.Username != "" && defaults.Secret != ""
	if first && complete {
		return defaults, nil
	}
	if !t.interactive {
		if !first && complete {
			return setup.Credentials{}, fmt.Errorf("registry token can only be updated interactively: %w", &ErrNoInteraction{})
		}
		return setup.Credentials{}, &ErrNoInteraction{Hint: "use --registry, --username and --password-stdin"}
	}

	fmt.Fprintln(t.out, TitleStyle.Render("Registry login"))
	registry, err := t.prompt(ctx, "Registry", "registry.example.com", defaults.Registry, "use --registry <host>")
	if err != nil {
		return setup.Credentials{}, cancelled(err)
	}
	username, err := t.prompt(ctx, "Username", "deploy", defaults.Username, "use --username <name>")
	if err != nil {
		return setup.Credentials{}, cancelled(err)
	}
	secret, err := t.secret(ctx, "Access token", "use --password-stdin")
	if err != nil {
		return setup.Credentials{}, cancelled(err)
	}
	return setup.Credentials{Registry: registry, Username: username, Secret: secret}, nil
}

func (t *Terminal) Select(ctx context.Context, state wizard.State, options []wizard.Selection) (wizard.Selection, error) {
	t.mu.Lock()
	if len(t.selections) > 0 {
		sel := t.selections[0]
		t.selections = t.selections[1:]
		t.mu.Unlock()
		fmt.Fprintln(t.out, InfoMsg("%s", sel.Label()))
		return sel, nil
	}
	t.mu.Unlock()

	if !t.interactive {
		return 0, &ErrNoInteraction{Hint: "use --select to choose the next step"}
	}
	labels := make([]string, len(options))
	for i, sel := range options {
		labels[i] = sel.Label()
	}
	idx, err := t.choose(ctx, "What next?", labels, "use --select")
	if err != nil {
		return 0, cancelled(err)
	}
	return options[idx], nil
}

func (t *Terminal) Profile(ctx context.Context, profiles []string) (string, error) {
	if len(profiles) == 0 {
		return "", fmt.Errorf("no configuration profiles defined")
	}
	if !t.interactive {
		return "", &ErrNoInteraction{Hint: "use --profile <name>"}
	}
	idx, err := t.choose(ctx, "Configuration profile", profiles, "use --profile <name>")
	if err != nil {
		return "", cancelled(err)
	}
	return profiles[idx], nil
}

func (t *Terminal) Candidate(ctx context.Context, candidates []setup.Candidate) (int, error) {
	t.mu.Lock()
	channel, used := t.channel, t.channelUsed
	t.channelUsed = true
	t.mu.Unlock()

	if channel != "" && !used {
		for i, c := range candidates {
			if c.Channel == channel {
				return i, nil
			}
		}
		return -1, fmt.Errorf("channel %q is not available (have %s)", channel, channelNames(candidates))
	}
	if !t.interactive {
		fmt.Fprintln(t.out, CandidateTable(candidates))
		return -1, &ErrNoInteraction{Hint: "use --channel <name>"}
	}

	headers, rows := candidateRows(candidates)
	idx, err := t.pick(ctx, headers, rows, "use --channel <name>")
	if err != nil {
		return -1, cancelled(err)
	}
	return idx, nil
}

func (t *Terminal) Summary(state wizard.State, data *setup.Data) {
	pairs := []Pair{
		KV("registry", data.Auth.Registry),
		KV("user", data.Auth.Username),
		KV("image", data.InstallImage()),
		KV("env file", data.EnvPath),
		KV("profile", data.Profile),
		KV("compose file", data.ComposePath),
	}
	if !data.Authenticated() {
		pairs[0] = KV("registry", WarnStyle.Render("not logged in"))
	}
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, TitleStyle.Render("Setup"))
	fmt.Fprint(t.out, KeyValues("  ", pairs...))
}

func (t *Terminal) Success(data *setup.Data) {
	fmt.Fprintln(t.out)
	if data.Installed == nil {
		fmt.Fprintln(t.out, SuccessMsg("setup complete"))
		return
	}
	fmt.Fprintln(t.out, SuccessMsg("installed %s", Bold(data.Installed.Image)))
	fmt.Fprint(t.out, KeyValues("  ",
		KV("container", data.Installed.ContainerName),
		KV("id", shortID(data.Installed.ContainerID)),
		KV("digest", data.Installed.Digest),
	))
}

func (t *Terminal) Failure(message string, data *setup.Data) {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, ErrorMsg("setup failed: %s", message))
	fmt.Fprintln(t.out, Muted("  run setupwiz again to retry; run id "+data.RunID))
}

func (t *Terminal) Notice(msg string) {
	fmt.Fprintln(t.out, WarnMsg("%s", msg))
}

// CandidateTable renders update candidates as a static table.
func CandidateTable(candidates []setup.Candidate) string {
	return Table(candidateRows(candidates))
}

func candidateRows(candidates []setup.Candidate) ([]string, [][]string) {
	headers := []string{"CHANNEL", "IMAGE", "DIGEST", "STATUS"}
	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		status := "update"
		switch {
		case c.Current():
			status = "current"
		case c.LocalDigest == "":
			status = "new"
		}
		rows[i] = []string{c.Channel, c.Ref, shortDigest(c.RemoteDigest), status}
	}
	return headers, rows
}

func channelNames(candidates []setup.Candidate) string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Channel
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func shortDigest(d string) string {
	algo, hex, ok := strings.Cut(d, ":")
	if !ok || len(hex) <= 12 {
		return d
	}
	return algo + ":" + hex[:12]
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// cancelled maps a backed-out prompt to setup.ErrCancelled.
func cancelled(err error) error {
	if errors.Is(err, ErrCancelled) {
		return setup.ErrCancelled
	}
	return err
}
