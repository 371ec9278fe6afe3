// Package setup runs the setup wizard. A Session owns the current
// wizard.State and the Data gathered along the way, asks the Prompter for
// decisions, runs the collaborator each state calls for, and feeds every
// outcome through wizard.Next until the run ends.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"setupwiz/internal/check"
	"setupwiz/pkg/sdk/telemetry"
	"setupwiz/wizard"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultOperationTimeout = 10 * time.Minute

type Options struct {
	// Credentials pre-fill the registry prompt. A scripted prompter uses
	// them as the answer.
	Credentials      Credentials
	Image            string
	DataDir          string
	Profile          string
	OperationTimeout time.Duration
}

// Result describes how a run ended. Quit is true when the user left from
// the confirmation screen; State is then the state the run stopped in.
type Result struct {
	State wizard.State
	Quit  bool
	Data  Data
}

type Dependencies struct {
	Authenticator   Authenticator
	EnvGenerator    EnvGenerator
	ConfigGenerator ConfigGenerator
	UpdateLister    UpdateLister
	Puller          Puller
	Installer       Installer
	Prompter        Prompter
	Presenter       Presenter
	Recorder        Recorder
	Output          func() StepOutput
	Now             func() time.Time
	NewID           func() string
}

type Session struct {
	auth      Authenticator
	env       EnvGenerator
	config    ConfigGenerator
	lister    UpdateLister
	puller    Puller
	installer Installer
	prompter  Prompter
	presenter Presenter
	recorder  Recorder
	output    func() StepOutput
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

func New(deps Dependencies) (*Session, error) {
	missing := make([]string, 0, 8)
	if deps.Authenticator == nil {
		missing = append(missing, "authenticator")
	}
	if deps.EnvGenerator == nil {
		missing = append(missing, "env generator")
	}
	if deps.ConfigGenerator == nil {
		missing = append(missing, "config generator")
	}
	if deps.UpdateLister == nil {
		missing = append(missing, "update lister")
	}
	if deps.Puller == nil {
		missing = append(missing, "puller")
	}
	if deps.Installer == nil {
		missing = append(missing, "installer")
	}
	if deps.Prompter == nil {
		missing = append(missing, "prompter")
	}
	if deps.Presenter == nil {
		missing = append(missing, "presenter")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("setup session: missing %s", strings.Join(missing, ", "))
	}

	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Output == nil {
		deps.Output = func() StepOutput { return tracerOutput{} }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &Session{
		auth:      deps.Authenticator,
		env:       deps.EnvGenerator,
		config:    deps.ConfigGenerator,
		lister:    deps.UpdateLister,
		puller:    deps.Puller,
		installer: deps.Installer,
		prompter:  deps.Prompter,
		presenter: deps.Presenter,
		recorder:  deps.Recorder,
		output:    deps.Output,
		now:       deps.Now,
		newID:     deps.NewID,
		log:       slog.With("component", "setup"),
	}, nil
}

// Run drives the wizard from RegistrySetup until it reaches Success or
// Error, or the user quits. Collaborator failures end the run in the Error
// state and are not returned as errors; the returned error reports prompts
// that could not be answered and engine misuse.
func (s *Session) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}

	r := &run{
		Session: s,
		opts:    opts,
		started: s.now(),
		data: &Data{
			RunID:   s.newID(),
			Image:   strings.TrimSpace(opts.Image),
			DataDir: strings.TrimSpace(opts.DataDir),
		},
	}
	s.log.Info("wizard started", "run", r.data.RunID, "image", r.data.Image)

	state := wizard.RegistrySetup
	for !state.IsTerminal() {
		ev, err := r.step(ctx, state)
		if err == nil {
			var next wizard.State
			next, err = wizard.Next(state, ev)
			if err == nil {
				s.log.Debug("transition", "from", state, "event", ev, "to", next)
				r.enter(state, next)
				state = next
				continue
			}
		}

		switch {
		case errors.Is(err, wizard.ErrQuit):
			s.log.Info("wizard quit", "run", r.data.RunID, "state", state)
			r.record(ctx, OutcomeQuit, "")
			return Result{State: state, Quit: true, Data: *r.data}, nil
		case errors.Is(err, wizard.ErrIllegalSelection):
			s.log.Warn("selection rejected", "state", state, "err", err)
			s.presenter.Notice("that option is not available here")
		default:
			return Result{State: state, Data: *r.data}, fmt.Errorf("wizard %s: %w", state, err)
		}
	}

	if msg, failed := state.Message(); failed {
		s.log.Error("wizard failed", "run", r.data.RunID, "message", msg)
		s.presenter.Failure(msg, r.data)
		r.record(ctx, OutcomeError, msg)
	} else {
		s.log.Info("wizard finished", "run", r.data.RunID, "image", r.data.InstallImage())
		s.presenter.Success(r.data)
		r.record(ctx, OutcomeSuccess, "")
	}
	return Result{State: state, Data: *r.data}, nil
}

// run is the per-invocation view of a Session.
type run struct {
	*Session
	opts    Options
	data    *Data
	started time.Time
	listed  bool
}

func (r *run) step(ctx context.Context, state wizard.State) (wizard.Event, error) {
	op, awaiting := wizard.Awaits(state)
	if !awaiting {
		if state.Step() == wizard.StepConfirmation {
			return r.confirm(ctx, state)
		}
		return wizard.Event{}, fmt.Errorf("no handler for state %s", state)
	}

	switch op {
	case wizard.OpAuth:
		return r.authenticate(ctx)
	case wizard.OpEnvGen:
		return r.generateEnv(ctx), nil
	case wizard.OpConfigGen:
		return r.generateConfig(ctx)
	case wizard.OpListUpdates:
		return r.chooseUpdate(ctx)
	case wizard.OpPull:
		return r.pull(ctx), nil
	case wizard.OpInstall:
		return r.install(ctx), nil
	default:
		return wizard.Event{}, fmt.Errorf("no handler for operation %s in state %s", op, state)
	}
}

// enter resets per-visit data when the wizard moves to a new screen.
func (r *run) enter(from, to wizard.State) {
	check.Assertf(!from.IsTerminal(), "transition out of terminal state %s", from)
	if to == wizard.UpdateList && from != wizard.UpdateList {
		r.listed = false
		r.data.Candidates = nil
		r.data.Selected = nil
	}
}

func (r *run) authenticate(ctx context.Context) (wizard.Event, error) {
	creds, err := r.prompter.Credentials(ctx, r.opts.Credentials)
	if err != nil {
		return promptFailed(err)
	}
	creds.Registry = strings.TrimSpace(creds.Registry)
	creds.Username = strings.TrimSpace(creds.Username)

	return r.operate(ctx, wizard.OpAuth, "logging in to "+creds.Registry, func(ctx context.Context) error {
		auth, err := r.auth.Login(ctx, creds)
		if err != nil {
			return err
		}
		if !auth.Valid() {
			return fmt.Errorf("registry %s returned no usable credentials", creds.Registry)
		}
		r.data.Auth = auth
		return nil
	}), nil
}

func (r *run) confirm(ctx context.Context, state wizard.State) (wizard.Event, error) {
	r.presenter.Summary(state, r.data)

	options := r.offered(state)
	sel, err := r.prompter.Select(ctx, state, options)
	if err != nil {
		return promptFailed(err)
	}
	ev := wizard.UserInput(sel)
	if !containsSelection(options, sel) {
		return ev, &wizard.TransitionError{State: state, Event: ev, Err: wizard.ErrIllegalSelection}
	}
	return ev, nil
}

// offered narrows the engine's menu: installing and checking updates need a
// registry login from this run.
func (r *run) offered(state wizard.State) []wizard.Selection {
	all := wizard.Offered(state)
	if r.data.Authenticated() {
		return all
	}
	out := make([]wizard.Selection, 0, len(all))
	for _, sel := range all {
		if sel == wizard.Proceed || sel == wizard.CheckUpdates {
			continue
		}
		out = append(out, sel)
	}
	return out
}

func (r *run) generateEnv(ctx context.Context) wizard.Event {
	return r.operate(ctx, wizard.OpEnvGen, "generating environment file", func(ctx context.Context) error {
		path, err := r.env.Generate(ctx, EnvRequest{
			Auth:    r.data.Auth,
			Image:   r.data.Image,
			DataDir: r.data.DataDir,
		})
		if err != nil {
			return err
		}
		r.data.EnvPath = path
		return nil
	})
}

func (r *run) generateConfig(ctx context.Context) (wizard.Event, error) {
	profile := strings.TrimSpace(r.opts.Profile)
	if profile == "" {
		chosen, err := r.prompter.Profile(ctx, r.config.Profiles())
		if err != nil {
			return promptFailed(err)
		}
		profile = chosen
	}

	return r.operate(ctx, wizard.OpConfigGen, "generating "+profile+" configuration", func(ctx context.Context) error {
		path, err := r.config.Generate(ctx, ConfigRequest{
			Profile: profile,
			Image:   r.data.InstallImage(),
			EnvPath: r.data.EnvPath,
		})
		if err != nil {
			return err
		}
		r.data.Profile = profile
		r.data.ComposePath = path
		return nil
	}), nil
}

func (r *run) chooseUpdate(ctx context.Context) (wizard.Event, error) {
	if !r.listed {
		ev := r.operate(ctx, wizard.OpListUpdates, "checking for updates", func(ctx context.Context) error {
			candidates, err := r.lister.List(ctx, r.data.Auth)
			if err != nil {
				return err
			}
			r.data.Candidates = candidates
			return nil
		})
		r.listed = true
		return ev, nil
	}

	if len(r.data.Candidates) == 0 {
		r.presenter.Notice("no updates available")
		return wizard.UserInput(wizard.Cancel), nil
	}

	idx, err := r.prompter.Candidate(ctx, r.data.Candidates)
	if err != nil {
		return promptFailed(err)
	}
	if idx < 0 {
		return wizard.UserInput(wizard.Cancel), nil
	}
	if idx >= len(r.data.Candidates) {
		return wizard.Event{}, fmt.Errorf("candidate %d out of range (%d available)", idx, len(r.data.Candidates))
	}
	selected := r.data.Candidates[idx]
	r.data.Selected = &selected
	return wizard.UserInput(wizard.Proceed), nil
}

func (r *run) pull(ctx context.Context) wizard.Event {
	if r.data.Selected == nil {
		return wizard.Failed(wizard.OpPull, "no update selected")
	}
	selected := *r.data.Selected

	return r.operate(ctx, wizard.OpPull, "pulling "+selected.Ref, func(ctx context.Context) error {
		artifact, err := r.puller.Pull(ctx, selected, r.data.Auth)
		if err != nil {
			return err
		}
		r.data.Artifact = &artifact
		return nil
	})
}

func (r *run) install(ctx context.Context) wizard.Event {
	if !r.data.Authenticated() {
		return wizard.Failed(wizard.OpInstall, "registry login required before install")
	}
	image := r.data.InstallImage()
	if image == "" {
		return wizard.Failed(wizard.OpInstall, "no image configured to install")
	}

	return r.operate(ctx, wizard.OpInstall, "installing "+image, func(ctx context.Context) error {
		result, err := r.installer.Install(ctx, InstallRequest{
			Auth:        r.data.Auth,
			Image:       image,
			EnvPath:     r.data.EnvPath,
			ComposePath: r.data.ComposePath,
		})
		if err != nil {
			return err
		}
		r.data.Installed = &result
		return nil
	})
}

// operate runs fn as a single telemetry step bounded by the operation
// timeout and reports its outcome as a wizard event.
func (r *run) operate(ctx context.Context, op wizard.Operation, title string, fn func(context.Context) error) wizard.Event {
	out := r.output()
	defer out.Close()

	tel, err := telemetry.EmitPlan(ctx, out.Tracer("setupwiz/setup"), "setup."+op.String(), telemetry.Plan{
		Steps: []telemetry.PlannedStep{{ID: op.String(), Title: title}},
	})
	if err != nil {
		return wizard.Failed(op, err.Error())
	}

	opCtx, cancel := context.WithTimeout(tel.Context(), r.opts.OperationTimeout)
	defer cancel()

	runErr := tel.RunStep(opCtx, op.String(), fn)
	if runErr != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("%s timed out after %s: %w", op, r.opts.OperationTimeout, runErr)
	}
	tel.End(runErr)

	if runErr != nil {
		r.log.Warn("operation failed", "op", op, "err", runErr)
		return wizard.Failed(op, runErr.Error())
	}
	r.log.Debug("operation succeeded", "op", op)
	return wizard.Succeeded(op)
}

func (r *run) record(ctx context.Context, outcome, message string) {
	entry := Run{
		ID:         r.data.RunID,
		StartedAt:  r.started,
		FinishedAt: r.now(),
		Outcome:    outcome,
		Image:      r.data.InstallImage(),
		Message:    message,
	}
	if r.data.Installed != nil {
		entry.Image = r.data.Installed.Image
		entry.Digest = r.data.Installed.Digest
	}
	if err := r.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.log.Warn("record run", "run", entry.ID, "err", err)
	}
}

func promptFailed(err error) (wizard.Event, error) {
	if errors.Is(err, ErrCancelled) {
		return wizard.UserInput(wizard.Cancel), nil
	}
	return wizard.Event{}, fmt.Errorf("prompt: %w", err)
}

func containsSelection(options []wizard.Selection, sel wizard.Selection) bool {
	for _, o := range options {
		if o == sel {
			return true
		}
	}
	return false
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Run) error { return nil }

type tracerOutput struct{}

func (tracerOutput) Tracer(name string) trace.Tracer { return otel.Tracer(name) }
func (tracerOutput) Close()                          {}
