package fake

import (
	"context"
	"errors"
	"sync"

	"setupwiz/pkg/sdk/setup"
	"setupwiz/wizard"
)

var (
	_ setup.Authenticator   = (*Registry)(nil)
	_ setup.EnvGenerator    = (*EnvGenerator)(nil)
	_ setup.ConfigGenerator = (*ConfigGenerator)(nil)
	_ setup.UpdateLister    = (*Updates)(nil)
	_ setup.Puller          = (*Updates)(nil)
	_ setup.Installer       = (*Installer)(nil)
	_ setup.Prompter        = (*Prompter)(nil)
	_ setup.Presenter       = (*Presenter)(nil)
	_ setup.Recorder        = (*Recorder)(nil)
)

// Registry accepts any credentials unless LoginErr says otherwise.
type Registry struct {
	CallRecorder
	LoginErr func(ctx context.Context, creds setup.Credentials) error
}

func (r *Registry) Login(ctx context.Context, creds setup.Credentials) (setup.Auth, error) {
	r.record("Login", creds)
	if r.LoginErr != nil {
		if err := r.LoginErr(ctx, creds); err != nil {
			return setup.Auth{}, err
		}
	}
	return setup.Auth{
		Registry:      creds.Registry,
		Username:      creds.Username,
		Secret:        creds.Secret,
		IdentityToken: "token-" + creds.Username,
		Status:        "Login Succeeded",
	}, nil
}

// EnvGenerator returns Path for every request.
type EnvGenerator struct {
	CallRecorder
	Path        string
	GenerateErr func(ctx context.Context, req setup.EnvRequest) error
}

func (g *EnvGenerator) Generate(ctx context.Context, req setup.EnvRequest) (string, error) {
	g.record("Generate", req)
	if g.GenerateErr != nil {
		if err := g.GenerateErr(ctx, req); err != nil {
			return "", err
		}
	}
	if g.Path == "" {
		return "/tmp/setupwiz/.env", nil
	}
	return g.Path, nil
}

// ConfigGenerator knows ProfileNames and writes nothing.
type ConfigGenerator struct {
	CallRecorder
	ProfileNames []string
	GenerateErr  func(ctx context.Context, req setup.ConfigRequest) error
}

func (g *ConfigGenerator) Profiles() []string {
	return append([]string(nil), g.ProfileNames...)
}

func (g *ConfigGenerator) Generate(ctx context.Context, req setup.ConfigRequest) (string, error) {
	g.record("Generate", req)
	if g.GenerateErr != nil {
		if err := g.GenerateErr(ctx, req); err != nil {
			return "", err
		}
	}
	return "/tmp/setupwiz/" + req.Profile + ".compose.yaml", nil
}

// Updates serves Available as the update catalog and pulls any candidate.
type Updates struct {
	CallRecorder
	Available []setup.Candidate
	ListErr   func(ctx context.Context) error
	PullErr   func(ctx context.Context, candidate setup.Candidate) error
}

func (u *Updates) List(ctx context.Context, auth setup.Auth) ([]setup.Candidate, error) {
	u.record("List", auth)
	if u.ListErr != nil {
		if err := u.ListErr(ctx); err != nil {
			return nil, err
		}
	}
	return append([]setup.Candidate(nil), u.Available...), nil
}

func (u *Updates) Pull(ctx context.Context, candidate setup.Candidate, auth setup.Auth) (setup.Artifact, error) {
	u.record("Pull", candidate, auth)
	if u.PullErr != nil {
		if err := u.PullErr(ctx, candidate); err != nil {
			return setup.Artifact{}, err
		}
	}
	return setup.Artifact{Ref: candidate.Ref, Digest: candidate.RemoteDigest}, nil
}

// Installer records install requests.
type Installer struct {
	CallRecorder
	InstallErr func(ctx context.Context, req setup.InstallRequest) error
}

func (i *Installer) Install(ctx context.Context, req setup.InstallRequest) (setup.InstallResult, error) {
	i.record("Install", req)
	if i.InstallErr != nil {
		if err := i.InstallErr(ctx, req); err != nil {
			return setup.InstallResult{}, err
		}
	}
	return setup.InstallResult{
		ContainerID:   "c0ffee",
		ContainerName: "app",
		Image:         req.Image,
		Digest:        "sha256:installed",
	}, nil
}

// Prompter answers prompts from queues. An exhausted queue fails the prompt
// with ErrExhausted.
type Prompter struct {
	CallRecorder
	mu         sync.Mutex
	Creds      []CredentialsAnswer
	Selections []wizard.Selection
	Profiles   []string
	Candidates []int
	SelectErr  func(ctx context.Context, state wizard.State) error
}

// CredentialsAnswer is one answer to the registry prompt. Cancel backs out.
type CredentialsAnswer struct {
	Credentials setup.Credentials
	Cancel      bool
}

// ErrExhausted is returned when a prompt has no queued answer.
var ErrExhausted = errors.New("fake prompter: no answer queued")

func (p *Prompter) Credentials(_ context.Context, defaults setup.Credentials) (setup.Credentials, error) {
	p.record("Credentials", defaults)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Creds) == 0 {
		return setup.Credentials{}, ErrExhausted
	}
	answer := p.Creds[0]
	p.Creds = p.Creds[1:]
	if answer.Cancel {
		return setup.Credentials{}, setup.ErrCancelled
	}
	return answer.Credentials, nil
}

func (p *Prompter) Select(ctx context.Context, state wizard.State, options []wizard.Selection) (wizard.Selection, error) {
	p.record("Select", state, options)
	if p.SelectErr != nil {
		if err := p.SelectErr(ctx, state); err != nil {
			return 0, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Selections) == 0 {
		return 0, ErrExhausted
	}
	sel := p.Selections[0]
	p.Selections = p.Selections[1:]
	return sel, nil
}

func (p *Prompter) Profile(_ context.Context, profiles []string) (string, error) {
	p.record("Profile", profiles)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Profiles) == 0 {
		return "", ErrExhausted
	}
	name := p.Profiles[0]
	p.Profiles = p.Profiles[1:]
	if name == "" {
		return "", setup.ErrCancelled
	}
	return name, nil
}

func (p *Prompter) Candidate(_ context.Context, candidates []setup.Candidate) (int, error) {
	p.record("Candidate", candidates)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Candidates) == 0 {
		return -1, ErrExhausted
	}
	idx := p.Candidates[0]
	p.Candidates = p.Candidates[1:]
	return idx, nil
}

// Presenter records what would have been rendered.
type Presenter struct {
	CallRecorder
}

func (p *Presenter) Summary(state wizard.State, data *setup.Data) {
	p.record("Summary", state, *data)
}

func (p *Presenter) Success(data *setup.Data) {
	p.record("Success", *data)
}

func (p *Presenter) Failure(message string, data *setup.Data) {
	p.record("Failure", message, *data)
}

func (p *Presenter) Notice(msg string) {
	p.record("Notice", msg)
}

// Recorder keeps finished runs in memory.
type Recorder struct {
	mu   sync.Mutex
	runs []setup.Run
}

func (r *Recorder) Record(_ context.Context, run setup.Run) error {
	r.mu.Lock()
	r.runs = append(r.runs, run)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Runs() []setup.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]setup.Run(nil), r.runs...)
}
