package setup

import (
	"context"
	"errors"
	"time"

	"setupwiz/wizard"

	"go.opentelemetry.io/otel/trace"
)

// ErrCancelled is returned by a Prompter when the user backs out of a prompt.
var ErrCancelled = errors.New("cancelled")

// Credentials are what the user supplies on the registry screen.
type Credentials struct {
	Registry string
	Username string
	Secret   string
}

// Auth is a verified registry login. IdentityToken is set when the registry
// exchanged the password for a token; Secret is kept for registries that
// do not.
type Auth struct {
	Registry      string
	Username      string
	Secret        string
	IdentityToken string
	Status        string
}

func (a Auth) Valid() bool {
	return a.Registry != "" && (a.IdentityToken != "" || a.Secret != "")
}

// Candidate is an update the registry offers for the configured image.
type Candidate struct {
	Channel      string
	Ref          string
	RemoteDigest string
	LocalDigest  string
}

// Current reports whether the local image already matches the registry.
func (c Candidate) Current() bool {
	return c.LocalDigest != "" && c.LocalDigest == c.RemoteDigest
}

// Artifact is an image available locally for installation.
type Artifact struct {
	Ref    string
	Digest string
}

type EnvRequest struct {
	Auth    Auth
	Image   string
	DataDir string
}

type ConfigRequest struct {
	Profile string
	Image   string
	EnvPath string
}

type InstallRequest struct {
	Auth        Auth
	Image       string
	EnvPath     string
	ComposePath string
}

type InstallResult struct {
	ContainerID   string
	ContainerName string
	Image         string
	Digest        string
}

// Data is the wizard data gathered during a run. It is owned by the
// session and never stored inside wizard.State.
type Data struct {
	RunID       string
	Auth        Auth
	Image       string
	DataDir     string
	EnvPath     string
	Profile     string
	ComposePath string
	Candidates  []Candidate
	Selected    *Candidate
	Artifact    *Artifact
	Installed   *InstallResult
}

// Authenticated reports whether a registry login succeeded in this run.
func (d *Data) Authenticated() bool {
	return d.Auth.Valid()
}

// InstallImage is the image the installer will apply: the pulled update if
// there is one, otherwise the configured image.
func (d *Data) InstallImage() string {
	if d.Artifact != nil && d.Artifact.Ref != "" {
		return d.Artifact.Ref
	}
	return d.Image
}

// Run is the record of one finished wizard run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Image      string
	Digest     string
	Message    string
}

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeQuit    = "quit"
)

type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Auth, error)
}

type EnvGenerator interface {
	Generate(ctx context.Context, req EnvRequest) (string, error)
}

type ConfigGenerator interface {
	Profiles() []string
	Generate(ctx context.Context, req ConfigRequest) (string, error)
}

type UpdateLister interface {
	List(ctx context.Context, auth Auth) ([]Candidate, error)
}

type Puller interface {
	Pull(ctx context.Context, candidate Candidate, auth Auth) (Artifact, error)
}

type Installer interface {
	Install(ctx context.Context, req InstallRequest) (InstallResult, error)
}

// Prompter reads user decisions.
type Prompter interface {
	Credentials(ctx context.Context, defaults Credentials) (Credentials, error)
	Select(ctx context.Context, state wizard.State, options []wizard.Selection) (wizard.Selection, error)
	Profile(ctx context.Context, profiles []string) (string, error)
	// Candidate returns the index of the chosen candidate, or -1 to go back.
	Candidate(ctx context.Context, candidates []Candidate) (int, error)
}

// Presenter renders wizard screens that need no answer.
type Presenter interface {
	Summary(state wizard.State, data *Data)
	Success(data *Data)
	Failure(message string, data *Data)
	Notice(msg string)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, run Run) error
}

// StepOutput renders collaborator steps. ui.TelemetryOutput implements it.
type StepOutput interface {
	Tracer(name string) trace.Tracer
	Close()
}
