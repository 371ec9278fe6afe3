package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"setupwiz/cmd/setupwiz/ui"
	"setupwiz/config"
	"setupwiz/internal/adapter/docker"
	"setupwiz/internal/envfile"
	"setupwiz/internal/history"
	"setupwiz/internal/profile"
	"setupwiz/pkg/sdk/setup"
	"setupwiz/wizard"

	"github.com/spf13/cobra"
)

const dockerReadyTimeout = 30 * time.Second

type runFlags struct {
	registry      string
	username      string
	passwordStdin bool
	image         string
	selections    []string
	channel       string
	profile       string
	noInteraction bool
	timeout       time.Duration
}

func runCmd(global *globalFlags) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the setup wizard",
		Long: `Run the setup wizard: log in to the registry, then generate the
environment file and container configuration, check for updates, and
install the application container.

Every prompt can be answered up front for unattended runs, for example:

  echo "$TOKEN" | setupwiz run --registry registry.example.com \
    --username deploy --password-stdin \
    --select generate-env --select generate-config --profile small \
    --select proceed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWizard(cmd, global, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.registry, "registry", "", "Registry host (overrides settings)")
	flags.StringVar(&f.username, "username", "", "Registry user (overrides settings)")
	flags.BoolVar(&f.passwordStdin, "password-stdin", false, "Read the registry token from stdin")
	flags.StringVar(&f.image, "image", "", "Image to install (overrides settings)")
	flags.StringArrayVar(&f.selections, "select", nil, "Answer the next menu prompt (proceed, generate-env, generate-config, update-token, check-updates, cancel); repeatable")
	flags.StringVar(&f.channel, "channel", "", "Answer the update list with this channel")
	flags.StringVar(&f.profile, "profile", "", "Configuration profile to generate")
	flags.BoolVar(&f.noInteraction, "no-interaction", false, "Never prompt; fail when an answer is missing")
	flags.DurationVar(&f.timeout, "timeout", 0, "Per-step timeout (overrides settings)")
	return cmd
}

func runWizard(cmd *cobra.Command, global *globalFlags, f *runFlags) error {
	settings, err := config.Load(global.configPath)
	if err != nil {
		return err
	}
	f.apply(settings)

	selections, err := parseSelections(f.selections)
	if err != nil {
		return err
	}

	creds := setup.Credentials{Registry: settings.Registry, Username: settings.Username}
	if f.passwordStdin {
		if creds.Secret, err = readSecret(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	// Stdin is spent once the token has been read from it.
	ui.ConfigureInteraction(f.noInteraction || f.passwordStdin)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	readyCtx, cancel := context.WithTimeout(ctx, dockerReadyTimeout)
	err = ui.RunWithSpinner(readyCtx, "connecting to docker", func(ctx context.Context) error {
		return docker.WaitReady(ctx, cli, time.Second)
	})
	cancel()
	if err != nil {
		return err
	}

	var recorder setup.Recorder
	if store, err := history.Open(settings.HistoryDB); err != nil {
		slog.Warn("run history disabled", "path", settings.HistoryDB, "err", err)
	} else {
		defer store.Close()
		recorder = store
	}

	interactive := ui.IsInteractive()
	updates := docker.NewUpdates(cli, settings.Image, settings.Channels)
	installer := docker.NewInstaller(cli, docker.InstallerConfig{
		ContainerName: settings.ContainerName,
		DataDir:       settings.DataDir,
	})
	// Raw pull progress would tear the interactive checklist.
	if !interactive {
		updates.SetProgress(cmd.ErrOrStderr())
		installer.SetProgress(cmd.ErrOrStderr())
	}
	terminal := ui.NewTerminal(ui.TerminalOptions{
		Out:         cmd.ErrOrStderr(),
		Interactive: interactive,
		Selections:  selections,
		Channel:     f.channel,
	})
	session, err := setup.New(setup.Dependencies{
		Authenticator: docker.NewRegistry(cli),
		EnvGenerator:  &envfile.Generator{Path: settings.EnvFile},
		ConfigGenerator: &profile.Generator{
			Definitions: settings.Profiles,
			Dir:         settings.DataDir,
			Path:        settings.ComposeFile,
			DataDir:     settings.DataDir,
		},
		UpdateLister: updates,
		Puller:       updates,
		Installer:    installer,
		Prompter:     terminal,
		Presenter:    terminal,
		Recorder:     recorder,
		Output:       func() setup.StepOutput { return ui.NewTelemetryOutput() },
	})
	if err != nil {
		return err
	}

	result, err := session.Run(ctx, setup.Options{
		Credentials:      creds,
		Image:            settings.Image,
		DataDir:          settings.DataDir,
		Profile:          f.profile,
		OperationTimeout: settings.Timeout(),
	})
	if err != nil {
		return err
	}
	if _, failed := result.State.Message(); failed {
		return &exitError{code: 1}
	}
	return nil
}

// apply lets flags override the settings file.
func (f *runFlags) apply(settings *config.Settings) {
	if f.registry != "" {
		settings.Registry = f.registry
	}
	if f.username != "" {
		settings.Username = f.username
	}
	if f.image != "" {
		settings.Image = f.image
	}
	if f.timeout > 0 {
		settings.OperationTimeout = config.Duration(f.timeout)
	}
}

func parseSelections(raw []string) ([]wizard.Selection, error) {
	out := make([]wizard.Selection, 0, len(raw))
	for _, r := range raw {
		sel, ok := wizard.ParseSelection(r)
		if !ok {
			return nil, fmt.Errorf("invalid --select value %q", r)
		}
		out = append(out, sel)
	}
	return out, nil
}

func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("read token from stdin: empty input")
	}
	return secret, nil
}
