package main

import (
	"errors"
	"fmt"
	"os"

	"setupwiz/internal/logging"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitError ends the process with code after the command has already
// reported the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	if err := logging.Configure(logging.Options{Level: logging.LevelWarn}); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	debug      bool
	logFormat  string
	configPath string
}

func newRootCmd() *cobra.Command {
	var global globalFlags

	run := runCmd(&global)
	root := &cobra.Command{
		Use:           "setupwiz",
		Short:         "Set up, configure and update the application container",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if global.debug {
				level = logging.LevelDebug
			}
			return logging.Configure(logging.Options{Level: level, Format: global.logFormat})
		},
		Args: cobra.NoArgs,
		RunE: run.RunE,
	}
	root.PersistentFlags().BoolVar(&global.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&global.logFormat, "log-format", logging.FormatText, "Log format (text or json)")
	root.PersistentFlags().StringVar(&global.configPath, "config", "", "Settings file (default $SETUPWIZ_CONFIG or ~/.config/setupwiz/config.yaml)")
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run)
	root.AddCommand(historyCmd(&global))
	root.AddCommand(configCmd(&global))
	return root
}
