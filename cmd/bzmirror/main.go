package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bzmirror/bzmirror/internal/config"
	"github.com/bzmirror/bzmirror/internal/logging"
	"github.com/bzmirror/bzmirror/internal/telemetry"
	"github.com/bzmirror/bzmirror/internal/ui"
)

var (
	configFile   string
	verboseFlag  bool
	quietFlag    bool
	outputFormat string

	// v holds every configuration source; commands bind their flags into it.
	v = config.New()

	shutdownTelemetry = telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "bzmirror",
	Short: "bzmirror - mirror Bugzilla bugs into GitHub issues",
	Long: `Keeps a GitHub repository's issues in step with a set of Bugzilla queries.

Every open bug matched by a query gets a GitHub issue whose title ends in
[bz<id>]. Stale titles and bodies are rewritten, and issues whose bug was
resolved or deleted are closed. Confidential bugs are mirrored as a
placeholder that reveals nothing but the bug number.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.ApplyColorProfile()

		logger := logging.New(logging.Options{
			Verbose: verboseFlag,
			Quiet:   quietFlag,
			Out:     cmd.ErrOrStderr(),
		})
		logging.SetDefault(logger)
		ctx := logging.WithLogger(cmd.Context(), logging.Default())

		if err := telemetry.Init(ctx, "bzmirror", Version); err != nil {
			logger.Warn().Err(err).Msg("Telemetry disabled")
		}
		cmd.SetContext(ctx)

		switch outputFormat {
		case formatText, formatJSON, formatYAML:
			return nil
		default:
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: bzmirror.yaml in ., $XDG_CONFIG_HOME/bzmirror or ~/.config/bzmirror)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "Output format: text, json or yaml")
}

// loadConfig resolves the configuration for the running command.
func loadConfig() (*config.Config, error) {
	return config.Load(v, configFile)
}

// execute runs the root command. Telemetry is flushed after every run;
// cobra skips post-run hooks when a command fails.
func execute(ctx context.Context) error {
	defer shutdownTelemetry(context.WithoutCancel(ctx))
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		stop()
		os.Exit(1)
	}
}
