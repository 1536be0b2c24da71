package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bzmirror/bzmirror/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the resolved configuration",
	Long: `Display the configuration a sync would run with, secrets masked.

With --check, also confirm the GitHub token can see the mirror repository.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusCheck bool

func init() {
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "Verify GitHub access to the mirror repository")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat != formatText {
		masked := *cfg
		masked.Bugzilla.APIKey = maskSecret(cfg.Bugzilla.APIKey)
		masked.GitHub.Token = maskSecret(cfg.GitHub.Token)
		return writeStructured(out, outputFormat, masked)
	}

	configSource := cfg.ConfigFile
	if configSource == "" {
		configSource = "(none, using defaults and environment)"
	}

	_, _ = fmt.Fprintln(out, ui.RenderCategory("Bugzilla"))
	_, _ = fmt.Fprintf(out, "  API:       %s\n", cfg.Bugzilla.URL)
	_, _ = fmt.Fprintf(out, "  API key:   %s\n", maskSecret(cfg.Bugzilla.APIKey))
	_, _ = fmt.Fprintf(out, "  Statuses:  %s\n", strings.Join(cfg.Bugzilla.OpenStatuses, ", "))
	_, _ = fmt.Fprintf(out, "  Ignore:    %s\n", cfg.Bugzilla.IgnoreMarker)
	_, _ = fmt.Fprintln(out, "  Queries:")
	for _, q := range cfg.Bugzilla.Queries {
		_, _ = fmt.Fprintf(out, "    - %s\n", q)
	}
	if cfg.Bugzilla.QueriesFile != "" {
		_, _ = fmt.Fprintf(out, "    + %s\n", cfg.Bugzilla.QueriesFile)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, ui.RenderCategory("GitHub"))
	_, _ = fmt.Fprintf(out, "  Repo:      %s/%s\n", cfg.GitHub.Owner, cfg.GitHub.Repo)
	_, _ = fmt.Fprintf(out, "  Token:     %s\n", maskSecret(cfg.GitHub.Token))
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "Config file: %s\n", configSource)

	if err := cfg.Validate(true); err != nil {
		_, _ = fmt.Fprintf(out, "\nStatus: %s Not configured\n", ui.RenderFailIcon())
		for _, line := range strings.Split(err.Error(), "\n") {
			_, _ = fmt.Fprintf(out, "  %s\n", line)
		}
		return nil
	}

	if statusCheck {
		repo, err := newGitHubClient(cfg).FetchRepository(cmd.Context())
		if err != nil {
			_, _ = fmt.Fprintf(out, "\nStatus: %s %v\n", ui.RenderFailIcon(), err)
			return err
		}
		if !repo.HasIssues {
			_, _ = fmt.Fprintf(out, "\nStatus: %s %s has issues disabled\n", ui.RenderWarnIcon(), repo.FullName)
			return nil
		}
		if repo.Permissions != nil && !repo.Permissions.Push {
			_, _ = fmt.Fprintf(out, "\nStatus: %s token cannot write to %s\n", ui.RenderWarnIcon(), repo.FullName)
			return nil
		}
	}

	_, _ = fmt.Fprintf(out, "\nStatus: %s Configured\n", ui.RenderPassIcon())
	return nil
}
