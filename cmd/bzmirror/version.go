package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of bzmirror (overridden by ldflags at build time)
	Version = "0.1.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
	// Commit is the git revision the binary was built from (optional ldflag)
	Commit = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		commit := resolveCommitHash()
		out := cmd.OutOrStdout()

		if outputFormat != formatText {
			info := map[string]string{"version": Version, "build": Build}
			if commit != "" {
				info["commit"] = commit
			}
			return writeStructured(out, outputFormat, info)
		}

		if commit != "" {
			_, _ = fmt.Fprintf(out, "bzmirror version %s (%s: %s)\n", Version, Build, shortCommit(commit))
		} else {
			_, _ = fmt.Fprintf(out, "bzmirror version %s (%s)\n", Version, Build)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func resolveCommitHash() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}
	return ""
}

func shortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
