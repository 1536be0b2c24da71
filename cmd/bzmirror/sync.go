package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bzmirror/bzmirror/internal/github"
	"github.com/bzmirror/bzmirror/internal/lockfile"
	"github.com/bzmirror/bzmirror/internal/logging"
	"github.com/bzmirror/bzmirror/internal/tracker"
	"github.com/bzmirror/bzmirror/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror open Bugzilla bugs into GitHub issues",
	Long: `Run every configured Bugzilla query, then create, update and close GitHub
issues until the repository mirrors the result.

Issues whose title does not end in [bz<id>] are never touched. Bugs whose
whiteboard carries the ignore marker, or whose URL field already points at
GitHub, are never mirrored and their existing issues are left alone.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var syncDryRun bool

func init() {
	f := syncCmd.Flags()
	f.BoolVar(&syncDryRun, "dry-run", false, "Show what would change without writing to GitHub")
	f.Bool("skip-unchanged", false, "Skip re-rendering mirrors of bugs untouched since the issue was last edited")
	f.Int("concurrency", tracker.DefaultConcurrency, "Maximum concurrent Bugzilla requests")

	_ = v.BindPFlag("sync.skip_unchanged", f.Lookup("skip-unchanged"))
	_ = v.BindPFlag("sync.concurrency", f.Lookup("concurrency"))

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(!syncDryRun); err != nil {
		return err
	}
	queries, err := cfg.Queries()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := logging.FromContext(ctx)
	out := cmd.OutOrStdout()
	text := outputFormat == formatText

	// Dry runs never write, so they may overlap a real run.
	if !syncDryRun {
		lock, err := lockfile.Acquire(cfg.Sync.LockFile, "bzmirror sync")
		if err != nil {
			return fmt.Errorf("acquiring sync lock: %w", err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn().Err(err).Str("path", lock.Path()).Msg("Failed to release sync lock")
			}
		}()
	}

	engine := tracker.NewEngine(newBugzillaTracker(cfg), github.NewTracker(newGitHubClient(cfg)), cfg.Bugzilla.ViewURL)
	engine.Classifier.Authed = cfg.Bugzilla.RenderWithAPIKey
	if text {
		engine.OnMessage = func(msg string) {
			if !quietFlag {
				_, _ = fmt.Fprintf(out, "%s %s\n", ui.RenderMuted("→"), msg)
			}
		}
		engine.OnWarning = func(msg string) { log.Debug().Msg(msg) }
	} else {
		engine.OnMessage = func(msg string) { log.Info().Msg(msg) }
		engine.OnWarning = func(msg string) { log.Warn().Msg(msg) }
	}

	log.Debug().
		Int("queries", len(queries)).
		Str("repo", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo).
		Bool("dry_run", syncDryRun).
		Msg("Starting sync")

	if syncDryRun && text {
		_, _ = fmt.Fprintln(out, ui.RenderWarn("Dry run mode - no changes will be made"))
		_, _ = fmt.Fprintln(out)
	}

	result, syncErr := engine.Sync(ctx, tracker.SyncOptions{
		Queries:       queries,
		Exclusion:     cfg.Exclusion(),
		DryRun:        syncDryRun,
		SkipUnchanged: cfg.Sync.SkipUnchanged,
		Concurrency:   cfg.Sync.Concurrency,
	})

	if text {
		printSyncSummary(out, result)
	} else if err := writeStructured(out, outputFormat, result); err != nil {
		return err
	}

	if syncErr != nil {
		return syncErr
	}
	if result.Stats.Errors > 0 {
		return fmt.Errorf("%d mutation(s) failed", result.Stats.Errors)
	}
	return nil
}

// summaryWidth bounds warning and failure lines; the JSON output keeps them whole.
const summaryWidth = 160

func printSyncSummary(w io.Writer, res *tracker.SyncResult) {
	if res == nil {
		return
	}
	if res.Error != "" && res.Plan == nil {
		return
	}

	verb := func(done, would string) string {
		if res.DryRun {
			return would
		}
		return done
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, ui.RenderCategory("Summary"))
	_, _ = fmt.Fprintln(w, ui.RenderSeparator())
	_, _ = fmt.Fprintf(w, "  %-16s %d (%d excluded)\n", "Bugs fetched:", res.Stats.Fetched, res.Stats.Excluded)
	_, _ = fmt.Fprintf(w, "  %-16s %d\n", "Mirrors found:", res.Stats.Mirrors)
	_, _ = fmt.Fprintf(w, "  %-16s %d\n", verb("Created:", "Would create:"), res.Stats.Created)
	_, _ = fmt.Fprintf(w, "  %-16s %d\n", verb("Updated:", "Would update:"), res.Stats.Updated)
	_, _ = fmt.Fprintf(w, "  %-16s %d\n", verb("Closed:", "Would close:"), res.Stats.Closed)
	_, _ = fmt.Fprintf(w, "  %-16s %d\n", "Unchanged:", res.Stats.Unchanged)
	_, _ = fmt.Fprintf(w, "  %-16s %d\n", "Errors:", res.Stats.Errors)

	if len(res.Warnings) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, ui.RenderCategory("Warnings"))
		for _, warn := range res.Warnings {
			_, _ = fmt.Fprintf(w, "  %s bz%s: %s\n", ui.RenderWarnIcon(), warn.ID, ui.TruncateSimple(warn.Message, summaryWidth))
		}
	}
	if len(res.Failures) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, ui.RenderCategory("Failures"))
		for _, f := range res.Failures {
			_, _ = fmt.Fprintf(w, "  %s %s\n", ui.RenderFailIcon(), ui.TruncateSimple(f.Error, summaryWidth))
		}
	}

	_, _ = fmt.Fprintln(w)
	switch {
	case res.Success && res.DryRun:
		_, _ = fmt.Fprintf(w, "%s Dry run complete. Run without --dry-run to apply changes.\n", ui.RenderInfoIcon())
	case res.Success:
		_, _ = fmt.Fprintf(w, "%s Sync complete\n", ui.RenderPassIcon())
	default:
		_, _ = fmt.Fprintf(w, "%s Sync finished with errors\n", ui.RenderFailIcon())
	}
}
