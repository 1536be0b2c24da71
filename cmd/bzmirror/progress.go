package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bzmirror/bzmirror/internal/progress"
	"github.com/bzmirror/bzmirror/internal/timeparsing"
	"github.com/bzmirror/bzmirror/internal/ui"
)

var progressCmd = &cobra.Command{
	Use:   "progress <bug> [start [end]]",
	Short: "Report completion of the bugs blocking a metabug",
	Long: `Count the bugs blocking a metabug and report the share that is closed.

With a start date, bugs that were already closed before it are ignored.
With an end date, bugs filed after it are ignored. Dates may be RFC3339,
YYYY-MM-DD, a relative offset such as -90d, or plain English such as
"last monday" or "3 months ago".`,
	Example: `  bzmirror progress 1234567
  bzmirror progress 1234567 2024-04-01 2024-06-30
  bzmirror progress 1234567 -90d --output json`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runProgress,
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

// parseWindow resolves the optional start and end arguments relative to now.
func parseWindow(args []string, now time.Time) (progress.Window, error) {
	var w progress.Window
	if len(args) > 0 {
		start, err := timeparsing.ParseRelativeTime(args[0], now)
		if err != nil {
			return w, fmt.Errorf("invalid start date: %w", err)
		}
		w.Start = &start
	}
	if len(args) > 1 {
		end, err := timeparsing.ParseRelativeTime(args[1], now)
		if err != nil {
			return w, fmt.Errorf("invalid end date: %w", err)
		}
		w.End = &end
	}
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return w, fmt.Errorf("end date %s is before start date %s", w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
	}
	return w, nil
}

func runProgress(cmd *cobra.Command, args []string) error {
	metabug := args[0]
	if _, err := strconv.ParseUint(metabug, 10, 64); err != nil {
		return fmt.Errorf("invalid bug number %q", metabug)
	}
	window, err := parseWindow(args[1:], time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := progress.Run(cmd.Context(), newBugzillaTracker(cfg), metabug, window)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat != formatText {
		return writeStructured(out, outputFormat, report)
	}
	printProgress(out, report)
	return nil
}

func printProgress(w io.Writer, r *progress.Report) {
	_, _ = fmt.Fprintln(w, ui.RenderCategory("Bug "+r.Metabug))
	if r.Window.Start != nil || r.Window.End != nil {
		_, _ = fmt.Fprintf(w, "%s\n", ui.RenderMuted(describeWindow(r.Window)))
	}
	_, _ = fmt.Fprintf(w, "Total bugs: %d\n", r.Total)
	_, _ = fmt.Fprintf(w, "Open bugs: %d\n", r.Open)
	_, _ = fmt.Fprintf(w, "Percent complete: %s\n", ui.RenderAccent(strconv.FormatFloat(r.PercentComplete, 'f', -1, 64)+"%"))
}

func describeWindow(w progress.Window) string {
	switch {
	case w.Start != nil && w.End != nil:
		return "From " + w.Start.Format(time.DateOnly) + " to " + w.End.Format(time.DateOnly)
	case w.Start != nil:
		return "Since " + w.Start.Format(time.DateOnly)
	default:
		return "Until " + w.End.Format(time.DateOnly)
	}
}
