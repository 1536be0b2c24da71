// Package progress reports how much of the work blocking a metabug is done.
package progress

import (
	"context"
	"math"
	"time"

	"github.com/bzmirror/bzmirror/internal/bugzilla"
)

// Window restricts a report to a period. Either bound may be nil.
type Window struct {
	Start *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Report is the completion metric for the bugs blocking a metabug.
type Report struct {
	Metabug         string  `json:"metabug" yaml:"metabug"`
	Window          Window  `json:"window" yaml:"window"`
	Total           int     `json:"total" yaml:"total"`
	Open            int     `json:"open" yaml:"open"`
	Closed          int     `json:"closed" yaml:"closed"`
	PercentComplete float64 `json:"percent_complete" yaml:"percent_complete"`
}

// BlockerSource lists the bugs blocking a metabug.
type BlockerSource interface {
	Blockers(ctx context.Context, metabug string) ([]bugzilla.Bug, error)
}

// Run fetches the blockers of metabug and computes the report.
func Run(ctx context.Context, src BlockerSource, metabug string, w Window) (*Report, error) {
	bugs, err := src.Blockers(ctx, metabug)
	if err != nil {
		return nil, err
	}
	r := Compute(bugs, w)
	r.Metabug = metabug
	return &r, nil
}

// Compute counts bugs inside the window:
//   - a bug closed before the window starts is ignored
//   - a bug created after the window ends is ignored
//
// Bugs missing the relevant timestamp are always counted.
func Compute(bugs []bugzilla.Bug, w Window) Report {
	r := Report{Window: w}
	for _, b := range bugs {
		if w.Start != nil && !b.IsOpen && b.LastChangeTime != nil && b.LastChangeTime.Before(*w.Start) {
			continue
		}
		if w.End != nil && b.CreationTime != nil && b.CreationTime.After(*w.End) {
			continue
		}
		r.Total++
		if b.IsOpen {
			r.Open++
		}
	}
	r.Closed = r.Total - r.Open
	r.PercentComplete = Percent(r.Total, r.Open)
	return r
}

// Percent returns the closed share of total rounded to two decimals, or 0
// when there is nothing to count.
func Percent(total, open int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(total-open)/float64(total)*10000) / 100
}
