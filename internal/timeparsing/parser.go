// Package timeparsing turns the loose date expressions accepted by
// `bzmirror progress` into concrete instants.
//
// Expressions are tried in order:
//  1. Compact duration relative to now (-90d, +6h, -2w)
//  2. Absolute timestamp (RFC3339, or a bare YYYY-MM-DD date)
//  3. Natural language (yesterday, last monday, 3 months ago)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// compactDurationRe matches [+-]?<amount><unit> with units h, d, w, m, y.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration resolves a compact duration such as "-90d" against now.
// A missing sign means forward in time. Units: h hours, d days, w weeks,
// m months, y years.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	m := compactDurationRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount %q: %w", m[2], err)
	}
	if m[1] == "-" {
		amount = -amount
	}
	return shift(now, amount, m[3]), nil
}

// IsCompactDuration reports whether s uses compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

func shift(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, 7*amount)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	}
	return base
}
