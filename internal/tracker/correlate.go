package tracker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Correlation keys are embedded at the end of a downstream title:
//
//	title := text "[bz" digits "]" trailing-space*
//
// Titles that do not end in a key are invisible to the engine, which is what
// protects hand-written downstream issues from automated edits.
var keyPattern = regexp.MustCompile(`\[bz([0-9]+)\]\s*$`)

// ParseKey extracts the upstream id from a downstream title.
func ParseKey(title string) (string, bool) {
	m := keyPattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatKey returns the title suffix for an upstream id.
func FormatKey(id string) string {
	return "[bz" + id + "]"
}

// FormatTitle builds a mirror title from a summary and upstream id.
func FormatTitle(summary, id string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return FormatKey(id)
	}
	return summary + " " + FormatKey(id)
}

// Correlation maps upstream ids to the downstream issues mirroring them.
type Correlation struct {
	ByID       map[string]DownstreamItem
	Duplicates []Warning
}

// Correlate keys downstream items by the upstream id in their title.
// Items without a key are dropped. When several items carry the same key the
// lowest issue number wins and the rest are reported as duplicates.
func Correlate(items []DownstreamItem) Correlation {
	sorted := make([]DownstreamItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})

	c := Correlation{ByID: make(map[string]DownstreamItem, len(items))}
	for _, item := range sorted {
		id, ok := ParseKey(item.Title)
		if !ok {
			continue
		}
		if kept, dup := c.ByID[id]; dup {
			c.Duplicates = append(c.Duplicates, Warning{
				ID:      id,
				Message: fmt.Sprintf("issue #%d duplicates #%d; only #%d is synced", item.Number, kept.Number, kept.Number),
			})
			continue
		}
		c.ByID[id] = item
	}
	return c
}
