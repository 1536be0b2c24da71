// Package tracker reconciles a downstream issue tracker against an upstream bug tracker.
//
// A run is a pipeline of immutable snapshots:
//
//	FetchUpstream / FetchDownstream -> Correlate -> Planner.Plan -> Applier.Apply
//
// Every stage except the Applier is a pure function of its inputs and the
// read-only remote lookups it performs. The Engine wires the stages together.
package tracker

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UpstreamItem is a bug as seen by the upstream sweep.
type UpstreamItem struct {
	ID            string    // Stable upstream identifier (decimal bug number)
	Summary       string    // Human-readable title
	IsOpen        bool      // Open/closed status
	Groups        []string  // Access-restriction groups; non-empty means sensitive
	Whiteboard    string    // Free-text annotation carrying out-of-band directives
	ExternalLink  string    // Optional URL recorded on the bug
	CreatedAt     time.Time // Creation timestamp
	LastChangedAt time.Time // Last modification timestamp
}

// Sensitive reports whether the item carries access-restriction groups.
func (u UpstreamItem) Sensitive() bool {
	return len(u.Groups) > 0
}

// DownstreamItem is an issue in the downstream tracker.
type DownstreamItem struct {
	Number    int        // Downstream-assigned identifier
	Title     string     // Carries the [bz<id>] correlation suffix
	Body      string     // Link back to upstream plus optional excerpt
	State     string     // StateOpen or StateClosed
	UpdatedAt *time.Time // Last modification, when the downstream reports it
}

// Downstream issue states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Details is the rendered downstream content for one upstream item.
type Details struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

// Matches reports whether the downstream item already carries exactly these details.
func (d Details) Matches(item DownstreamItem) bool {
	return item.Title == d.Title && item.Body == d.Body
}

// Description is the public view of an upstream item used for rendering.
type Description struct {
	ID           string
	Summary      string
	Groups       []string
	FirstComment string

	// FirstCommentPrivate marks a first comment hidden from the public.
	// FirstComment is empty when it is set.
	FirstCommentPrivate bool
}

// Query is one upstream filter query. Params are passed through verbatim.
type Query struct {
	Name   string
	Params url.Values
}

// ParseQuery parses a raw query string such as "product=Foo&component=Bar".
func ParseQuery(raw string) (Query, error) {
	params, err := url.ParseQuery(raw)
	if err != nil {
		return Query{}, err
	}
	return Query{Name: raw, Params: params}, nil
}

// String returns the encoded query parameters.
func (q Query) String() string {
	return q.Params.Encode()
}

// Exclusion describes which upstream items must never be mirrored.
type Exclusion struct {
	// IgnoreMarker excludes items whose whiteboard contains it (e.g. "[fxa-waffle-ignore]").
	IgnoreMarker string
	// LinkMarker excludes items whose external link contains it, i.e. items already
	// represented downstream by hand (e.g. "github.com/mozilla").
	LinkMarker string
}

// Reason returns why the item is excluded, or "" when it may be mirrored.
func (x Exclusion) Reason(item UpstreamItem) string {
	if x.IgnoreMarker != "" && strings.Contains(item.Whiteboard, x.IgnoreMarker) {
		return "whiteboard contains " + x.IgnoreMarker
	}
	if x.LinkMarker != "" && strings.Contains(item.ExternalLink, x.LinkMarker) {
		return "linked to " + item.ExternalLink
	}
	return ""
}

// Snapshot is the merged result of the upstream sweep.
type Snapshot struct {
	Items    map[string]UpstreamItem // Mirrorable items keyed by upstream id
	Excluded map[string]string       // Excluded ids and the reason
}

// IDs returns the mirrorable ids in numeric order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// CreateAction mirrors an upstream item that has no downstream issue yet.
type CreateAction struct {
	ID      string  `json:"id" yaml:"id"`
	Details Details `json:"details" yaml:"details"`
}

// UpdateAction rewrites a stale downstream issue.
type UpdateAction struct {
	ID      string  `json:"id" yaml:"id"`
	Number  int     `json:"number" yaml:"number"`
	Details Details `json:"details" yaml:"details"`
}

// CloseAction closes a downstream issue whose upstream bug resolved or vanished.
type CloseAction struct {
	ID     string `json:"id" yaml:"id"`
	Number int    `json:"number" yaml:"number"`
	Reason string `json:"reason" yaml:"reason"`
}

// Plan is the convergence plan for one run. Action lists are disjoint and
// sorted by numeric upstream id.
type Plan struct {
	Create    []CreateAction `json:"create" yaml:"create"`
	Update    []UpdateAction `json:"update" yaml:"update"`
	Close     []CloseAction  `json:"close" yaml:"close"`
	Unchanged []string       `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
	Warnings  []Warning      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Empty reports whether the plan has no mutations.
func (p *Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Close) == 0
}

// Warning is a non-fatal, per-item problem encountered while planning.
type Warning struct {
	ID      string `json:"id" yaml:"id"`
	Message string `json:"message" yaml:"message"`
}

// Failure is a per-item mutation that did not succeed.
type Failure struct {
	ID     string `json:"id" yaml:"id"`
	Action string `json:"action" yaml:"action"`
	Error  string `json:"error" yaml:"error"`
}

// SyncStats accumulates the outcome of a run.
type SyncStats struct {
	Fetched   int `json:"fetched" yaml:"fetched"`     // Mirrorable upstream items
	Excluded  int `json:"excluded" yaml:"excluded"`   // Upstream items dropped by exclusion rules
	Mirrors   int `json:"mirrors" yaml:"mirrors"`     // Correlated open downstream issues
	Created   int `json:"created" yaml:"created"`     // Downstream issues created
	Updated   int `json:"updated" yaml:"updated"`     // Downstream issues rewritten
	Closed    int `json:"closed" yaml:"closed"`       // Downstream issues closed
	Unchanged int `json:"unchanged" yaml:"unchanged"` // Mirrors already up to date
	Errors    int `json:"errors" yaml:"errors"`       // Mutations that failed
}

// SyncResult is the complete result of a run.
type SyncResult struct {
	Success  bool      `json:"success" yaml:"success"`
	DryRun   bool      `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Stats    SyncStats `json:"stats" yaml:"stats"`
	Plan     *Plan     `json:"plan,omitempty" yaml:"plan,omitempty"`
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// sortIDs orders upstream ids numerically, falling back to string order
// for ids that are not decimal.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return lessID(ids[i], ids[j])
	})
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
