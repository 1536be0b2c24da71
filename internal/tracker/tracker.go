package tracker

import (
	"context"
	"errors"
	"fmt"
)

// Upstream is the authoritative bug tracker whose items are mirrored.
// The Bugzilla adapter implements it.
type Upstream interface {
	// Name returns the human-readable tracker name (e.g. "Bugzilla").
	Name() string

	// Search returns the open items matching one filter query.
	// Any failure is fatal to the run.
	Search(ctx context.Context, q Query) ([]UpstreamItem, error)

	// Lookup fetches one item by id using the configured credential. It is the
	// authoritative point check used before closing a mirror.
	// Returns an error matching ErrNotFound when the item does not exist.
	Lookup(ctx context.Context, id string) (*UpstreamItem, error)

	// Describe fetches the public view of one item (summary, groups and first
	// comment). When authed is false the request carries no credential.
	// Returns an error matching ErrRestricted when access is denied.
	Describe(ctx context.Context, id string, authed bool) (*Description, error)
}

// Downstream is the tracker that receives mirrored copies.
// The GitHub adapter implements it.
type Downstream interface {
	// Name returns the human-readable tracker name (e.g. "GitHub").
	Name() string

	// ListOpen returns every open issue in the mirror repository.
	ListOpen(ctx context.Context) ([]DownstreamItem, error)

	// Create opens a new issue and returns it with its number populated.
	Create(ctx context.Context, details Details) (*DownstreamItem, error)

	// Update rewrites the title and body of an existing issue.
	Update(ctx context.Context, number int, details Details) error

	// Close sets the issue state to closed.
	Close(ctx context.Context, number int) error
}

var (
	// ErrNotFound means the upstream item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRestricted means the credential in use may not see the upstream item.
	ErrRestricted = errors.New("authorization restricted")
)

// FetchError is a collection fetch failure. It aborts the run before any mutation.
type FetchError struct {
	Source string // Tracker display name
	Query  string // Filter query, empty for downstream listings
	Err    error
}

func (e *FetchError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("fetching from %s (query %q): %v", e.Source, e.Query, e.Err)
	}
	return fmt.Sprintf("fetching from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RenderError is an unexpected failure while rendering an item. Like FetchError
// it aborts the run; expected redactions never produce it.
type RenderError struct {
	ID  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering bz%s: %v", e.ID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// MutationError is a failed downstream create, update or close.
type MutationError struct {
	ID     string
	Action string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s mirror for bz%s: %v", e.Action, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Mutation action names.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionClose  = "close"
)
