package bugzilla

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bzmirror/bzmirror/internal/tracker"
)

var _ tracker.Upstream = (*Tracker)(nil)

// Tracker implements tracker.Upstream for Bugzilla.
type Tracker struct {
	client       *Client
	openStatuses []string
}

// NewTracker wraps a client. A nil or empty openStatuses uses DefaultOpenStatuses.
func NewTracker(client *Client, openStatuses []string) *Tracker {
	if len(openStatuses) == 0 {
		openStatuses = DefaultOpenStatuses
	}
	return &Tracker{client: client, openStatuses: openStatuses}
}

func (t *Tracker) Name() string { return "Bugzilla" }

// Client returns the underlying REST client.
func (t *Tracker) Client() *Client { return t.client }

func (t *Tracker) Search(ctx context.Context, q tracker.Query) ([]tracker.UpstreamItem, error) {
	bugs, err := t.client.SearchBugs(ctx, q.Params, t.openStatuses, SweepFields)
	if err != nil {
		return nil, err
	}
	items := make([]tracker.UpstreamItem, 0, len(bugs))
	for _, b := range bugs {
		items = append(items, bugToItem(b))
	}
	return items, nil
}

func (t *Tracker) Lookup(ctx context.Context, id string) (*tracker.UpstreamItem, error) {
	bug, err := t.client.GetBug(ctx, id, true, SweepFields)
	if err != nil {
		return nil, err
	}
	item := bugToItem(*bug)
	return &item, nil
}

func (t *Tracker) Describe(ctx context.Context, id string, authed bool) (*tracker.Description, error) {
	bug, err := t.client.GetBug(ctx, id, authed, "")
	if err != nil {
		return nil, err
	}
	comments, err := t.client.GetComments(ctx, id, authed)
	if err != nil {
		return nil, err
	}

	desc := &tracker.Description{
		ID:      id,
		Summary: bug.Summary,
		Groups:  bug.Groups,
	}
	if len(comments) > 0 {
		if comments[0].IsPrivate {
			desc.FirstCommentPrivate = true
		} else {
			desc.FirstComment = comments[0].Text
		}
	}
	return desc, nil
}

// Blockers returns every bug blocking the given metabug, open or closed.
func (t *Tracker) Blockers(ctx context.Context, metabug string) ([]Bug, error) {
	bugs, err := t.client.SearchBugs(ctx, url.Values{"blocks": {metabug}}, nil, ProgressFields)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blockers of bug %s: %w", metabug, err)
	}
	return bugs, nil
}

func bugToItem(b Bug) tracker.UpstreamItem {
	item := tracker.UpstreamItem{
		ID:           b.IDString(),
		Summary:      b.Summary,
		IsOpen:       b.IsOpen,
		Groups:       b.Groups,
		Whiteboard:   b.Whiteboard,
		ExternalLink: b.URL,
	}
	if b.CreationTime != nil {
		item.CreatedAt = *b.CreationTime
	}
	if b.LastChangeTime != nil {
		item.LastChangedAt = *b.LastChangeTime
	}
	return item
}
