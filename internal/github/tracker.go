package github

import (
	"context"

	"github.com/bzmirror/bzmirror/internal/tracker"
)

var _ tracker.Downstream = (*Tracker)(nil)

// Tracker implements tracker.Downstream for a GitHub repository.
type Tracker struct {
	client *Client
}

// NewTracker wraps a client.
func NewTracker(client *Client) *Tracker {
	return &Tracker{client: client}
}

func (t *Tracker) Name() string { return "GitHub" }

// Client returns the underlying REST client.
func (t *Tracker) Client() *Client { return t.client }

func (t *Tracker) ListOpen(ctx context.Context) ([]tracker.DownstreamItem, error) {
	issues, err := t.client.FetchIssues(ctx, StateOpen)
	if err != nil {
		return nil, err
	}
	items := make([]tracker.DownstreamItem, 0, len(issues))
	for _, issue := range issues {
		items = append(items, issueToItem(issue))
	}
	return items, nil
}

func (t *Tracker) Create(ctx context.Context, details tracker.Details) (*tracker.DownstreamItem, error) {
	issue, err := t.client.CreateIssue(ctx, details.Title, details.Body, nil)
	if err != nil {
		return nil, err
	}
	item := issueToItem(*issue)
	return &item, nil
}

func (t *Tracker) Update(ctx context.Context, number int, details tracker.Details) error {
	_, err := t.client.UpdateIssue(ctx, number, map[string]interface{}{
		"title": details.Title,
		"body":  details.Body,
	})
	return err
}

func (t *Tracker) Close(ctx context.Context, number int) error {
	_, err := t.client.CloseIssue(ctx, number)
	return err
}

func issueToItem(issue Issue) tracker.DownstreamItem {
	state := tracker.StateOpen
	if issue.State == StateClosed {
		state = tracker.StateClosed
	}
	return tracker.DownstreamItem{
		Number:    issue.Number,
		Title:     issue.Title,
		Body:      issue.Body,
		State:     state,
		UpdatedAt: issue.UpdatedAt,
	}
}
