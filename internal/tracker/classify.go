package tracker

import (
	"context"
	"errors"
)

// ConfidentialSummary replaces the summary of items that may not be disclosed.
const ConfidentialSummary = "confidential issue"

// Classifier renders the downstream content for an upstream item, redacting
// anything the public may not see.
type Classifier struct {
	Upstream Upstream

	// ViewURL is the human-facing bug page, e.g. https://bugzilla.mozilla.org/show_bug.cgi.
	ViewURL string

	// Authed makes detail reads carry the upstream credential. Off by default:
	// anonymous reads make restricted bugs fail with ErrRestricted. When on,
	// any bug reporting access groups is redacted instead.
	Authed bool
}

// LinkLine returns the back-reference written at the top of every mirror body.
func (c *Classifier) LinkLine(id string) string {
	return "From " + c.ViewURL + "?id=" + id
}

// Redacted returns the placeholder details for a restricted item.
func (c *Classifier) Redacted(id string) Details {
	return Details{
		Title: FormatTitle(ConfidentialSummary, id),
		Body:  c.LinkLine(id),
	}
}

// Render returns the downstream details for an upstream id. Restricted items
// render as the confidential placeholder; any other failure is returned as a
// *RenderError.
func (c *Classifier) Render(ctx context.Context, id string) (Details, error) {
	desc, err := c.Upstream.Describe(ctx, id, c.Authed)
	if err != nil {
		if errors.Is(err, ErrRestricted) {
			return c.Redacted(id), nil
		}
		return Details{}, &RenderError{ID: id, Err: err}
	}
	if c.Authed && len(desc.Groups) > 0 {
		return c.Redacted(id), nil
	}

	body := c.LinkLine(id)
	if desc.FirstComment != "" && !desc.FirstCommentPrivate {
		body += "\n\n" + desc.FirstComment
	}
	return Details{
		Title: FormatTitle(desc.Summary, id),
		Body:  body,
	}, nil
}
