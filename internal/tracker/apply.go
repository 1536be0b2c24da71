package tracker

import (
	"context"
	"fmt"
)

// ApplyResult records what the Applier did.
type ApplyResult struct {
	Created  int
	Updated  int
	Closed   int
	Failures []Failure
}

// Applier executes a plan against the downstream tracker.
//
// Mutations are issued one at a time so a run never competes with itself for
// the downstream rate limit. A failed mutation is recorded and the run moves on.
type Applier struct {
	Downstream Downstream
	DryRun     bool

	// OnMessage receives progress messages (optional).
	OnMessage func(msg string)

	// OnMutation is called after every attempted mutation (optional).
	OnMutation func(action string, err error)
}

// Apply runs the plan's creates, then updates, then closes.
func (a *Applier) Apply(ctx context.Context, plan *Plan) *ApplyResult {
	res := &ApplyResult{}
	name := a.Downstream.Name()

	for _, c := range plan.Create {
		if a.DryRun {
			a.msg("[dry-run] Would create mirror issue for bz%s: %s", c.ID, c.Details.Title)
			res.Created++
			continue
		}
		a.msg("Creating mirror issue for bz%s", c.ID)
		created, err := a.Downstream.Create(ctx, c.Details)
		if a.record(res, c.ID, ActionCreate, err) {
			res.Created++
			if created != nil {
				a.msg("Created %s issue #%d for bz%s", name, created.Number, c.ID)
			}
		}
	}

	for _, u := range plan.Update {
		if a.DryRun {
			a.msg("[dry-run] Would update #%d for bz%s: %s", u.Number, u.ID, u.Details.Title)
			res.Updated++
			continue
		}
		a.msg("Updating mirror issue #%d for bz%s", u.Number, u.ID)
		if a.record(res, u.ID, ActionUpdate, a.Downstream.Update(ctx, u.Number, u.Details)) {
			res.Updated++
		}
	}

	for _, c := range plan.Close {
		if a.DryRun {
			a.msg("[dry-run] Would close #%d for bz%s (%s)", c.Number, c.ID, c.Reason)
			res.Closed++
			continue
		}
		a.msg("Closing mirror issue #%d for bz%s (%s)", c.Number, c.ID, c.Reason)
		if a.record(res, c.ID, ActionClose, a.Downstream.Close(ctx, c.Number)) {
			res.Closed++
		}
	}

	return res
}

// record notes the outcome of one mutation and reports whether it succeeded.
func (a *Applier) record(res *ApplyResult, id, action string, err error) bool {
	if a.OnMutation != nil {
		a.OnMutation(action, err)
	}
	if err == nil {
		return true
	}
	merr := &MutationError{ID: id, Action: action, Err: err}
	res.Failures = append(res.Failures, Failure{ID: id, Action: action, Error: merr.Error()})
	return false
}

func (a *Applier) msg(format string, args ...interface{}) {
	if a.OnMessage != nil {
		a.OnMessage(fmt.Sprintf(format, args...))
	}
}
