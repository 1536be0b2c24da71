package tracker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Close reasons recorded on CloseAction.
const (
	CloseReasonResolved = "resolved upstream"
	CloseReasonMissing  = "missing upstream"
)

// Planner computes the convergence plan for one run.
type Planner struct {
	Upstream   Upstream
	Classifier *Classifier

	// Concurrency bounds in-flight renders and close checks; DefaultConcurrency if <= 0.
	Concurrency int

	// SkipUnchanged skips rendering mirrors whose upstream bug has not changed
	// since the mirror was last edited. Sensitive items are always rendered.
	SkipUnchanged bool

	// OnMessage receives progress messages (optional). It may be called
	// from several goroutines at once.
	OnMessage func(msg string)
}

// renderJob is one upstream id whose details must be rendered.
type renderJob struct {
	id       string
	existing *DownstreamItem
	details  Details
}

// closeJob is one mirror whose upstream id disappeared from the sweep.
type closeJob struct {
	id      string
	number  int
	action  *CloseAction
	warning *Warning
}

// Plan partitions the upstream and downstream snapshots into create, update
// and close actions.
//
// Rendering failures abort planning. Close checks are partial-failure
// tolerant: a failed lookup leaves the mirror open and becomes a warning.
func (p *Planner) Plan(ctx context.Context, snap *Snapshot, corr Correlation) (*Plan, error) {
	plan := &Plan{}
	plan.Warnings = append(plan.Warnings, corr.Duplicates...)

	var jobs []*renderJob
	for _, id := range snap.IDs() {
		item := snap.Items[id]
		existing, mirrored := corr.ByID[id]
		if !mirrored {
			jobs = append(jobs, &renderJob{id: id})
			continue
		}
		if p.SkipUnchanged && !item.Sensitive() && unchangedSince(item, existing) {
			plan.Unchanged = append(plan.Unchanged, id)
			continue
		}
		e := existing
		jobs = append(jobs, &renderJob{id: id, existing: &e})
	}

	if err := p.render(ctx, jobs); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		switch {
		case job.existing == nil:
			plan.Create = append(plan.Create, CreateAction{ID: job.id, Details: job.details})
		case job.details.Matches(*job.existing):
			plan.Unchanged = append(plan.Unchanged, job.id)
		default:
			plan.Update = append(plan.Update, UpdateAction{ID: job.id, Number: job.existing.Number, Details: job.details})
		}
	}
	sortIDs(plan.Unchanged)

	var closes []*closeJob
	for id, mirror := range corr.ByID {
		if _, ok := snap.Items[id]; ok {
			continue
		}
		if reason, excluded := snap.Excluded[id]; excluded {
			p.msg("Leaving #%d alone: bz%s is excluded (%s)", mirror.Number, id, reason)
			continue
		}
		closes = append(closes, &closeJob{id: id, number: mirror.Number})
	}
	sortCloseJobs(closes)

	if err := p.checkClosed(ctx, closes); err != nil {
		return nil, err
	}
	for _, job := range closes {
		if job.action != nil {
			plan.Close = append(plan.Close, *job.action)
		}
		if job.warning != nil {
			plan.Warnings = append(plan.Warnings, *job.warning)
		}
	}

	return plan, nil
}

// render fills in the details of every job, in parallel.
func (p *Planner) render(ctx context.Context, jobs []*renderJob) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for _, job := range jobs {
		g.Go(func() error {
			details, err := p.Classifier.Render(gctx, job.id)
			if err != nil {
				return err
			}
			job.details = details
			return nil
		})
	}
	return g.Wait()
}

// checkClosed asks upstream, authoritatively, whether each vanished id
// really resolved. Only context cancellation aborts the pass.
func (p *Planner) checkClosed(ctx context.Context, jobs []*closeJob) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for _, job := range jobs {
		g.Go(func() error {
			item, err := p.Upstream.Lookup(gctx, job.id)
			switch {
			case err == nil && item == nil:
				job.action = &CloseAction{ID: job.id, Number: job.number, Reason: CloseReasonMissing}
			case err == nil && !item.IsOpen:
				job.action = &CloseAction{ID: job.id, Number: job.number, Reason: CloseReasonResolved}
			case err == nil:
				p.msg("Keeping #%d open: bz%s is still open but no longer matches any query", job.number, job.id)
			case errors.Is(err, ErrNotFound):
				job.action = &CloseAction{ID: job.id, Number: job.number, Reason: CloseReasonMissing}
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				job.warning = &Warning{ID: job.id, Message: fmt.Sprintf("could not check status of bz%s: %v", job.id, err)}
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Planner) limit() int {
	if p.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return p.Concurrency
}

func (p *Planner) msg(format string, args ...interface{}) {
	if p.OnMessage != nil {
		p.OnMessage(fmt.Sprintf(format, args...))
	}
}

// unchangedSince reports whether the upstream item has not been touched since
// the mirror was last edited.
func unchangedSince(item UpstreamItem, mirror DownstreamItem) bool {
	if mirror.UpdatedAt == nil || item.LastChangedAt.IsZero() {
		return false
	}
	return !item.LastChangedAt.After(*mirror.UpdatedAt)
}

func sortCloseJobs(jobs []*closeJob) {
	ids := make([]string, len(jobs))
	byID := make(map[string]*closeJob, len(jobs))
	for i, j := range jobs {
		ids[i] = j.id
		byID[j.id] = j
	}
	sortIDs(ids)
	for i, id := range ids {
		jobs[i] = byID[id]
	}
}
