package tracker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of in-flight upstream requests.
const DefaultConcurrency = 4

// Fetcher retrieves both collections for a run.
type Fetcher struct {
	Upstream    Upstream
	Downstream  Downstream
	Queries     []Query
	Exclusion   Exclusion
	Concurrency int // Max concurrent upstream queries; DefaultConcurrency if <= 0

	// OnExclude is called once per excluded upstream item (optional).
	OnExclude func(id, reason string)
}

// FetchUpstream runs every query concurrently and merges the results.
//
// Merge precedence is query declaration order: when several queries return
// the same id, the item from the earliest query is kept. Excluded items never
// enter Snapshot.Items; they are recorded in Snapshot.Excluded so later stages
// can leave their mirrors alone. A failure of any query fails the fetch.
func (f *Fetcher) FetchUpstream(ctx context.Context) (*Snapshot, error) {
	results := make([][]UpstreamItem, len(f.Queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit(len(f.Queries)))
	for i, q := range f.Queries {
		g.Go(func() error {
			items, err := f.Upstream.Search(gctx, q)
			if err != nil {
				return &FetchError{Source: f.Upstream.Name(), Query: q.Name, Err: err}
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return f.merge(results), nil
}

// merge folds per-query results into one snapshot, first match wins.
func (f *Fetcher) merge(results [][]UpstreamItem) *Snapshot {
	snap := &Snapshot{
		Items:    make(map[string]UpstreamItem),
		Excluded: make(map[string]string),
	}
	for _, items := range results {
		for _, item := range items {
			if _, seen := snap.Items[item.ID]; seen {
				continue
			}
			if _, seen := snap.Excluded[item.ID]; seen {
				continue
			}
			if reason := f.Exclusion.Reason(item); reason != "" {
				snap.Excluded[item.ID] = reason
				if f.OnExclude != nil {
					f.OnExclude(item.ID, reason)
				}
				continue
			}
			snap.Items[item.ID] = item
		}
	}
	return snap
}

// FetchDownstream lists the open downstream issues. Closed issues are never resynced.
func (f *Fetcher) FetchDownstream(ctx context.Context) ([]DownstreamItem, error) {
	items, err := f.Downstream.ListOpen(ctx)
	if err != nil {
		return nil, &FetchError{Source: f.Downstream.Name(), Err: err}
	}
	open := items[:0:0]
	for _, item := range items {
		if item.State == StateClosed {
			continue
		}
		open = append(open, item)
	}
	return open, nil
}

func (f *Fetcher) limit(n int) int {
	c := f.Concurrency
	if c <= 0 {
		c = DefaultConcurrency
	}
	if n > 0 && n < c {
		return n
	}
	return c
}
