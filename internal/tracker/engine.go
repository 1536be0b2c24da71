package tracker

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/bzmirror/bzmirror/internal/telemetry"
)

const instrumentationName = "github.com/bzmirror/bzmirror/tracker"

// SyncOptions configures one reconciliation run.
type SyncOptions struct {
	// Queries are the upstream filter queries, in precedence order.
	Queries []Query
	// Exclusion drops items that must never be mirrored.
	Exclusion Exclusion
	// DryRun plans without mutating the downstream tracker.
	DryRun bool
	// SkipUnchanged enables the last-changed pre-check for non-sensitive mirrors.
	SkipUnchanged bool
	// Concurrency bounds in-flight upstream requests.
	Concurrency int
}

// Engine orchestrates a reconciliation run:
//
//	Fetch (upstream and downstream, concurrently) -> Correlate -> Plan -> Apply
//
// Fetch and render failures abort the run before anything is mutated.
// Close-check and mutation failures are collected and the run continues.
type Engine struct {
	Upstream   Upstream
	Downstream Downstream
	Classifier *Classifier

	// Callbacks for UI feedback (optional). Calls are serialized.
	OnMessage func(msg string)
	OnWarning func(msg string)

	mu sync.Mutex
}

// NewEngine creates a sync engine. viewURL is the upstream's human-facing bug page.
func NewEngine(up Upstream, down Downstream, viewURL string) *Engine {
	return &Engine{
		Upstream:   up,
		Downstream: down,
		Classifier: &Classifier{Upstream: up, ViewURL: viewURL},
	}
}

// syncMetrics holds lazily-initialized OTel instruments for sync runs.
var syncMetrics struct {
	mutations metric.Int64Counter
	fetched   metric.Int64Counter
}

var syncMetricsOnce sync.Once

func initSyncMetrics() {
	m := telemetry.Meter(instrumentationName)
	syncMetrics.mutations, _ = m.Int64Counter("bzmirror.sync.mutations",
		metric.WithDescription("Downstream mutations attempted"),
		metric.WithUnit("{mutation}"),
	)
	syncMetrics.fetched, _ = m.Int64Counter("bzmirror.sync.fetched",
		metric.WithDescription("Items fetched from either tracker"),
		metric.WithUnit("{item}"),
	)
}

// Sync performs a complete reconciliation run.
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	syncMetricsOnce.Do(initSyncMetrics)

	tracer := telemetry.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "bzmirror.sync")
	defer span.End()
	span.SetAttributes(
		attribute.Int("bzmirror.queries", len(opts.Queries)),
		attribute.Bool("bzmirror.dry_run", opts.DryRun),
	)

	result := &SyncResult{Success: true, DryRun: opts.DryRun}
	fail := func(err error) (*SyncResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.Success = false
		result.Error = err.Error()
		return result, err
	}

	// Phase 1: Fetch both collections
	fetcher := &Fetcher{
		Upstream:    e.Upstream,
		Downstream:  e.Downstream,
		Queries:     opts.Queries,
		Exclusion:   opts.Exclusion,
		Concurrency: opts.Concurrency,
		OnExclude: func(id, reason string) {
			e.msg("Ignoring bz%s: %s", id, reason)
		},
	}
	snap, mirrors, err := e.fetch(ctx, fetcher)
	if err != nil {
		return fail(err)
	}
	result.Stats.Fetched = len(snap.Items)
	result.Stats.Excluded = len(snap.Excluded)
	e.msg("Fetched %d bugs from %s (%d excluded)", len(snap.Items), e.Upstream.Name(), len(snap.Excluded))

	// Phase 2: Correlate
	corr := Correlate(mirrors)
	result.Stats.Mirrors = len(corr.ByID)
	e.msg("Found %d mirrored issues among %d open %s issues", len(corr.ByID), len(mirrors), e.Downstream.Name())

	// Phase 3: Plan
	planner := &Planner{
		Upstream:      e.Upstream,
		Classifier:    e.Classifier,
		Concurrency:   opts.Concurrency,
		SkipUnchanged: opts.SkipUnchanged,
		OnMessage:     func(m string) { e.msg("%s", m) },
	}
	planCtx, planSpan := tracer.Start(ctx, "bzmirror.plan")
	plan, err := planner.Plan(planCtx, snap, corr)
	planSpan.End()
	if err != nil {
		return fail(err)
	}
	result.Plan = plan
	result.Stats.Unchanged = len(plan.Unchanged)
	result.Warnings = append(result.Warnings, plan.Warnings...)
	for _, w := range plan.Warnings {
		e.warn("bz%s: %s", w.ID, w.Message)
	}
	span.SetAttributes(
		attribute.Int("bzmirror.plan.create", len(plan.Create)),
		attribute.Int("bzmirror.plan.update", len(plan.Update)),
		attribute.Int("bzmirror.plan.close", len(plan.Close)),
	)

	// Phase 4: Apply
	applier := &Applier{
		Downstream: e.Downstream,
		DryRun:     opts.DryRun,
		OnMessage:  func(m string) { e.msg("%s", m) },
		OnMutation: func(action string, err error) {
			if syncMetrics.mutations == nil {
				return
			}
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			syncMetrics.mutations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("action", action),
				attribute.String("outcome", outcome),
			))
		},
	}
	applyCtx, applySpan := tracer.Start(ctx, "bzmirror.apply")
	applied := applier.Apply(applyCtx, plan)
	applySpan.End()

	result.Stats.Created = applied.Created
	result.Stats.Updated = applied.Updated
	result.Stats.Closed = applied.Closed
	result.Stats.Errors = len(applied.Failures)
	result.Failures = applied.Failures
	for _, f := range applied.Failures {
		e.warn("%s", f.Error)
	}
	if len(applied.Failures) > 0 {
		result.Success = false
		span.SetStatus(codes.Error, fmt.Sprintf("%d mutations failed", len(applied.Failures)))
	}

	return result, nil
}

// fetch retrieves the upstream snapshot and the open downstream issues concurrently.
func (e *Engine) fetch(ctx context.Context, f *Fetcher) (*Snapshot, []DownstreamItem, error) {
	ctx, span := telemetry.Tracer(instrumentationName).Start(ctx, "bzmirror.fetch")
	defer span.End()

	var (
		snap    *Snapshot
		mirrors []DownstreamItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = f.FetchUpstream(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		mirrors, err = f.FetchDownstream(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if syncMetrics.fetched != nil {
		syncMetrics.fetched.Add(ctx, int64(len(snap.Items)), metric.WithAttributes(attribute.String("side", "upstream")))
		syncMetrics.fetched.Add(ctx, int64(len(mirrors)), metric.WithAttributes(attribute.String("side", "downstream")))
	}
	return snap, mirrors, nil
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}
