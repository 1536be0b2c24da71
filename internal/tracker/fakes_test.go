package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeUpstream is an in-memory Bugzilla.
type fakeUpstream struct {
	mu sync.Mutex

	searches    map[string][]UpstreamItem // keyed by Query.Name
	searchErr   map[string]error
	bugs        map[string]*Description // public details for Describe
	restricted  map[string]bool         // Describe fails with ErrRestricted
	describeErr map[string]error
	lookups     map[string]*UpstreamItem // authoritative state for Lookup
	lookupErr   map[string]error

	describeCalls []string
	lookupCalls   []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		searches:    make(map[string][]UpstreamItem),
		searchErr:   make(map[string]error),
		bugs:        make(map[string]*Description),
		restricted:  make(map[string]bool),
		describeErr: make(map[string]error),
		lookups:     make(map[string]*UpstreamItem),
		lookupErr:   make(map[string]error),
	}
}

// addBug registers an open bug returned by query q with a public description.
func (f *fakeUpstream) addBug(q string, item UpstreamItem, firstComment string) {
	item.IsOpen = true
	f.searches[q] = append(f.searches[q], item)
	f.bugs[item.ID] = &Description{ID: item.ID, Summary: item.Summary, Groups: item.Groups, FirstComment: firstComment}
	it := item
	f.lookups[item.ID] = &it
}

func (f *fakeUpstream) Name() string { return "Bugzilla" }

func (f *fakeUpstream) Search(_ context.Context, q Query) ([]UpstreamItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.searchErr[q.Name]; err != nil {
		return nil, err
	}
	return append([]UpstreamItem(nil), f.searches[q.Name]...), nil
}

func (f *fakeUpstream) Lookup(_ context.Context, id string) (*UpstreamItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls = append(f.lookupCalls, id)
	if err := f.lookupErr[id]; err != nil {
		return nil, err
	}
	item, ok := f.lookups[id]
	if !ok {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}
	it := *item
	return &it, nil
}

func (f *fakeUpstream) Describe(_ context.Context, id string, _ bool) (*Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCalls = append(f.describeCalls, id)
	if f.restricted[id] {
		return nil, fmt.Errorf("bug %s: %w", id, ErrRestricted)
	}
	if err := f.describeErr[id]; err != nil {
		return nil, err
	}
	d, ok := f.bugs[id]
	if !ok {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}
	dd := *d
	return &dd, nil
}

func (f *fakeUpstream) described() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.describeCalls...)
	sort.Strings(out)
	return out
}

// mutation is one call recorded by fakeDownstream.
type mutation struct {
	Action string
	Number int
	Title  string
}

// fakeDownstream is an in-memory GitHub repository.
type fakeDownstream struct {
	issues  map[int]*DownstreamItem
	next    int
	listErr error
	failOn  map[int]error // Update/Close failures by issue number
	failNew error         // Create failure
	calls   []mutation
}

func newFakeDownstream(items ...DownstreamItem) *fakeDownstream {
	f := &fakeDownstream{issues: make(map[int]*DownstreamItem), next: 1, failOn: make(map[int]error)}
	for _, item := range items {
		it := item
		if it.State == "" {
			it.State = StateOpen
		}
		f.issues[it.Number] = &it
		if it.Number >= f.next {
			f.next = it.Number + 1
		}
	}
	return f
}

func (f *fakeDownstream) Name() string { return "GitHub" }

func (f *fakeDownstream) ListOpen(context.Context) ([]DownstreamItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []DownstreamItem
	for _, it := range f.issues {
		if it.State == StateOpen {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeDownstream) Create(_ context.Context, d Details) (*DownstreamItem, error) {
	f.calls = append(f.calls, mutation{Action: ActionCreate, Title: d.Title})
	if f.failNew != nil {
		return nil, f.failNew
	}
	now := time.Now()
	it := &DownstreamItem{Number: f.next, Title: d.Title, Body: d.Body, State: StateOpen, UpdatedAt: &now}
	f.issues[it.Number] = it
	f.next++
	out := *it
	return &out, nil
}

func (f *fakeDownstream) Update(_ context.Context, number int, d Details) error {
	f.calls = append(f.calls, mutation{Action: ActionUpdate, Number: number, Title: d.Title})
	if err := f.failOn[number]; err != nil {
		return err
	}
	it, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue #%d not found", number)
	}
	it.Title, it.Body = d.Title, d.Body
	return nil
}

func (f *fakeDownstream) Close(_ context.Context, number int) error {
	f.calls = append(f.calls, mutation{Action: ActionClose, Number: number})
	if err := f.failOn[number]; err != nil {
		return err
	}
	it, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue #%d not found", number)
	}
	it.State = StateClosed
	return nil
}

const testViewURL = "https://bugzilla.example.com/show_bug.cgi"

func testClassifier(up Upstream) *Classifier {
	return &Classifier{Upstream: up, ViewURL: testViewURL}
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}
