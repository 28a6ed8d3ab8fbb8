package search

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is the delay between the last free text edit and the
// search it triggers.
const DefaultDebounce = 300 * time.Millisecond

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 20

// ErrLoadMoreUnsupported is returned by LoadMore; pagination beyond the
// first page is a reserved hook without an implementation.
var ErrLoadMoreUnsupported = errors.New("load more is not implemented")

// Executor runs one search execution end to end. The services layer
// provides the production implementation; tests inject stubs.
type Executor interface {
	Execute(ctx context.Context, q Query) (*SearchResponse, error)
}

// ControllerConfig tunes a Controller.
type ControllerConfig struct {
	// Debounce is the quiet window after the last edit. Zero means
	// DefaultDebounce.
	Debounce time.Duration
	// AutoSearch makes filter changes feed the debounced trigger too.
	AutoSearch bool
	// Limit and IncludeFacets shape the queries the controller issues.
	Limit         int
	IncludeFacets bool
}

// State is an observable snapshot of a controller.
type State struct {
	Query       string
	Filters     FilterSet
	Results     []ScoredResult
	Loading     bool
	Err         error
	Suggestions []string
	HasResults  bool
	HasMore     bool
	TotalCount  int
	Facets      map[string][]Facet
}

// Controller owns query and filter state, debounces rapid free text
// edits into a single execution, and discards results superseded by
// newer calls. There is at most one live debounce timer; re-arming
// cancels and replaces it. Supersession is logical: in-flight
// executions run to completion and stale outcomes are dropped at
// resolution time by sequence comparison.
type Controller struct {
	exec Executor
	cfg  ControllerConfig

	mu          sync.Mutex
	freeText    string
	filters     FilterSet
	results     []ScoredResult
	facets      map[string][]Facet
	suggestions []string
	total       int
	loading     bool
	err         error

	seq      uint64
	timerGen uint64
	pending  *time.Timer
}

// NewController wires a controller to an executor.
func NewController(exec Executor, cfg ControllerConfig) *Controller {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Controller{exec: exec, cfg: cfg}
}

// SetFreeText updates the free text and re-arms the debounce timer.
// Only the last call inside the window triggers an execution.
func (c *Controller) SetFreeText(text string) {
	c.mu.Lock()
	c.freeText = text
	c.armDebounceLocked()
	c.mu.Unlock()
}

// SetFilters replaces the filter set immediately. In auto-search mode
// the change feeds the same debounced trigger as free text edits.
func (c *Controller) SetFilters(filters FilterSet) {
	c.mu.Lock()
	c.filters = filters
	if c.cfg.AutoSearch {
		c.armDebounceLocked()
	}
	c.mu.Unlock()
}

// Search cancels any pending debounce timer and executes the stored
// query immediately.
func (c *Controller) Search(ctx context.Context) (*SearchResponse, error) {
	c.mu.Lock()
	c.cancelPendingLocked()
	q := c.queryLocked()
	seq := c.beginLocked()
	c.mu.Unlock()
	return c.run(ctx, seq, q)
}

// SearchFor stores the given text and filters, then executes
// immediately, bypassing the debounce window.
func (c *Controller) SearchFor(ctx context.Context, text string, filters FilterSet) (*SearchResponse, error) {
	c.mu.Lock()
	c.freeText = text
	c.filters = filters
	c.cancelPendingLocked()
	q := c.queryLocked()
	seq := c.beginLocked()
	c.mu.Unlock()
	return c.run(ctx, seq, q)
}

// Suggestions returns completions for the partial text and records them
// on the controller state.
func (c *Controller) Suggestions(partial string) []string {
	s := Suggest(partial)
	c.mu.Lock()
	c.suggestions = s
	c.mu.Unlock()
	return s
}

// LoadMore is the reserved pagination hook. Results beyond the first
// page are not retrievable; callers get ErrLoadMoreUnsupported.
func (c *Controller) LoadMore() error {
	return ErrLoadMoreUnsupported
}

// ClearResults drops the current result set. Any pending timer is
// canceled and in-flight executions are superseded.
func (c *Controller) ClearResults() {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.seq++
	c.results = nil
	c.facets = nil
	c.total = 0
	c.loading = false
	c.mu.Unlock()
}

// ClearError resets the error state.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

// State returns a snapshot of the observable controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Query:       c.freeText,
		Filters:     c.filters,
		Results:     c.results,
		Loading:     c.loading,
		Err:         c.err,
		Suggestions: c.suggestions,
		HasResults:  len(c.results) > 0,
		HasMore:     false,
		TotalCount:  c.total,
		Facets:      c.facets,
	}
}

// armDebounceLocked re-arms the single pending timer slot. The caller
// holds c.mu.
func (c *Controller) armDebounceLocked() {
	if c.pending != nil {
		c.pending.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.pending = time.AfterFunc(c.cfg.Debounce, func() {
		c.fireDebounced(gen)
	})
}

// cancelPendingLocked stops the pending timer and invalidates its
// generation so a callback that already fired cannot run. The caller
// holds c.mu.
func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.timerGen++
}

// fireDebounced runs the debounced execution if its timer generation is
// still the live one.
func (c *Controller) fireDebounced(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	q := c.queryLocked()
	seq := c.beginLocked()
	c.mu.Unlock()
	c.run(context.Background(), seq, q)
}

// beginLocked claims the next sequence number and marks the controller
// loading. The caller holds c.mu.
func (c *Controller) beginLocked() uint64 {
	c.seq++
	c.loading = true
	return c.seq
}

func (c *Controller) queryLocked() Query {
	return Query{
		FreeText:      c.freeText,
		Filters:       c.filters,
		Limit:         c.cfg.Limit,
		IncludeFacets: c.cfg.IncludeFacets,
	}
}

// run executes the query and applies the outcome to controller state
// unless a newer call superseded this sequence. Superseded outcomes are
// still returned to the direct caller but never touch shared state.
func (c *Controller) run(ctx context.Context, seq uint64, q Query) (*SearchResponse, error) {
	resp, err := c.exec.Execute(ctx, q)
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return resp, err
	}
	c.loading = false
	if err != nil {
		c.err = err
		return nil, err
	}
	c.err = nil
	c.results = resp.Results
	c.facets = resp.Facets
	c.total = resp.Total
	return resp, nil
}
