// Package controller turns raw keystrokes into at most one authoritative
// search request at a time and drives the results panel.
//
// Every request gets a sequence number. Only a settlement carrying the
// current sequence number may touch the cache or the View; anything else
// is discarded, whether or not the transport honoured cancellation.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rubiojr/fmsearch/pkg/cache"
	"github.com/rubiojr/fmsearch/pkg/client"
	"github.com/rubiojr/fmsearch/pkg/history"
	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/payload"
	"github.com/rubiojr/fmsearch/pkg/product"
	"github.com/rubiojr/fmsearch/pkg/query"
)

var logger = log.ForService("controller")

// Transport performs one webhook exchange. It must return when ctx is done,
// although settlements are guarded even if it does not.
type Transport interface {
	Search(ctx context.Context, query string) (*client.Response, error)
}

// Controller is the request lifecycle of one widget instance. Instances
// share nothing.
type Controller struct {
	opts      Options
	transport Transport
	view      View
	history   *history.Store

	mu     sync.Mutex
	cache  *cache.ResultCache
	window *cache.Window
	state  State
	closed bool

	// pending is the normalized query waiting on the debounce timer.
	pending     string
	debounce    Stopper
	debounceGen uint64

	// seq is the current sequence number. A settlement is stale unless it
	// carries this value.
	seq      uint64
	inflight string
	cancel   context.CancelFunc

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

// New returns a controller. h may be nil to disable history.
func New(opts Options, t Transport, v View, h *history.Store) *Controller {
	opts.fillDefaults()
	base, shutdown := context.WithCancel(context.Background())
	return &Controller{
		opts:      opts,
		transport: t,
		view:      v,
		history:   h,
		cache:     cache.New(opts.MaxResults),
		window:    cache.NewWindow(opts.InitialResults, opts.LoadMoreStep),
		base:      base,
		shutdown:  shutdown,
	}
}

// OnInputChanged handles a raw text change.
func (c *Controller) OnInputChanged(raw string) {
	n := query.Normalize(raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	// whitespace-only edits must not push the debounce back
	if n != "" && n == c.pending {
		return
	}

	c.stopDebounceLocked()

	if !query.Meets(n, c.opts.MinChars) {
		c.cancelInFlightLocked()
		c.cache.Clear()
		c.hideLocked()
		return
	}

	if rs, ok := c.cache.Get(n); ok {
		c.showResultsLocked(rs, true)
		return
	}

	if n == c.inflight {
		return
	}

	c.pending = n
	c.debounceGen++
	gen := c.debounceGen
	c.debounce = c.opts.Timers.AfterFunc(c.opts.Debounce, func() {
		c.debounceFired(gen, raw)
	})
	logger.Debugf("debouncing %q", n)
}

func (c *Controller) debounceFired(gen uint64, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.debounceGen {
		return
	}
	c.debounce = nil
	c.pending = ""
	c.fireLocked(raw)
}

// FireSearch runs the search for raw now, bypassing the debounce.
func (c *Controller) FireSearch(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.fireLocked(raw)
}

func (c *Controller) fireLocked(raw string) {
	n := query.Normalize(raw)

	c.stopDebounceLocked()

	if !query.Meets(n, c.opts.MinChars) {
		c.hideLocked()
		return
	}

	if rs, ok := c.cache.Get(n); ok {
		c.showResultsLocked(rs, true)
		return
	}

	c.cancelInFlightLocked()

	c.seq++
	seq := c.seq
	ctx, cancel := context.WithTimeout(c.base, c.opts.RequestTimeout)
	c.cancel = cancel
	c.inflight = n

	c.state = StateLoading
	c.view.ShowLoading(n)

	logger.Debugf("search seq=%d query=%q", seq, n)
	c.wg.Add(1)
	go c.run(ctx, cancel, seq, n, strings.TrimSpace(raw))
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, seq uint64, n, raw string) {
	defer c.wg.Done()
	defer cancel()

	resp, err := c.transport.Search(ctx, n)

	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		logger.Debugf("discarding stale settlement seq=%d query=%q", seq, n)
		return
	}
	c.inflight = ""
	c.cancel = nil
	remember := c.settleLocked(ctx, n, resp, err)
	c.mu.Unlock()

	if remember && c.history != nil {
		c.history.Add(context.Background(), raw)
	}
}

// settleLocked applies a current settlement and reports whether the query
// belongs in history.
func (c *Controller) settleLocked(ctx context.Context, n string, resp *client.Response, err error) bool {
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warnf("search %q timed out after %s", n, c.opts.RequestTimeout)
			c.showErrorLocked(ErrorTimeout, TimeoutMessage)
			return false
		}
		if errors.Is(err, client.ErrBodyTooLarge) {
			logger.Errorf("search %q: %v", n, err)
			c.showErrorLocked(ErrorUpstream, payload.GenericErrorMessage)
			return false
		}
		logger.Errorf("search %q failed: %v", n, err)
		c.showErrorLocked(ErrorTransport, payload.GenericErrorMessage)
		return false
	}

	out := payload.Classify(resp.Status, resp.Header, resp.Body)
	switch out.Kind {
	case payload.KindRateLimited:
		if out.RateLimit.WorkflowError {
			logger.Warnf("upstream reported %q, treating as rate limit", "Error in workflow")
		}
		c.state = StateRateLimited
		c.view.ShowRateLimit(out.RateLimit)
		return false

	case payload.KindUpstreamError:
		if payload.IsNoItemsMessage(out.Message) {
			c.state = StateNoResults
			c.view.ShowNoResults(n)
			return false
		}
		if out.Malformed {
			logger.Warnf("unreadable response for %q (status %d)", n, resp.Status)
		}
		c.showErrorLocked(ErrorUpstream, out.Message)
		return false
	}

	rs := c.cache.Set(n, out.Items)
	c.window.Reset(rs.Len())
	if rs.Len() == 0 {
		c.state = StateNoResults
		c.view.ShowNoResults(n)
		return false
	}
	c.showResultsLocked(rs, false)
	return true
}

// CancelInFlight makes any pending settlement stale and aborts the request.
func (c *Controller) CancelInFlight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelInFlightLocked()
}

func (c *Controller) cancelInFlightLocked() {
	c.seq++
	c.inflight = ""
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Clear resets the query trackers, cancels work, empties the cache and
// hides the panel.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopDebounceLocked()
	c.cancelInFlightLocked()
	c.cache.Clear()
	c.window.Reset(0)
	c.hideLocked()
}

// OnFocus reopens cached results for a matching input, or shows history
// when the input is empty.
func (c *Controller) OnFocus(raw string) {
	n := query.Normalize(raw)

	if n == "" {
		if c.history == nil {
			return
		}
		entries := c.history.List(context.Background())
		if len(entries) == 0 {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.state = StateHistory
		c.view.ShowHistory(entries)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !query.Meets(n, c.opts.MinChars) {
		return
	}
	if rs, ok := c.cache.Get(n); ok {
		c.showResultsLocked(rs, true)
	}
}

// ReplayHistory searches for a history entry immediately.
func (c *Controller) ReplayHistory(entry string) {
	c.FireSearch(entry)
}

// ClearHistory empties history and hides the panel.
func (c *Controller) ClearHistory() {
	if c.history != nil {
		c.history.Clear(context.Background())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.hideLocked()
}

// LoadMore widens the visible window by one step and reports whether
// anything was added.
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateResults {
		return false
	}
	rs := c.cache.Current()
	if rs.Len() == 0 || !c.window.More() {
		return false
	}
	c.view.ShowResults(c.pageLocked(rs, true))
	return true
}

// OpenResult returns the i-th visible product and records the interaction.
func (c *Controller) OpenResult(i int) (product.Product, bool) {
	c.mu.Lock()
	rs := c.cache.Current()
	ok := !c.closed && c.state == StateResults && i >= 0 && i < c.window.Visible() && i < rs.Len()
	var p product.Product
	if ok {
		p = rs.Items[i]
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	if c.opts.Tracker != nil {
		c.opts.Tracker.MarkSearchUsed(context.Background())
	}
	return p, true
}

// State returns the panel state last sent to the View.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels all work and waits for running requests to return. The
// controller ignores every call afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.stopDebounceLocked()
		c.cancelInFlightLocked()
		c.shutdown()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceGen++
	c.pending = ""
}

func (c *Controller) hideLocked() {
	c.state = StateHidden
	c.view.Hide()
}

func (c *Controller) showErrorLocked(kind ErrorKind, msg string) {
	c.state = StateError
	c.view.ShowError(kind, msg)
}

func (c *Controller) showResultsLocked(rs *cache.ResultSet, fromCache bool) {
	c.state = StateResults
	c.view.ShowResults(c.pageLocked(rs, fromCache))
}

func (c *Controller) pageLocked(rs *cache.ResultSet, fromCache bool) Page {
	v := min(c.window.Visible(), rs.Len())
	return Page{
		Query:     rs.Query,
		Items:     rs.Items[:v:v],
		Total:     rs.Len(),
		FromCache: fromCache,
	}
}
