package render

import (
	"context"
	"sync"

	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/payload"
)

// Event is one recorded panel transition.
type Event struct {
	State     controller.State
	Query     string
	Page      controller.Page
	RateLimit payload.RateLimit
	ErrorKind controller.ErrorKind
	Message   string
	History   []string
}

// Settled reports whether the event ends a search, as opposed to loading.
func (e Event) Settled() bool {
	return e.State != controller.StateLoading
}

// Recorder is a View that keeps every transition and optionally forwards
// it to another View. Wait lets non-interactive callers block until a
// search settles.
type Recorder struct {
	next controller.View

	mu      sync.Mutex
	events  []Event
	settled chan Event
}

// NewRecorder returns a Recorder forwarding to next, which may be nil.
func NewRecorder(next controller.View) *Recorder {
	return &Recorder{next: next, settled: make(chan Event, 32)}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if e.Settled() {
		select {
		case r.settled <- e:
		default:
		}
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Last returns the most recent event.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Wait blocks until the next settled event or until ctx is done.
func (r *Recorder) Wait(ctx context.Context) (Event, error) {
	select {
	case e := <-r.settled:
		return e, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (r *Recorder) Hide() {
	r.record(Event{State: controller.StateHidden})
	if r.next != nil {
		r.next.Hide()
	}
}

func (r *Recorder) ShowLoading(q string) {
	r.record(Event{State: controller.StateLoading, Query: q})
	if r.next != nil {
		r.next.ShowLoading(q)
	}
}

func (r *Recorder) ShowResults(page controller.Page) {
	r.record(Event{State: controller.StateResults, Query: page.Query, Page: page})
	if r.next != nil {
		r.next.ShowResults(page)
	}
}

func (r *Recorder) ShowNoResults(q string) {
	r.record(Event{State: controller.StateNoResults, Query: q})
	if r.next != nil {
		r.next.ShowNoResults(q)
	}
}

func (r *Recorder) ShowRateLimit(info payload.RateLimit) {
	r.record(Event{State: controller.StateRateLimited, RateLimit: info})
	if r.next != nil {
		r.next.ShowRateLimit(info)
	}
}

func (r *Recorder) ShowError(kind controller.ErrorKind, msg string) {
	r.record(Event{State: controller.StateError, ErrorKind: kind, Message: msg})
	if r.next != nil {
		r.next.ShowError(kind, msg)
	}
}

func (r *Recorder) ShowHistory(entries []string) {
	r.record(Event{State: controller.StateHistory, History: append([]string(nil), entries...)})
	if r.next != nil {
		r.next.ShowHistory(entries)
	}
}

// Sink is a View handing every transition to a function as an Event.
type Sink func(Event)

func (f Sink) Hide() { f(Event{State: controller.StateHidden}) }

func (f Sink) ShowLoading(q string) { f(Event{State: controller.StateLoading, Query: q}) }

func (f Sink) ShowResults(page controller.Page) {
	f(Event{State: controller.StateResults, Query: page.Query, Page: page})
}

func (f Sink) ShowNoResults(q string) { f(Event{State: controller.StateNoResults, Query: q}) }

func (f Sink) ShowRateLimit(info payload.RateLimit) {
	f(Event{State: controller.StateRateLimited, RateLimit: info})
}

func (f Sink) ShowError(kind controller.ErrorKind, msg string) {
	f(Event{State: controller.StateError, ErrorKind: kind, Message: msg})
}

func (f Sink) ShowHistory(entries []string) {
	f(Event{State: controller.StateHistory, History: append([]string(nil), entries...)})
}
