package integration_tests

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rubiojr/fmsearch/pkg/client"
	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/history"
	"github.com/rubiojr/fmsearch/pkg/proxy"
	"github.com/rubiojr/fmsearch/pkg/realtime"
	"github.com/rubiojr/fmsearch/pkg/render"
	"github.com/rubiojr/fmsearch/pkg/storage"
	"github.com/rubiojr/fmsearch/pkg/tracking"
)

var jewels = []string{"Bague Lune", "Bague Soleil", "Bague Étoile", "Bague Perle", "Bague Onyx", "Collier Jade"}

// waitState returns the first settled event in state for q, skipping
// anything recorded before it.
func waitState(t *testing.T, rec *render.Recorder, state controller.State, q string) render.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		ev, err := rec.Wait(ctx)
		if err != nil {
			t.Fatalf("waiting for %s %q: %v (events: %+v)", state, q, err, rec.Events())
		}
		if ev.State == state && (q == "" || ev.Query == q || ev.Page.Query == q) {
			return ev
		}
	}
}

func TestWidgetFlowThroughProxy(t *testing.T) {
	quietLogs(t)
	tempDir := t.TempDir()
	hook := newFakeWebhook(t, jewels)
	cfg := CreateTestConfig(tempDir, hook.URL)

	hub := realtime.NewHub(16)
	front := httptest.NewServer(proxy.New(cfg.Proxy, proxy.WithHub(hub)))
	defer front.Close()

	store, err := storage.OpenSQLite(cfg.DBPath())
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	cl, err := client.New(front.URL + proxy.NetlifyPath)
	if err != nil {
		t.Fatal(err)
	}
	hist := history.New(store, cfg.Widget.MaxHistory, cfg.Widget.MinChars)
	opts := controller.OptionsFromConfig(cfg.Widget)
	opts.Tracker = tracking.New(store, cl.Jar(), cl.Endpoint())
	rec := render.NewRecorder(nil)
	ctrl := controller.New(opts, cl, rec, hist)

	// typing: only the final prefix reaches the webhook
	for _, s := range []string{"b", "ba", "bag", "bagu", "bague"} {
		ctrl.OnInputChanged(s)
	}
	ev := waitState(t, rec, controller.StateResults, "bague")
	if ev.Page.Total != 5 || ev.Page.Shown() != 3 || !ev.Page.HasMore() {
		t.Fatalf("first page = %d/%d", ev.Page.Shown(), ev.Page.Total)
	}
	if ev.Page.CountLabel() != "3 / 5 produits" {
		t.Errorf("CountLabel() = %q", ev.Page.CountLabel())
	}
	if n := hook.calls.Load(); n != 1 {
		t.Fatalf("webhook called %d times, want 1", n)
	}

	if !ctrl.LoadMore() {
		t.Fatal("LoadMore() = false with hidden results")
	}
	last, _ := rec.Last()
	if last.Page.Shown() != 5 || last.Page.HasMore() {
		t.Errorf("after load more = %d/%d", last.Page.Shown(), last.Page.Total)
	}
	if ctrl.LoadMore() {
		t.Error("LoadMore() = true with nothing left")
	}

	// same query again is served from the cache
	ctrl.OnInputChanged("bague ")
	ctrl.OnInputChanged("  bague")
	last, _ = rec.Last()
	if last.State != controller.StateResults || !last.Page.FromCache {
		t.Errorf("expected cached results, got %+v", last)
	}
	if n := hook.calls.Load(); n != 1 {
		t.Errorf("cache hit reached the webhook: %d calls", n)
	}

	if _, ok := ctrl.OpenResult(0); !ok {
		t.Error("OpenResult(0) failed")
	}
	if _, ok := opts.Tracker.LastUsed(context.Background()); !ok {
		t.Error("search-used marker not stored")
	}

	// nothing matches: shown as an empty result, not an error
	ctrl.FireSearch("zzzz")
	waitState(t, rec, controller.StateNoResults, "zzzz")

	ctrl.Close()
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if got := len(hub.Recent()); got != 2 {
		t.Errorf("live feed has %d searches, want 2", got)
	}

	// history survives a restart and only holds successful searches
	store, err = storage.OpenSQLite(cfg.DBPath())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	entries := history.New(store, cfg.Widget.MaxHistory, cfg.Widget.MinChars).List(context.Background())
	if len(entries) != 1 || entries[0] != "bague" {
		t.Errorf("history = %v", entries)
	}
}

func TestSupersededRequestNeverRenders(t *testing.T) {
	quietLogs(t)
	hook := newFakeWebhook(t, jewels)
	hook.delay = 150 * time.Millisecond
	cfg := CreateTestConfig(t.TempDir(), hook.URL)

	front := httptest.NewServer(proxy.New(cfg.Proxy))
	defer front.Close()

	cl, err := client.New(front.URL + proxy.SearchPath)
	if err != nil {
		t.Fatal(err)
	}
	rec := render.NewRecorder(nil)
	ctrl := controller.New(controller.OptionsFromConfig(cfg.Widget), cl, rec, nil)
	defer ctrl.Close()

	ctrl.FireSearch("collier")
	ctrl.FireSearch("bague")
	ev := waitState(t, rec, controller.StateResults, "")
	if ev.Page.Query != "bague" {
		t.Fatalf("rendered %q, want the latest query", ev.Page.Query)
	}

	// give the first request time to come back
	time.Sleep(300 * time.Millisecond)
	for _, e := range rec.Events() {
		if e.Page.Query == "collier" {
			t.Fatalf("superseded query rendered: %+v", e)
		}
	}
}
