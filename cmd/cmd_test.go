package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/placeholder"
	"github.com/rubiojr/fmsearch/pkg/proxy"
	"github.com/rubiojr/fmsearch/pkg/render"
)

const catalog = `[
  {"name":"Bague Améthyste","url":"https://shop.example/p/1","original_price":"39,90","promo_price":"29,90","rating":4.5,"review_count":12},
  {"name":"Bague Quartz Rose","url":"https://shop.example/p/2","original_price":"24,90"}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &config.Config{
		StorageDir: t.TempDir(),
		Widget:     config.DefaultWidget(),
		Proxy:      config.DefaultProxy(),
	}
}

func webhook(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchOnceThroughProxy(t *testing.T) {
	cfg := testConfig(t)
	upstream := webhook(t, http.StatusOK, catalog)

	pcfg := config.DefaultProxy()
	pcfg.WebhookURL = upstream.URL
	pcfg.AuthHeaderName = "X-Api-Key"
	pcfg.AuthHeaderValue = "secret"
	front := httptest.NewServer(proxy.New(pcfg))
	t.Cleanup(front.Close)

	var out bytes.Buffer
	err := searchOnce(context.Background(), cfg, "  bague  ", searchOptions{endpoint: front.URL + proxy.NetlifyPath}, &out)
	if err != nil {
		t.Fatalf("searchOnce: %v", err)
	}
	for _, want := range []string{"Bague Améthyste", "Bague Quartz Rose", "2 produits"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	h, _, closeFn, err := openHistory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if got := h.List(context.Background()); len(got) != 1 || got[0] != "bague" {
		t.Errorf("history = %v", got)
	}
}

func TestSearchOnceFormats(t *testing.T) {
	cfg := testConfig(t)
	upstream := webhook(t, http.StatusOK, catalog)

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := searchOnce(context.Background(), cfg, "bague", searchOptions{endpoint: upstream.URL, json: true}, &out); err != nil {
			t.Fatal(err)
		}
		var items []map[string]any
		if err := json.Unmarshal(out.Bytes(), &items); err != nil {
			t.Fatalf("not JSON: %v", err)
		}
		if len(items) != 2 {
			t.Errorf("got %d items", len(items))
		}
	})

	t.Run("html", func(t *testing.T) {
		var out bytes.Buffer
		if err := searchOnce(context.Background(), cfg, "bague", searchOptions{endpoint: upstream.URL, html: true}, &out); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "https://shop.example/p/1") {
			t.Errorf("html missing product link:\n%s", out.String())
		}
	})
}

func TestSearchOnceFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		query  string
		want   string
	}{
		{"short query", http.StatusOK, catalog, "ba", "at least 4 characters"},
		{"rate limited", http.StatusTooManyRequests, `{"error":"rate_limit","reason":"per_minute","wait_time":"1 minute"}`, "bague", "rate limited"},
		{"upstream error", http.StatusInternalServerError, `{"error":"boom"}`, "bague", "search failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			upstream := webhook(t, tt.status, tt.body)
			err := searchOnce(context.Background(), cfg, tt.query, searchOptions{endpoint: upstream.URL}, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

// recordingWebhook answers every search with catalog and keeps the queries.
type recordingWebhook struct {
	mu      sync.Mutex
	queries []string
}

func (rw *recordingWebhook) seen() []string {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return append([]string(nil), rw.queries...)
}

func newRecordingWebhook(t *testing.T) (*recordingWebhook, *httptest.Server) {
	t.Helper()
	rw := &recordingWebhook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		rw.mu.Lock()
		rw.queries = append(rw.queries, body.Query)
		rw.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, catalog)
	}))
	t.Cleanup(srv.Close)
	return rw, srv
}

func typeText(m tea.Model, text string) tea.Model {
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func press(m tea.Model, k tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

// awaitPanel feeds controller transitions to the model until one reaches want.
func awaitPanel(t *testing.T, m tea.Model, events <-chan render.Event, want controller.State) (tea.Model, render.Event) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			m, _ = m.Update(panelMsg(ev))
			if ev.State == want {
				return m, ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func newTestPrompt(t *testing.T, cfg *config.Config, endpoint string) (tea.Model, *session, <-chan render.Event) {
	t.Helper()
	events := make(chan render.Event, 256)
	s, err := openSession(cfg, endpoint, render.Sink(func(e render.Event) { events <- e }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return newPromptModel(s, render.NewTerminalView(io.Discard, cfg.Widget.Theme), nil), s, events
}

func TestPromptTypingIsDebounced(t *testing.T) {
	cfg := testConfig(t)
	cfg.Widget.Debounce = config.Duration{Duration: 50 * time.Millisecond}
	upstream, srv := newRecordingWebhook(t)
	m, _, events := newTestPrompt(t, cfg, srv.URL)

	// one key at a time, the way a terminal delivers them
	m = typeText(m, "bague")
	m, ev := awaitPanel(t, m, events, controller.StateResults)
	if ev.Page.Total != 2 {
		t.Fatalf("total = %d", ev.Page.Total)
	}
	if got := upstream.seen(); len(got) != 1 || got[0] != "bague" {
		t.Fatalf("upstream queries = %q, want one search for the final input", got)
	}
	if !strings.Contains(m.View(), "Bague Améthyste") {
		t.Errorf("view missing results:\n%s", m.View())
	}

	// trailing whitespace normalizes to the cached query
	m = typeText(m, " ")
	_, ev = awaitPanel(t, m, events, controller.StateResults)
	if !ev.Page.FromCache {
		t.Error("whitespace edit must be served from the cache")
	}
	if got := upstream.seen(); len(got) != 1 {
		t.Errorf("upstream queries = %q after whitespace edit", got)
	}
}

func TestPromptShortInputHides(t *testing.T) {
	cfg := testConfig(t)
	upstream, srv := newRecordingWebhook(t)
	m, s, events := newTestPrompt(t, cfg, srv.URL)

	m = typeText(m, "ba")
	m, _ = awaitPanel(t, m, events, controller.StateHidden)
	press(m, tea.KeyEnter)
	if got := s.ctrl.State(); got != controller.StateHidden {
		t.Fatalf("state = %s", got)
	}
	if got := upstream.seen(); len(got) != 0 {
		t.Errorf("short input reached upstream: %q", got)
	}
}

func TestPromptSession(t *testing.T) {
	cfg := testConfig(t)
	upstream, srv := newRecordingWebhook(t)
	m, s, events := newTestPrompt(t, cfg, srv.URL)

	m = typeText(m, "bague")
	m, _ = press(m, tea.KeyEnter)
	m, _ = awaitPanel(t, m, events, controller.StateResults)

	m, _ = press(m, tea.KeyDown)
	if !strings.Contains(m.View(), "→ 1. Bague Améthyste") {
		t.Errorf("selection not shown:\n%s", m.View())
	}
	m, _ = press(m, tea.KeyEnter)
	if !strings.Contains(m.View(), "https://shop.example/p/1") {
		t.Errorf("open did not show the url:\n%s", m.View())
	}
	if _, ok := s.tracker.LastUsed(context.Background()); !ok {
		t.Error("opening a result must mark search as used")
	}

	// history is written once the settlement has been shown
	deadline := time.Now().Add(2 * time.Second)
	for len(s.history.List(context.Background())) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	m, _ = press(m, tea.KeyEsc)
	m, ev := awaitPanel(t, m, events, controller.StateHistory)
	if len(ev.History) != 1 || ev.History[0] != "bague" {
		t.Fatalf("history panel = %v", ev.History)
	}

	m = typeText(m, ":replay 1")
	m, _ = press(m, tea.KeyEnter)
	m, _ = awaitPanel(t, m, events, controller.StateResults)
	if got := upstream.seen(); len(got) != 2 {
		t.Errorf("replay must search again, upstream queries = %q", got)
	}

	m, _ = press(m, tea.KeyEsc)
	m = typeText(m, ":quit")
	m, cmd := press(m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal(":quit must return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error(":quit must end the program")
	}
	if m.View() != "" {
		t.Error("view must be empty after quitting")
	}
}

func TestPromptForgetHistory(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	h, _, closeFn, err := openHistory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	h.Add(ctx, "bague")
	closeFn()

	_, srv := newRecordingWebhook(t)
	m, s, events := newTestPrompt(t, cfg, srv.URL)

	// the empty input opens on history
	m, ev := awaitPanel(t, m, events, controller.StateHistory)
	if len(ev.History) != 1 || ev.History[0] != "bague" {
		t.Fatalf("history panel = %v", ev.History)
	}

	m = typeText(m, ":forget")
	m, _ = press(m, tea.KeyEnter)
	m, _ = awaitPanel(t, m, events, controller.StateHidden)
	if got := s.history.List(ctx); len(got) != 0 {
		t.Errorf("history after forget = %v", got)
	}
	if !strings.Contains(m.View(), "Search history cleared.") {
		t.Errorf("forget not reported:\n%s", m.View())
	}

	m = typeText(m, ":history")
	m, _ = press(m, tea.KeyEnter)
	if !strings.Contains(m.View(), "No recent searches.") {
		t.Errorf("empty history not reported:\n%s", m.View())
	}
}

func TestPromptPlaceholderAnimation(t *testing.T) {
	cfg := testConfig(t)
	_, srv := newRecordingWebhook(t)
	s, err := openSession(cfg, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	pm := newPromptModel(s, render.NewTerminalView(io.Discard, "light"), placeholder.New([]string{"perle"}, time.Second))
	if !pm.animating {
		t.Fatal("animation must start on an empty input")
	}
	var m tea.Model = pm
	m, _ = m.Update(placeholderTickMsg{id: pm.animID})
	m, _ = m.Update(placeholderTickMsg{id: pm.animID})
	if got := m.(promptModel).input.Placeholder; got != "pe" {
		t.Fatalf("placeholder = %q, want pe", got)
	}

	m = typeText(m, "c")
	stale := m.(promptModel).input.Placeholder
	m, cmd := m.Update(placeholderTickMsg{id: pm.animID})
	if cmd != nil || m.(promptModel).input.Placeholder != stale {
		t.Error("ticks from a stopped animation must be ignored")
	}
}

func TestRunPromptQuits(t *testing.T) {
	cfg := testConfig(t)
	_, srv := newRecordingWebhook(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := runPrompt(ctx, cfg, srv.URL, false, strings.NewReader(":quit\r"), &out); err != nil {
		t.Fatalf("runPrompt: %v", err)
	}
}

func TestPrintHistory(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := printHistory(ctx, cfg, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "No recent searches.\n" {
		t.Fatalf("empty history output = %q", out.String())
	}

	h, tracker, closeFn, err := openHistory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	h.Add(ctx, "collier")
	h.Add(ctx, "bague")
	tracker.MarkSearchUsed(ctx)
	closeFn()

	out.Reset()
	if err := printHistory(ctx, cfg, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"1. bague\n", "2. collier\n", "Last result opened "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestEventsURL(t *testing.T) {
	tests := map[string]string{
		":8888":          "ws://localhost:8888/api/events",
		"0.0.0.0:9000":   "ws://localhost:9000/api/events",
		"127.0.0.1:8888": "ws://127.0.0.1:8888/api/events",
		"[::]:8080":      "ws://localhost:8080/api/events",
	}
	for listen, want := range tests {
		if got := eventsURL(listen); got != want {
			t.Errorf("eventsURL(%q) = %q, want %q", listen, got, want)
		}
	}
}

func TestPrintFrame(t *testing.T) {
	search := `{"type":"search","search":{"id":"1","query":"bague"}}`
	heartbeat := `{"type":"heartbeat"}`

	tests := []struct {
		name   string
		frame  string
		all    bool
		pretty bool
		want   string
	}{
		{"search passes", search, false, false, search + "\n"},
		{"heartbeat filtered", heartbeat, false, false, ""},
		{"heartbeat with all", heartbeat, true, false, heartbeat + "\n"},
		{"garbage filtered", "nope", false, false, ""},
		{"garbage with all", "nope", true, false, "nope\n"},
		{"pretty", heartbeat, true, true, "{\n  \"type\": \"heartbeat\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printFrame(&buf, []byte(tt.frame), tt.all, tt.pretty); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
