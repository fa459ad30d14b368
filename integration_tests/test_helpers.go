package integration_tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/log"
)

const (
	testOrigin   = "https://boutique.example"
	testAuthName = "X-Webhook-Token"
	testAuthKey  = "s3cret"
)

// CreateTestConfig returns a configuration pointing the proxy at webhook
// and keeping all client state under tempDir.
func CreateTestConfig(tempDir, webhook string) *config.Config {
	w := config.DefaultWidget()
	w.Debounce = config.Duration{Duration: 20 * time.Millisecond}
	w.InitialResults = 3
	w.LoadMoreStep = 2

	p := config.DefaultProxy()
	p.Listen = "127.0.0.1:0"
	p.AllowedOrigins = []string{testOrigin}
	p.WebhookURL = webhook
	p.AuthHeaderName = testAuthName
	p.AuthHeaderValue = testAuthKey

	return &config.Config{StorageDir: tempDir, Widget: w, Proxy: p}
}

// fakeWebhook answers every query with products whose names start with the
// query, and counts the calls it receives. Calls without the auth header
// are rejected.
type fakeWebhook struct {
	*httptest.Server
	calls atomic.Int64
	delay time.Duration
}

func newFakeWebhook(t *testing.T, catalog []string) *fakeWebhook {
	t.Helper()
	f := &fakeWebhook{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.Header.Get(testAuthName) != testAuthKey {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"unauthorized"}`)
			return
		}
		var in struct {
			Query string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}

		var items []map[string]any
		for i, name := range catalog {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(in.Query)) {
				items = append(items, map[string]any{
					"name":  name,
					"url":   "https://boutique.example/p/" + string(rune('a'+i)),
					"price": "19,90",
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if len(items) == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"message":"No item to return was found"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"results": items})
	}))
	t.Cleanup(f.Close)
	return f
}

func quietLogs(t *testing.T) {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
}
