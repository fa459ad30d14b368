// Package proxy is the HTTP endpoint that sits between the widget and the
// upstream search webhook. It enforces the origin allow-list, checks the
// upstream configuration, extracts the client address and relays the
// upstream's status and JSON body.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"

	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/payload"
	"github.com/rubiojr/fmsearch/pkg/realtime"
	"github.com/rubiojr/fmsearch/pkg/version"
)

var logger = log.ForService("proxy")

const (
	maxRequestBody  = 64 << 10
	maxUpstreamBody = 8 << 20
)

var errUpstreamTooLarge = errors.New("upstream response body too large")

// Paths the search handler answers on.
const (
	NetlifyPath = "/.netlify/functions/search"
	SearchPath  = "/search"
	HealthPath  = "/healthz"
	EventsPath  = "/api/events"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type methodResponse struct {
	Error   string   `json:"error"`
	Allowed []string `json:"allowed"`
}

type misconfiguredResponse struct {
	Error      string   `json:"error"`
	MissingEnv []string `json:"missing_env"`
}

type nonJSONResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type healthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Configured bool      `json:"configured"`
	Listeners  int       `json:"listeners"`
	Timestamp  time.Time `json:"timestamp"`
}

type upstreamRequest struct {
	Query    string `json:"query"`
	ClientIP string `json:"client_ip"`
}

// Proxy is an http.Handler. Configuration can be swapped at runtime with
// Reload.
type Proxy struct {
	current atomic.Pointer[settings]
	client  *http.Client
	hub     *realtime.Hub
	handler http.Handler
	maxBody int64
}

// Option customizes a Proxy.
type Option func(*Proxy)

// WithHTTPClient sets the client used to reach the upstream webhook.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) { p.client = c }
}

// WithHub publishes every relayed search to hub and serves the websocket
// feed on EventsPath.
func WithHub(hub *realtime.Hub) Option {
	return func(p *Proxy) { p.hub = hub }
}

func New(cfg config.ProxyConfig, opts ...Option) *Proxy {
	p := &Proxy{client: &http.Client{}, maxBody: maxUpstreamBody}
	for _, o := range opts {
		o(p)
	}
	p.current.Store(newSettings(cfg))

	api := mux.NewRouter()
	api.HandleFunc(HealthPath, p.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc(NetlifyPath, p.handleSearch)
	api.HandleFunc(SearchPath, p.handleSearch)

	c := cors.New(cors.Options{
		AllowOriginFunc:    p.originAllowed,
		AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type"},
		ExposedHeaders:     []string{payload.RateLimitHeader, "X-Request-ID"},
		MaxAge:             86400,
		OptionsPassthrough: true,
	})

	root := mux.NewRouter()
	if p.hub != nil {
		root.Handle(EventsPath, realtime.Handler(p.hub, p.wsOriginAllowed))
	}
	root.PathPrefix("/").Handler(gzhttp.GzipHandler(lowerRequestHeaders(c.Handler(recoverer(api)))))
	p.handler = root
	return p
}

// Reload swaps in a new configuration. Requests already running keep the
// snapshot they started with.
func (p *Proxy) Reload(cfg config.ProxyConfig) {
	s := newSettings(cfg)
	p.current.Store(s)
	logger.Infof("configuration reloaded: %d allowed origins, upstream configured: %v", len(s.origins), len(s.missing) == 0)
}

// Missing lists the upstream settings that are still blank.
func (p *Proxy) Missing() []string {
	return append([]string(nil), p.current.Load().missing...)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

func (p *Proxy) originAllowed(origin string) bool {
	return origin != "" && p.current.Load().origins[origin]
}

func (p *Proxy) wsOriginAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.originAllowed(origin)
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	listeners := 0
	if p.hub != nil {
		listeners = p.hub.Size()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Version:    version.Version,
		Configured: len(p.current.Load().missing) == 0,
		Listeners:  listeners,
		Timestamp:  time.Now().UTC(),
	})
}

func (p *Proxy) handleSearch(w http.ResponseWriter, r *http.Request) {
	s := p.current.Load()
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)

	if r.Method == http.MethodOptions {
		// the CORS layer only answers preflights it accepts
		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusForbidden)
		}
		return
	}

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, methodResponse{Error: "Method Not Allowed", Allowed: []string{http.MethodPost}})
		return
	}

	if len(s.missing) > 0 {
		logger.Errorf("refusing search, missing configuration: %s", strings.Join(s.missing, ", "))
		writeJSON(w, http.StatusInternalServerError, misconfiguredResponse{Error: "Server misconfigured", MissingEnv: s.missing})
		return
	}

	var in struct {
		Query any `json:"query"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}
	q, _ := in.Query.(string)
	q = strings.TrimSpace(q)
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing query"})
		return
	}

	clientIP := ClientIP(r)
	start := time.Now()

	status, header, body, err := p.forward(r.Context(), s, id, q, clientIP, r.Header.Get("X-Forwarded-For"))
	if errors.Is(err, errUpstreamTooLarge) {
		logger.Errorf("search %s: %v", id, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Upstream response too large"})
		p.publish(id, q, clientIP, http.StatusBadGateway, start)
		return
	}
	if err != nil {
		logger.Errorf("search %s: upstream unreachable: %v", id, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to reach upstream webhook", Message: err.Error()})
		p.publish(id, q, clientIP, http.StatusBadGateway, start)
		return
	}

	if !json.Valid(body) {
		logger.Warnf("search %s: upstream returned non-JSON (status %d)", id, status)
		body, _ = json.Marshal(nonJSONResponse{Error: "Upstream returned non-JSON response", Status: status, Body: string(body)})
	}
	if v := header.Get(payload.RateLimitHeader); v != "" {
		w.Header().Set(payload.RateLimitHeader, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)

	logger.Infof("search %s query=%q ip=%s status=%d in %s", id, q, clientIP, status, time.Since(start).Round(time.Millisecond))
	p.publish(id, q, clientIP, status, start)
}

func (p *Proxy) forward(ctx context.Context, s *settings, id, q, clientIP, xff string) (int, http.Header, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(upstreamRequest{Query: q, ClientIP: clientIP})
	if err != nil {
		return 0, nil, nil, fmt.Errorf("encoding upstream request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", id)
	req.Header.Set(s.authHeaderName, s.authHeaderValue)
	if clientIP != "" {
		req.Header.Set("X-Real-IP", clientIP)
		if xff == "" {
			xff = clientIP
		}
		req.Header.Set("X-Forwarded-For", xff)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if int64(len(body)) > p.maxBody {
		return 0, nil, nil, fmt.Errorf("%w: more than %d bytes (status %d)", errUpstreamTooLarge, p.maxBody, resp.StatusCode)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func (p *Proxy) publish(id, q, clientIP string, status int, start time.Time) {
	if p.hub == nil {
		return
	}
	p.hub.Publish(realtime.SearchEvent{
		ID:         id,
		Query:      q,
		ClientIP:   clientIP,
		Status:     status,
		DurationMS: time.Since(start).Milliseconds(),
		At:         start.UTC(),
	})
}

// lowerRequestHeaders lowercases the header names a preflight asks for.
// Browsers send them lowercase, the CORS layer matches nothing else.
func lowerRequestHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			if vals := r.Header.Values("Access-Control-Request-Headers"); len(vals) > 0 {
				lowered := make([]string, len(vals))
				for i, v := range vals {
					lowered[i] = strings.ToLower(v)
				}
				r.Header["Access-Control-Request-Headers"] = lowered
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic into a 500 without any CORS headers.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Errorf("unhandled error serving %s %s: %v", r.Method, r.URL.Path, rec)

			h := w.Header()
			for k := range h {
				if strings.HasPrefix(k, "Access-Control-") {
					h.Del(k)
				}
			}
			vary := h.Values("Vary")
			h.Del("Vary")
			for _, v := range vary {
				if v != "Origin" {
					h.Add("Vary", v)
				}
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Unhandled server error", Message: fmt.Sprint(rec)})
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}
