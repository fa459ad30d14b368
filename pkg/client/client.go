// Package client talks to the search webhook (usually through the proxy).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/rubiojr/fmsearch/pkg/version"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("webhook response body too large")

// Response is a settled webhook exchange. Body is the raw bytes; decoding
// and classification happen in the payload package.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type searchRequest struct {
	Query string `json:"query"`
}

// Client posts queries to a single webhook URL.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	maxBody  int64
}

// New returns a client for endpoint with its own cookie jar. Timeouts are
// left to the caller's context.
func New(endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook url %q must be http or https", endpoint)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{endpoint: u, http: &http.Client{Jar: jar}, maxBody: maxBodySize}, nil
}

// Endpoint returns the webhook URL.
func (c *Client) Endpoint() *url.URL { return c.endpoint }

// Jar returns the cookie jar shared by every request.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// Search posts {"query": q}. Any HTTP status is a successful exchange; only
// transport failures, including context cancellation, return an error.
func (c *Client) Search(ctx context.Context, q string) (*Response, error) {
	body, err := json.Marshal(searchRequest{Query: q})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading webhook response: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes (status %d)", ErrBodyTooLarge, c.maxBody, resp.StatusCode)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
