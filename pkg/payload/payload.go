// Package payload decodes and classifies search webhook responses.
//
// The upstream automation tool answers with either a plain JSON object or a
// single-element array wrapping it, and result lists arrive as a bare array
// of products or under a "results" field in either shape. Classify folds
// all of that into exactly one Outcome.
package payload

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/rubiojr/fmsearch/pkg/product"
)

// RateLimitHeader is set to "true" by the proxy/upstream when a limit hit.
const RateLimitHeader = "X-Rate-Limit-Exceeded"

// GenericErrorMessage is shown when the upstream gives no usable message.
const GenericErrorMessage = "Erreur lors de la recherche"

// workflowErrorMessage is what the upstream returns when its workflow
// fails; it is treated as a rate limit (see RateLimit.WorkflowError).
const workflowErrorMessage = "Error in workflow"

var noItemsPattern = regexp.MustCompile(`(?i)no item to return was found`)

type Kind int

const (
	KindSuccess Kind = iota
	KindRateLimited
	KindUpstreamError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamError:
		return "upstream_error"
	}
	return "unknown"
}

// Outcome is the classification of one HTTP response.
type Outcome struct {
	Kind Kind
	// Items is set for KindSuccess; it may be empty.
	Items []product.Product
	// RateLimit is set for KindRateLimited.
	RateLimit RateLimit
	// Message is the user-facing text for KindUpstreamError.
	Message string
	// Malformed reports a body that was not valid JSON.
	Malformed bool
}

// Classify turns a status, headers and body into an Outcome.
func Classify(status int, header http.Header, body []byte) Outcome {
	var data any
	malformed := json.Unmarshal(body, &data) != nil

	obj := unwrap(data)

	if isRateLimited(status, header, obj) {
		return Outcome{Kind: KindRateLimited, RateLimit: rateLimitFrom(obj), Malformed: malformed}
	}
	if malformed {
		return Outcome{Kind: KindUpstreamError, Message: GenericErrorMessage, Malformed: true}
	}
	if status < 200 || status > 299 {
		return Outcome{Kind: KindUpstreamError, Message: errorMessage(obj)}
	}
	return Outcome{Kind: KindSuccess, Items: ExtractResults(data)}
}

// unwrap returns the first element of a non-empty array, or data itself,
// as an object. Non-object payloads yield nil.
func unwrap(data any) map[string]any {
	if arr, ok := data.([]any); ok && len(arr) > 0 {
		data = arr[0]
	}
	obj, _ := data.(map[string]any)
	return obj
}

// ExtractResults normalizes the three accepted success shapes into one
// ordered product sequence:
//
//	[{"results": [...]}]
//	{"results": [...]}
//	[...]
//
// Elements that are not JSON objects are dropped.
func ExtractResults(data any) []product.Product {
	var raw []any
	switch v := data.(type) {
	case []any:
		raw = v
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				if inner, ok := first["results"].([]any); ok {
					raw = inner
				}
			}
		}
	case map[string]any:
		raw, _ = v["results"].([]any)
	}

	items := make([]product.Product, 0, len(raw))
	for _, r := range raw {
		if obj, ok := r.(map[string]any); ok {
			items = append(items, product.Product(obj))
		}
	}
	return items
}

func isRateLimited(status int, header http.Header, obj map[string]any) bool {
	if header != nil && header.Get(RateLimitHeader) == "true" {
		return true
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if obj == nil {
		return false
	}
	if b, ok := obj["limite_depassee"].(bool); ok && b {
		return true
	}
	if e, ok := obj["error"].(string); ok && strings.Contains(strings.ToLower(e), "rate limit") {
		return true
	}
	if m, ok := obj["message"].(string); ok {
		if strings.Contains(strings.ToLower(m), "limite") || m == workflowErrorMessage {
			return true
		}
	}
	return false
}

func errorMessage(obj map[string]any) string {
	if obj != nil {
		for _, k := range []string{"message", "error"} {
			if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return GenericErrorMessage
}

// IsNoItemsMessage reports the upstream's "nothing found" error text, which
// the widget presents as an empty result rather than a failure.
func IsNoItemsMessage(msg string) bool {
	return noItemsPattern.MatchString(msg)
}
