package controller

import (
	"fmt"

	"github.com/rubiojr/fmsearch/pkg/payload"
	"github.com/rubiojr/fmsearch/pkg/product"
)

// TimeoutMessage is shown when a search exceeds the request timeout.
const TimeoutMessage = "La recherche prend trop de temps. Veuillez réessayer."

// ErrorKind tells transport failures apart from upstream errors.
type ErrorKind int

const (
	// ErrorUpstream is a non-2xx response or an unreadable body.
	ErrorUpstream ErrorKind = iota
	// ErrorTransport is a network failure.
	ErrorTransport
	// ErrorTimeout is the request timeout elapsing.
	ErrorTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorUpstream:
		return "upstream"
	case ErrorTransport:
		return "transport"
	case ErrorTimeout:
		return "timeout"
	}
	return "unknown"
}

// View renders the panel states the controller drives.
//
// The controller calls View methods while holding its lock so transitions
// are observed in order. Implementations must not call back into the
// controller from these methods.
type View interface {
	Hide()
	ShowLoading(query string)
	ShowResults(page Page)
	ShowNoResults(query string)
	ShowRateLimit(info payload.RateLimit)
	ShowError(kind ErrorKind, message string)
	ShowHistory(entries []string)
}

// Page is the visible window of the cached result set.
type Page struct {
	Query string
	// Items holds the visible products, in relevance order.
	Items []product.Product
	// Total is the number of cached products.
	Total int
	// FromCache is set when no request was made to produce this page.
	FromCache bool
}

func (p Page) Shown() int { return len(p.Items) }

func (p Page) HasMore() bool { return p.Total > len(p.Items) }

// CountLabel is the results counter, e.g. "100 / 230 produits".
func (p Page) CountLabel() string {
	label := "produit"
	if p.Shown() > 1 {
		label = "produits"
	}
	if p.HasMore() {
		return fmt.Sprintf("%d / %d %s", p.Shown(), p.Total, label)
	}
	return fmt.Sprintf("%d %s", p.Shown(), label)
}

// State is the panel state last requested from the View.
type State int

const (
	StateHidden State = iota
	StateLoading
	StateResults
	StateNoResults
	StateRateLimited
	StateError
	StateHistory
)

func (s State) String() string {
	return [...]string{"hidden", "loading", "results", "no-results", "rate-limited", "error", "history"}[s]
}
