package gateway

import "fmt"

// Kind classifies supplier API failures. Callers branch on Kind, never on
// message text.
type Kind string

const (
	KindValidation           Kind = "validation"           // 400: request was malformed or rejected
	KindOutOfStock           Kind = "out_of_stock"         // 402: supplier cannot cover the amount
	KindInsufficientUpstream Kind = "insufficient_balance" // 403: our supplier account lacks funds
	KindNotFound             Kind = "not_found"            // 404
	KindConflict             Kind = "conflict"             // 409: e.g. duplicate order id
	KindRateLimited          Kind = "rate_limited"         // 429
	KindTimeout              Kind = "timeout"              // deadline exceeded talking to the supplier
	KindServer               Kind = "server"               // 5xx and anything unclassified
)

// Error is a classified supplier API failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("supplier %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("supplier %s: %s", e.Kind, e.Message)
}

// Transient reports whether the failure may resolve on its own. An order that
// failed transiently is left in processing for the reconciliation poller;
// anything else is refunded immediately.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// classify maps an HTTP response status to an error kind.
func classify(status int) Kind {
	switch status {
	case 400:
		return KindValidation
	case 402:
		return KindOutOfStock
	case 403:
		return KindInsufficientUpstream
	case 404:
		return KindNotFound
	case 409:
		return KindConflict
	case 429:
		return KindRateLimited
	default:
		return KindServer
	}
}
