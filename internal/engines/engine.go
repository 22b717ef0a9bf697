// Package engines holds the adapter framework for external music sources:
// the Engine interface, the registry, the shared HTTP executor, and one
// adapter per supported source.
package engines

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"melodex/internal/schema"
)

// SearchParams carries normalized per-search options that adapters may
// translate to their native form.
type SearchParams struct {
	PageNo    int               // 1-based; 0 means first page
	Limit     int               // per-engine result cap; 0 means adapter default
	TimeRange string            // "", "day", "week", "month", "year"
	Extra     map[string]string // adapter-specific knobs (e.g. radio channel)
}

// Page returns the 1-based page number.
func (p SearchParams) Page() int {
	if p.PageNo < 1 {
		return 1
	}
	return p.PageNo
}

// Request is a prepared, not-yet-executed HTTP request. Adapters build
// values; the Executor owns the actual client.
type Request struct {
	Method  string // defaults to GET
	URL     string
	Headers map[string]string
}

// Response is the raw HTTP outcome handed to ParseResponse. Parse functions
// never perform I/O.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Descriptor describes one engine: identity, capabilities and limits. The
// registry serves descriptors; the dispatcher reads limits from them.
type Descriptor struct {
	Name           string
	DisplayName    string
	Shortcut       string
	Features       []string
	Timeout        time.Duration
	RateLimit      int
	RatePeriod     time.Duration
	CacheTTL       time.Duration
	Enabled        bool
	RequiresAPIKey bool
}

// Engine is the adapter contract. Search traffic goes through the Executor;
// BuildRequest takes a context only because token-authenticated adapters may
// need to refresh credentials there. ParseResponse never performs I/O: it
// skips malformed items and returns every well-formed one, erroring only
// when the whole payload is unusable.
type Engine interface {
	Descriptor() Descriptor
	BuildRequest(ctx context.Context, query string, p SearchParams) (*Request, error)
	ParseResponse(resp *Response, p SearchParams) ([]schema.RawResult, error)
}

// RateLimitError is raised when a source answers 429. RetryAfter is zero
// when the server did not say.
type RateLimitError struct {
	Engine     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited (retry after %s)", e.Engine, e.RetryAfter)
	}
	return e.Engine + " rate limited"
}

// AdapterError reports an adapter failure before any item was produced.
type AdapterError struct {
	Engine    string
	Operation string
	Err       error
}

func (e *AdapterError) Error() string {
	msg := e.Engine + " " + e.Operation + " failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
