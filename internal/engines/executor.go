package engines

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultEngineTimeout = 10 * time.Second

// Executor owns the shared HTTP client and runs the Requests that adapters
// build. Adapters never touch the network themselves, which keeps their
// parse logic testable against recorded payloads.
type Executor struct {
	client *resty.Client
}

// NewExecutor builds an executor with sane transport defaults. Retries are
// deliberately off: the dispatcher's failure semantics treat a failed fetch
// as an empty result set for that engine, and retrying would eat into the
// per-engine deadline.
func NewExecutor() *Executor {
	client := resty.New().
		SetTimeout(defaultEngineTimeout).
		SetHeader("User-Agent", "melodex/1.0 (+https://github.com/melodex)").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Executor{client: client}
}

// NewExecutorWithClient lets tests inject a client bound to a test server.
func NewExecutorWithClient(client *resty.Client) *Executor {
	return &Executor{client: client}
}

// Do executes a prepared request and returns the raw response. A 429
// answer becomes a RateLimitError carrying the server's Retry-After when
// present. Other non-2xx statuses are NOT errors here: the response is
// returned as-is and the adapter's ParseResponse decides what survives
// (normally nothing, which yields an empty result set).
func (e *Executor) Do(ctx context.Context, engine string, req *Request) (*Response, error) {
	if req == nil {
		return nil, &AdapterError{Engine: engine, Operation: "request"}
	}

	r := e.client.R().SetContext(ctx)
	for name, value := range req.Headers {
		r.SetHeader(name, value)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, &AdapterError{Engine: engine, Operation: "fetch", Err: err}
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			Engine:     engine,
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
