package engines

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Overrides adjusts a built-in engine from deployment configuration.
// Zero fields keep the adapter's defaults.
type Overrides struct {
	Timeout    time.Duration
	RateLimit  int
	RatePeriod time.Duration
	CacheTTL   time.Duration
	BaseURL    string
	UserAgent  string
}

// Customize wraps an engine so its descriptor and outgoing requests honor
// the overrides. A zero Overrides returns the engine unchanged.
func Customize(engine Engine, o Overrides) Engine {
	if o == (Overrides{}) {
		return engine
	}
	return &customizedEngine{Engine: engine, overrides: o}
}

type customizedEngine struct {
	Engine
	overrides Overrides
}

func (c *customizedEngine) Descriptor() Descriptor {
	d := c.Engine.Descriptor()
	if c.overrides.Timeout > 0 {
		d.Timeout = c.overrides.Timeout
	}
	if c.overrides.RateLimit > 0 {
		d.RateLimit = c.overrides.RateLimit
	}
	if c.overrides.RatePeriod > 0 {
		d.RatePeriod = c.overrides.RatePeriod
	}
	if c.overrides.CacheTTL > 0 {
		d.CacheTTL = c.overrides.CacheTTL
	}
	return d
}

func (c *customizedEngine) BuildRequest(ctx context.Context, query string, p SearchParams) (*Request, error) {
	req, err := c.Engine.BuildRequest(ctx, query, p)
	if err != nil {
		return nil, err
	}
	if c.overrides.BaseURL != "" {
		rebased, err := rebaseURL(req.URL, c.overrides.BaseURL)
		if err != nil {
			return nil, &AdapterError{Engine: c.Descriptor().Name, Operation: "rebase", Err: err}
		}
		req.URL = rebased
	}
	if c.overrides.UserAgent != "" {
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		req.Headers["User-Agent"] = c.overrides.UserAgent
	}
	return req, nil
}

// rebaseURL points a built request at a different origin, keeping the
// adapter's path and query. Used for proxies and self-hosted mirrors.
func rebaseURL(raw, base string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	if p := strings.TrimSuffix(b.Path, "/"); p != "" {
		u.Path = p + u.Path
	}
	return u.String(), nil
}
