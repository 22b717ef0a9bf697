// Package dispatch fans a search out to every selected engine, runs the
// normalization pipeline per engine, and gathers what finished before the
// deadline. One slow or broken engine never sinks the search.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"melodex/internal/cache"
	"melodex/internal/classify"
	"melodex/internal/engines"
	"melodex/internal/interactions"
	"melodex/internal/ratelimit"
	"melodex/internal/schema"
	"melodex/internal/unify"
	"melodex/internal/validate"
)

// EngineStatus tells how each engine's leg of a search ended.
type EngineStatus string

const (
	StatusCompleted   EngineStatus = "completed"
	StatusCacheHit    EngineStatus = "cache_hit"
	StatusTimeout     EngineStatus = "timeout"
	StatusRateLimited EngineStatus = "rate_limited"
	StatusFailed      EngineStatus = "failed"
	StatusDisabled    EngineStatus = "disabled"
)

const (
	defaultOverallTimeout = 15 * time.Second
	defaultEngineTimeout  = 10 * time.Second
	defaultResultLimit    = 50
)

// Options narrows a search. Zero value means: all enabled engines, first
// page, default content filter, cache on.
type Options struct {
	Engines      []string
	PageNo       int
	Limit        int
	TimeRange    string
	AllowedTypes []schema.ContentType
	SkipCache    bool
}

// Response is the aggregated search outcome. Statuses always carries one
// entry per queried engine, failures included.
type Response struct {
	Query      string                    `json:"query"`
	Tracks     []*schema.UnifiedTrack    `json:"tracks"`
	Results    []schema.NormalizedResult `json:"results"`
	Statuses   map[string]EngineStatus   `json:"engines"`
	Queried    int                       `json:"engines_queried"`
	Duplicates int                       `json:"duplicates_removed"`
	ElapsedMs  int64                     `json:"elapsed_ms"`
}

// Dispatcher owns the fan-out. All collaborators are required except the
// limiter, which may be nil to disable outbound throttling.
type Dispatcher struct {
	registry *engines.Registry
	executor *engines.Executor
	results  *cache.ResultCache
	limiter  *ratelimit.Limiter
	events   interactions.Sink

	overallTimeout time.Duration
	engineTimeout  time.Duration
}

type DispatcherConfig struct {
	OverallTimeout time.Duration
	EngineTimeout  time.Duration
	// Events, when set, receives one search event per dispatched query.
	Events interactions.Sink
}

func NewDispatcher(registry *engines.Registry, executor *engines.Executor, results *cache.ResultCache, limiter *ratelimit.Limiter, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		registry:       registry,
		executor:       executor,
		results:        results,
		limiter:        limiter,
		events:         cfg.Events,
		overallTimeout: cfg.OverallTimeout,
		engineTimeout:  cfg.EngineTimeout,
	}
	if d.overallTimeout <= 0 {
		d.overallTimeout = defaultOverallTimeout
	}
	if d.engineTimeout <= 0 {
		d.engineTimeout = defaultEngineTimeout
	}
	return d
}

type engineOutcome struct {
	name    string
	status  EngineStatus
	results []schema.NormalizedResult
}

// Search validates the query, fans out to the selected engines, and
// returns whatever finished before the overall deadline. It errors only on
// invalid input; engine-side failures are reported through Statuses.
func (d *Dispatcher) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	started := time.Now()

	if err := validate.SearchInput(query, opts.Engines, d.registry.Names()); err != nil {
		return nil, err
	}
	query = strings.Join(strings.Fields(query), " ")

	selected := d.registry.Resolve(opts.Engines)
	resp := &Response{
		Query:    query,
		Statuses: make(map[string]EngineStatus, len(selected)),
	}

	ctx, cancel := context.WithTimeout(ctx, d.overallTimeout)
	defer cancel()

	outcomes := make(chan engineOutcome, len(selected))
	launched := 0
	for _, engine := range selected {
		desc := engine.Descriptor()
		if !desc.Enabled {
			resp.Statuses[desc.Name] = StatusDisabled
			continue
		}
		launched++
		go func(e engines.Engine, desc engines.Descriptor) {
			outcomes <- d.runEngine(ctx, e, desc, query, opts)
		}(engine, desc)
	}
	resp.Queried = launched

	var aggregated []schema.NormalizedResult
	for received := 0; received < launched; received++ {
		select {
		case outcome := <-outcomes:
			resp.Statuses[outcome.name] = outcome.status
			aggregated = append(aggregated, outcome.results...)
		case <-ctx.Done():
			// Whatever hasn't answered yet is out of time.
			for _, engine := range selected {
				name := engine.Descriptor().Name
				if _, ok := resp.Statuses[name]; !ok {
					resp.Statuses[name] = StatusTimeout
				}
			}
			received = launched
		}
	}

	ranked := unify.Merge(aggregated)
	resp.Tracks = ranked.Tracks
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}
	if len(resp.Tracks) > limit {
		resp.Tracks = resp.Tracks[:limit]
	}
	resp.Results = aggregated
	resp.Duplicates = ranked.Duplicates
	resp.ElapsedMs = time.Since(started).Milliseconds()

	slog.Info("search dispatched",
		"query", query,
		"engines", launched,
		"tracks", len(resp.Tracks),
		"elapsed_ms", resp.ElapsedMs)
	interactions.Emit(context.WithoutCancel(ctx), d.events, interactions.Event{
		Type:  interactions.EventSearch,
		Query: query,
	})
	return resp, nil
}

func (d *Dispatcher) runEngine(ctx context.Context, engine engines.Engine, desc engines.Descriptor, query string, opts Options) engineOutcome {
	outcome := engineOutcome{name: desc.Name}

	params := engines.SearchParams{
		PageNo:    opts.PageNo,
		Limit:     opts.Limit,
		TimeRange: opts.TimeRange,
		// Feed-style engines filter locally and need the query at parse time.
		Extra: map[string]string{"query": strings.ToLower(query)},
	}
	cacheKey := cache.SearchKey(desc.Name, strings.ToLower(query), map[string]string{
		"page":       fmt.Sprint(params.Page()),
		"limit":      fmt.Sprint(opts.Limit),
		"time_range": opts.TimeRange,
	})

	if !opts.SkipCache {
		if cached, hit := d.results.GetResults(ctx, cacheKey); hit {
			outcome.status = StatusCacheHit
			outcome.results = classify.Filter(cached, opts.AllowedTypes)
			return outcome
		}
	}

	if d.limiter != nil && !d.limiter.Acquire(ctx, desc.Name, desc.RateLimit, desc.RatePeriod) {
		outcome.status = StatusRateLimited
		return outcome
	}

	timeout := desc.Timeout
	if timeout <= 0 || timeout > d.engineTimeout {
		timeout = d.engineTimeout
	}
	engineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := engine.BuildRequest(engineCtx, query, params)
	if err != nil {
		slog.Warn("engine request build failed", "engine", desc.Name, "error", err)
		outcome.status = StatusFailed
		return outcome
	}

	httpResp, err := d.executor.Do(engineCtx, desc.Name, req)
	if err != nil {
		var rateErr *engines.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			outcome.status = StatusRateLimited
		case errors.Is(err, context.DeadlineExceeded) || engineCtx.Err() != nil:
			outcome.status = StatusTimeout
		default:
			slog.Warn("engine fetch failed", "engine", desc.Name, "error", err)
			outcome.status = StatusFailed
		}
		return outcome
	}

	raw, err := engine.ParseResponse(httpResp, params)
	if err != nil {
		slog.Warn("engine parse failed", "engine", desc.Name, "error", err)
		outcome.status = StatusFailed
		return outcome
	}

	normalized := d.pipeline(raw)

	if !opts.SkipCache && len(normalized) > 0 {
		// Cache pre-filter so later searches can apply their own policy.
		d.results.SetResults(ctx, cacheKey, normalized, desc.CacheTTL)
	}

	outcome.status = StatusCompleted
	outcome.results = classify.Filter(normalized, opts.AllowedTypes)
	return outcome
}

// pipeline runs sanitize, standardize and schema validation over one
// engine's raw batch. Invalid items drop out; the batch survives.
func (d *Dispatcher) pipeline(raw []schema.RawResult) []schema.NormalizedResult {
	normalized := make([]schema.NormalizedResult, 0, len(raw))
	for i := range raw {
		validate.SanitizeResult(&raw[i])
		n := engines.Standardize(raw[i])
		if !validate.NormalizedOK(&n) {
			continue
		}
		normalized = append(normalized, n)
	}
	return normalized
}
