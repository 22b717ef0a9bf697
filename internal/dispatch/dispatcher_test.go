package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodex/internal/cache"
	"melodex/internal/engines"
	"melodex/internal/ratelimit"
	"melodex/internal/schema"
)

// stubEngine hits its base URL and emits canned raw results; the HTTP
// layer stays real so executor failure modes are exercised end to end.
type stubEngine struct {
	name       string
	baseURL    string
	enabled    bool
	timeout    time.Duration
	limit      int
	period     time.Duration
	buildDelay time.Duration
	emit       []schema.RawResult
}

func (s *stubEngine) Descriptor() engines.Descriptor {
	timeout := s.timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return engines.Descriptor{
		Name:       s.name,
		Enabled:    s.enabled,
		Timeout:    timeout,
		RateLimit:  s.limit,
		RatePeriod: s.period,
		CacheTTL:   time.Hour,
	}
}

func (s *stubEngine) BuildRequest(_ context.Context, query string, _ engines.SearchParams) (*engines.Request, error) {
	// A delay here ignores cancellation, like an adapter stuck in a
	// blocking token refresh.
	if s.buildDelay > 0 {
		time.Sleep(s.buildDelay)
	}
	return &engines.Request{URL: s.baseURL + "/?q=" + query}, nil
}

func (s *stubEngine) ParseResponse(resp *engines.Response, _ engines.SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	return s.emit, nil
}

func rawTrack(engine, artist, title string, n int) schema.RawResult {
	r := schema.RawResult{
		Engine: engine,
		Title:  title,
		URL:    fmt.Sprintf("https://%s.example.com/track/%d", engine, n),
	}
	r.SetField("artist", artist)
	r.SetField("duration", 248)
	return r
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestDispatcher(t *testing.T, list ...engines.Engine) (*Dispatcher, *cache.MemoryCache) {
	t.Helper()
	store := cache.NewMemoryCache()
	d := NewDispatcher(
		engines.NewRegistry(list...),
		engines.NewExecutor(),
		cache.NewResultCache(store),
		ratelimit.NewLimiter(ratelimit.NewMemoryStore()),
		DispatcherConfig{OverallTimeout: 3 * time.Second, EngineTimeout: 2 * time.Second},
	)
	return d, store
}

func TestSearchAggregatesAcrossEngines(t *testing.T) {
	server := okServer(t)
	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("alpha", "Daft Punk", "Get Lucky", 1)}},
		&stubEngine{name: "beta", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("beta", "Daft Punk", "Get Lucky", 2)}},
	)

	resp, err := d.Search(context.Background(), "daft punk", Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Queried)
	assert.Equal(t, StatusCompleted, resp.Statuses["alpha"])
	assert.Equal(t, StatusCompleted, resp.Statuses["beta"])
	require.Len(t, resp.Tracks, 1)
	assert.Len(t, resp.Tracks[0].Platforms, 2)
	assert.GreaterOrEqual(t, resp.ElapsedMs, int64(0))
}

func TestSearchRejectsInvalidInput(t *testing.T) {
	server := okServer(t)
	d, _ := newTestDispatcher(t, &stubEngine{name: "alpha", baseURL: server.URL, enabled: true})

	_, err := d.Search(context.Background(), "x", Options{})
	assert.Error(t, err)

	_, err = d.Search(context.Background(), "valid query", Options{Engines: []string{"unknown"}})
	assert.Error(t, err)
}

func TestSearchPartialFailure(t *testing.T) {
	good := okServer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("connection drop")
	}))
	t.Cleanup(bad.Close)

	d, _ := newTestDispatcher(t,
		&stubEngine{name: "good", baseURL: good.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("good", "Queen", "Bohemian Rhapsody", 1)}},
		&stubEngine{name: "broken", baseURL: bad.URL, enabled: true},
	)

	resp, err := d.Search(context.Background(), "queen", Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, resp.Statuses["good"])
	assert.Equal(t, StatusFailed, resp.Statuses["broken"])
	require.Len(t, resp.Tracks, 1)
}

func TestSearchDisabledEngine(t *testing.T) {
	server := okServer(t)
	d, _ := newTestDispatcher(t,
		&stubEngine{name: "off", baseURL: server.URL, enabled: false},
		&stubEngine{name: "on", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("on", "Queen", "Under Pressure", 1)}},
	)

	// Explicitly selecting a disabled engine reports it as disabled.
	resp, err := d.Search(context.Background(), "queen", Options{Engines: []string{"off", "on"}})
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, resp.Statuses["off"])
	assert.Equal(t, StatusCompleted, resp.Statuses["on"])
	assert.Equal(t, 1, resp.Queried)
}

func TestSearchEngineTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)
	fast := okServer(t)

	d, _ := newTestDispatcher(t,
		&stubEngine{name: "slow", baseURL: slow.URL, enabled: true, timeout: 50 * time.Millisecond},
		&stubEngine{name: "fast", baseURL: fast.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("fast", "Queen", "Radio Ga Ga", 1)}},
	)

	resp, err := d.Search(context.Background(), "queen", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, resp.Statuses["slow"])
	assert.Equal(t, StatusCompleted, resp.Statuses["fast"])
	require.Len(t, resp.Tracks, 1)
}

func TestSearchOverallDeadline(t *testing.T) {
	server := okServer(t)
	d := NewDispatcher(
		engines.NewRegistry(
			&stubEngine{name: "fast", baseURL: server.URL, enabled: true,
				emit: []schema.RawResult{rawTrack("fast", "Queen", "Flash", 1)}},
			&stubEngine{name: "stuck", baseURL: server.URL, enabled: true,
				buildDelay: 2 * time.Second},
		),
		engines.NewExecutor(),
		cache.NewResultCache(cache.NewMemoryCache()),
		ratelimit.NewLimiter(ratelimit.NewMemoryStore()),
		DispatcherConfig{OverallTimeout: 150 * time.Millisecond, EngineTimeout: 5 * time.Second},
	)

	started := time.Now()
	resp, err := d.Search(context.Background(), "queen flash", Options{})
	elapsed := time.Since(started)
	require.NoError(t, err)

	// The deadline bounds the whole search, straggler included.
	assert.Less(t, elapsed, 400*time.Millisecond)
	assert.Equal(t, StatusCompleted, resp.Statuses["fast"])
	assert.Equal(t, StatusTimeout, resp.Statuses["stuck"])
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, "Flash", resp.Tracks[0].Title)
}

func TestSearchCapsRankedResults(t *testing.T) {
	server := okServer(t)
	var emit []schema.RawResult
	for i := 0; i < 5; i++ {
		emit = append(emit, rawTrack("alpha", "Queen", fmt.Sprintf("Track %d", i), i))
	}
	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true, emit: emit})

	resp, err := d.Search(context.Background(), "queen", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Tracks, 2)

	resp, err = d.Search(context.Background(), "queen", Options{Limit: 3, SkipCache: true})
	require.NoError(t, err)
	assert.Len(t, resp.Tracks, 3)
}

func TestSearchUpstreamRateLimit(t *testing.T) {
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(limited.Close)

	d, _ := newTestDispatcher(t, &stubEngine{name: "alpha", baseURL: limited.URL, enabled: true})

	resp, err := d.Search(context.Background(), "queen", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusRateLimited, resp.Statuses["alpha"])
}

func TestSearchLocalRateLimit(t *testing.T) {
	server := okServer(t)
	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true, limit: 1, period: time.Minute,
			emit: []schema.RawResult{rawTrack("alpha", "Queen", "Bicycle Race", 1)}},
	)

	resp, err := d.Search(context.Background(), "queen bicycle", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Statuses["alpha"])

	// Second distinct query exceeds the 1/minute budget.
	resp, err = d.Search(context.Background(), "queen pressure", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusRateLimited, resp.Statuses["alpha"])
}

func TestSearchCacheHit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("alpha", "Queen", "Somebody to Love", 1)}},
	)

	resp, err := d.Search(context.Background(), "queen love", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Statuses["alpha"])

	resp, err = d.Search(context.Background(), "queen love", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusCacheHit, resp.Statuses["alpha"])
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, 1, calls)
}

func TestSearchSkipCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{rawTrack("alpha", "Queen", "Innuendo", 1)}},
	)

	for i := 0; i < 2; i++ {
		resp, err := d.Search(context.Background(), "queen innuendo", Options{SkipCache: true})
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, resp.Statuses["alpha"])
	}
	assert.Equal(t, 2, calls)
}

func TestSearchDropsInvalidResults(t *testing.T) {
	server := okServer(t)
	invalid := schema.RawResult{Engine: "alpha", Title: "No URL"}
	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{invalid, rawTrack("alpha", "Queen", "Valid", 1)}},
	)

	resp, err := d.Search(context.Background(), "queen", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, "Valid", resp.Tracks[0].Title)
}

func TestSearchContentTypeFilter(t *testing.T) {
	server := okServer(t)
	station := schema.RawResult{
		Engine: "alpha",
		Title:  "Smooth Jazz Radio Station",
		URL:    "https://radio.example.com/stream/live",
	}
	d, _ := newTestDispatcher(t,
		&stubEngine{name: "alpha", baseURL: server.URL, enabled: true,
			emit: []schema.RawResult{station, rawTrack("alpha", "Queen", "Jazz Song", 1)}},
	)

	resp, err := d.Search(context.Background(), "jazz", Options{})
	require.NoError(t, err)
	for _, track := range resp.Tracks {
		assert.NotEqual(t, "Smooth Jazz Radio Station", track.Title)
	}

	// Opting into radio stations surfaces it.
	resp, err = d.Search(context.Background(), "jazz", Options{
		SkipCache:    true,
		AllowedTypes: []schema.ContentType{schema.ContentMusicTrack, schema.ContentRadioStation},
	})
	require.NoError(t, err)
	found := false
	for _, r := range resp.Results {
		if r.ContentType == schema.ContentRadioStation {
			found = true
		}
	}
	assert.True(t, found)
}
