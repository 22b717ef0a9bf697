// Package handlers exposes the search and playlist services over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"melodex/internal/cache"
	"melodex/internal/dispatch"
	"melodex/internal/engines"
	"melodex/internal/ratelimit"
	"melodex/internal/schema"
	"melodex/internal/validate"
)

// Searcher is the dispatcher surface the handlers need.
type Searcher interface {
	Search(ctx context.Context, query string, opts dispatch.Options) (*dispatch.Response, error)
}

// MusicHandler handles search and engine-administration requests.
type MusicHandler struct {
	searcher Searcher
	registry *engines.Registry
	results  *cache.ResultCache
	limiter  *ratelimit.Limiter
}

// NewMusicHandler creates a music handler. The cache and limiter may be
// nil, which turns their admin endpoints into 503s.
func NewMusicHandler(searcher Searcher, registry *engines.Registry, results *cache.ResultCache, limiter *ratelimit.Limiter) *MusicHandler {
	return &MusicHandler{
		searcher: searcher,
		registry: registry,
		results:  results,
		limiter:  limiter,
	}
}

func searchOptions(c *gin.Context) dispatch.Options {
	opts := dispatch.Options{
		TimeRange: c.Query("time_range"),
		SkipCache: c.Query("skip_cache") == "true",
	}
	if raw := c.Query("engines"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Engines = append(opts.Engines, name)
			}
		}
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		opts.PageNo = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		opts.Limit = limit
	}
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.AllowedTypes = append(opts.AllowedTypes, schema.ContentType(t))
			}
		}
	}
	return opts
}

// Search handles GET /api/music/search. It returns the full per-engine
// view: flat results, unified tracks, and a status per queried engine.
func (h *MusicHandler) Search(c *gin.Context) {
	resp, err := h.searcher.Search(c.Request.Context(), c.Query("q"), searchOptions(c))
	if err != nil {
		var invalid *validate.InvalidInputError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Aggregated handles GET /api/music/aggregated: the unified-track view
// only, for clients that don't care which engine said what.
func (h *MusicHandler) Aggregated(c *gin.Context) {
	resp, err := h.searcher.Search(c.Request.Context(), c.Query("q"), searchOptions(c))
	if err != nil {
		var invalid *validate.InvalidInputError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":              resp.Query,
		"tracks":             resp.Tracks,
		"total_tracks":       len(resp.Tracks),
		"engines":            resp.Statuses,
		"duplicates_removed": resp.Duplicates,
		"elapsed_ms":         resp.ElapsedMs,
	})
}

// EngineStatus is one row of the engine listing.
type EngineStatus struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name"`
	Shortcut       string   `json:"shortcut,omitempty"`
	Features       []string `json:"features,omitempty"`
	Enabled        bool     `json:"enabled"`
	RequiresAPIKey bool     `json:"requires_api_key"`
}

// Engines handles GET /api/music/engines.
func (h *MusicHandler) Engines(c *gin.Context) {
	list := h.registry.List()
	statuses := make([]EngineStatus, 0, len(list))
	enabled := 0
	for _, engine := range list {
		d := engine.Descriptor()
		if d.Enabled {
			enabled++
		}
		statuses = append(statuses, EngineStatus{
			Name:           d.Name,
			DisplayName:    d.DisplayName,
			Shortcut:       d.Shortcut,
			Features:       d.Features,
			Enabled:        d.Enabled,
			RequiresAPIKey: d.RequiresAPIKey,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"engines":  statuses,
		"enabled":  enabled,
		"features": h.registry.FeatureReport(),
	})
}

// CacheStats handles GET /api/music/cache/stats.
func (h *MusicHandler) CacheStats(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not configured"})
		return
	}
	stats, err := h.results.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unreachable", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CachePurge handles POST /api/music/cache/purge. An optional prefix
// narrows the purge; the default clears all search results.
func (h *MusicHandler) CachePurge(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not configured"})
		return
	}
	removed, err := h.results.Purge(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache purge failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// RateLimitStatus handles GET /api/music/ratelimit/:engine.
func (h *MusicHandler) RateLimitStatus(c *gin.Context) {
	if h.limiter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter not configured"})
		return
	}
	name := c.Param("engine")
	engine, ok := h.registry.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown engine " + name})
		return
	}
	d := engine.Descriptor()
	status := h.limiter.Remaining(c.Request.Context(), d.Name, d.RateLimit, d.RatePeriod)
	c.JSON(http.StatusOK, gin.H{
		"engine":      d.Name,
		"remaining":   status.Remaining,
		"limit":       status.Limit,
		"reset_in_ms": status.ResetIn.Milliseconds(),
		"rate_period": d.RatePeriod.String(),
	})
}
