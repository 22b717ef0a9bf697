package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"melodex/internal/cache"
)

// HealthHandler reports process and store health.
type HealthHandler struct {
	store cache.Cache
}

func NewHealthHandler(store cache.Cache) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	code := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["cache"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["cache"] = "ok"
		}
	}
	c.JSON(code, status)
}

// RegisterRoutes wires every endpoint onto the router. Nil handlers skip
// their route group.
func RegisterRoutes(router *gin.Engine, music *MusicHandler, playlists *PlaylistHandler, health *HealthHandler) {
	if health != nil {
		router.GET("/health", health.Health)
	}

	api := router.Group("/api")
	if music != nil {
		m := api.Group("/music")
		m.GET("/search", music.Search)
		m.GET("/aggregated", music.Aggregated)
		m.GET("/engines", music.Engines)
		m.GET("/cache/stats", music.CacheStats)
		m.POST("/cache/purge", music.CachePurge)
		m.GET("/ratelimit/:engine", music.RateLimitStatus)
	}
	if playlists != nil {
		p := api.Group("/playlists")
		p.POST("", playlists.Create)
		p.GET("", playlists.List)
		p.GET("/:id", playlists.Get)
		p.PATCH("/:id", playlists.Update)
		p.DELETE("/:id", playlists.Delete)
		p.POST("/:id/tracks", playlists.AddTrack)
		p.DELETE("/:id/tracks/:position", playlists.RemoveTrack)
		p.POST("/:id/tracks/move", playlists.MoveTrack)
		p.GET("/:id/export", playlists.Export)
	}
}
