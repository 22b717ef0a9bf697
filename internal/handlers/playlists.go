package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"melodex/internal/playlist"
	"melodex/internal/schema"
	"melodex/internal/validate"
)

// PlaylistHandler handles playlist CRUD and export requests.
type PlaylistHandler struct {
	service *playlist.Service
}

func NewPlaylistHandler(service *playlist.Service) *PlaylistHandler {
	return &PlaylistHandler{service: service}
}

// CreatePlaylistRequest is the body for POST /api/playlists.
type CreatePlaylistRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
}

// AddTrackRequest is the body for POST /api/playlists/:id/tracks. Exactly
// one of Track, Query, or URL must be set.
type AddTrackRequest struct {
	Track *schema.UnifiedTrack `json:"track,omitempty"`
	Query string               `json:"query,omitempty"`
	URL   string               `json:"url,omitempty"`
}

// MoveTrackRequest is the body for POST /api/playlists/:id/tracks/move.
type MoveTrackRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func playlistError(c *gin.Context, err error) {
	var notFound *playlist.NotFoundError
	var invalid *validate.InvalidInputError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	case errors.Is(err, playlist.ErrNoResults):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		slog.Error("playlist operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "playlist operation failed"})
	}
}

// Create handles POST /api/playlists.
func (h *PlaylistHandler) Create(c *gin.Context) {
	var req CreatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	p, err := h.service.Create(c.Request.Context(), req.Name, req.Description, req.Owner)
	if err != nil {
		playlistError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// List handles GET /api/playlists.
func (h *PlaylistHandler) List(c *gin.Context) {
	playlists, err := h.service.List(c.Request.Context(), c.Query("owner"))
	if err != nil {
		playlistError(c, err)
		return
	}
	if playlists == nil {
		playlists = []*schema.UniversalPlaylist{}
	}
	c.JSON(http.StatusOK, gin.H{"playlists": playlists, "total": len(playlists)})
}

// Get handles GET /api/playlists/:id.
func (h *PlaylistHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		playlistError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update handles PATCH /api/playlists/:id.
func (h *PlaylistHandler) Update(c *gin.Context) {
	var req CreatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	p, err := h.service.Rename(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		playlistError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/playlists/:id.
func (h *PlaylistHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		playlistError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddTrack handles POST /api/playlists/:id/tracks.
func (h *PlaylistHandler) AddTrack(c *gin.Context) {
	var req AddTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()
	switch {
	case req.Track != nil:
		p, err := h.service.AddTrack(ctx, id, req.Track)
		if err != nil {
			playlistError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	case req.Query != "":
		track, err := h.service.AddByQuery(ctx, id, req.Query)
		if err != nil {
			playlistError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": track})
	case req.URL != "":
		track, err := h.service.AddByURL(ctx, id, req.URL)
		if err != nil {
			playlistError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": track, "platform": playlist.DetectPlatform(req.URL)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of track, query, or url is required"})
	}
}

// RemoveTrack handles DELETE /api/playlists/:id/tracks/:position.
func (h *PlaylistHandler) RemoveTrack(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position must be a non-negative integer"})
		return
	}
	p, err := h.service.RemoveTrack(c.Request.Context(), c.Param("id"), position)
	if err != nil {
		playlistError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// MoveTrack handles POST /api/playlists/:id/tracks/move.
func (h *PlaylistHandler) MoveTrack(c *gin.Context) {
	var req MoveTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	p, err := h.service.MoveTrack(c.Request.Context(), c.Param("id"), req.From, req.To)
	if err != nil {
		playlistError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Export handles GET /api/playlists/:id/export?format=m3u|json|csv.
func (h *PlaylistHandler) Export(c *gin.Context) {
	format := playlist.Format(c.DefaultQuery("format", "m3u"))

	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		playlistError(c, err)
		return
	}
	data, contentType, err := playlist.Export(p, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+p.Name+`.`+string(format)+`"`)
	c.Data(http.StatusOK, contentType, data)
}
