package schema

import (
	"sort"
	"time"
)

// PlatformEntry is the per-engine record inside a UnifiedTrack. A unified
// track holds at most one entry per engine; a later observation of the same
// (unified_id, engine) pair replaces the earlier one.
type PlatformEntry struct {
	URL        string         `json:"url"`
	SourceURI  string         `json:"source_uri,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Quality    float64        `json:"quality,omitempty"`
	PreviewURL string         `json:"preview_url,omitempty"`
	IframeSrc  string         `json:"iframe_src,omitempty"`
}

// UnifiedTrack is the cross-source entity keyed by normalized
// (artist, title). It extracts fields from NormalizedResults; it never
// holds a pointer into one.
type UnifiedTrack struct {
	UnifiedID string `json:"unified_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`

	Platforms map[string]PlatformEntry `json:"platforms"`

	Genres      []string `json:"genres,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	DurationMs  int      `json:"duration_ms,omitempty"`

	PopularityScore float64 `json:"popularity_score"`
	PlayCountTotal  int64   `json:"play_count_total,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
}

// NewUnifiedTrack creates a track from its first observed result fields.
func NewUnifiedTrack(artist, title string) *UnifiedTrack {
	return &UnifiedTrack{
		UnifiedID: UnifiedID(artist, title),
		Title:     title,
		Artist:    artist,
		Platforms: make(map[string]PlatformEntry),
		FirstSeen: time.Now().UTC(),
	}
}

// AddGenre unions a genre into the track's genre set, keeping it sorted.
func (t *UnifiedTrack) AddGenre(genre string) {
	t.Genres = addToSet(t.Genres, genre)
}

// AddTag unions a tag into the track's tag set, keeping it sorted.
func (t *UnifiedTrack) AddTag(tag string) {
	t.Tags = addToSet(t.Tags, tag)
}

// FirstURL returns a playable URL from any platform, preferring the given
// engine order, or "" when no platform carries one.
func (t *UnifiedTrack) FirstURL(preferred ...string) string {
	for _, name := range preferred {
		if entry, ok := t.Platforms[name]; ok && entry.URL != "" {
			return entry.URL
		}
	}
	names := make([]string, 0, len(t.Platforms))
	for name := range t.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if url := t.Platforms[name].URL; url != "" {
			return url
		}
	}
	return ""
}

func addToSet(set []string, value string) []string {
	if value == "" {
		return set
	}
	for _, existing := range set {
		if existing == value {
			return set
		}
	}
	set = append(set, value)
	sort.Strings(set)
	return set
}
