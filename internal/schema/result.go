package schema

// ContentType classifies what a search result actually points at.
type ContentType string

const (
	ContentMusicTrack   ContentType = "music-track"
	ContentRadioStation ContentType = "radio-station"
	ContentPodcast      ContentType = "podcast"
	ContentLyrics       ContentType = "lyrics"
	ContentVideo        ContentType = "video"
	ContentUnknown      ContentType = "unknown"
)

// RawResult is what an engine adapter emits before normalization.
// Fields carries engine-specific extras (duration string, artist, album,
// thumbnail, published date, embed URL, price, license, BPM, key, rating,
// play count) keyed by lower-snake names.
type RawResult struct {
	Engine     string         `json:"engine"`
	EngineName string         `json:"engine_name,omitempty"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Content    string         `json:"content,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Field returns a string-typed extra field, or "" when absent.
func (r *RawResult) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	if v, ok := r.Fields[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetField records an engine-specific extra, allocating the map lazily.
func (r *RawResult) SetField(name string, value any) {
	if value == nil {
		return
	}
	if s, ok := value.(string); ok && s == "" {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
}

// NormalizedResult is the canonical cross-engine result shape. All results
// pass validation before ranking; invalid ones are dropped.
type NormalizedResult struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist,omitempty"`
	Artists     []string `json:"artists,omitempty"`
	Album       string   `json:"album,omitempty"`
	Content     string   `json:"content,omitempty"`
	DurationMs  int      `json:"duration_ms,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Year        int      `json:"year,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	ExternalID  string   `json:"external_id,omitempty"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	IframeSrc   string   `json:"iframe_src,omitempty"`
	AudioURL    string   `json:"audio_url,omitempty"`

	Engine     string `json:"engine"`
	EngineName string `json:"engine_name,omitempty"`

	ContentType  ContentType `json:"content_type,omitempty"`
	Confidence   float64     `json:"confidence,omitempty"`
	QualityScore float64     `json:"quality_score,omitempty"`

	// BaseTrack is the title with trailing parenthetical version markers
	// stripped ("Song (Radio Edit)" -> "Song"). Filled by the classifier.
	BaseTrack string `json:"base_track,omitempty"`

	// StableKey is the 16-hex content-derived key used for per-engine
	// duplicate suppression. See StableKey.
	StableKey string `json:"stable_key,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// HasMusicMetadata reports whether the result carries any music-specific
// fields, which the classifier uses as a signal.
func (n *NormalizedResult) HasMusicMetadata() bool {
	return n.Artist != "" || n.Album != "" || n.DurationMs > 0 || n.ISRC != ""
}
