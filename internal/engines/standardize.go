package engines

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"melodex/internal/schema"
	"melodex/internal/validate"
)

var (
	featSplitRe   = regexp.MustCompile(`(?i)\s+(?:feat\.|ft\.|featuring)\s+`)
	featTrailRe   = regexp.MustCompile(`(?i)\s+(?:feat\.|ft\.|featuring)\s+.*$`)
	yearRe        = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	isoDurationRe = regexp.MustCompile(`(?i)^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	unitsRe       = regexp.MustCompile(`(?i)^(?:(\d+)\s*m)?\s*(?:(\d+)\s*s)?$`)
)

// Standardize maps an adapter's RawResult onto the canonical shape: artist
// normalization, duration parsing, year extraction, the display content
// line, and the stable key. It is idempotent: standardizing an
// already-standardized result changes nothing.
func Standardize(raw schema.RawResult) schema.NormalizedResult {
	n := schema.NormalizedResult{
		URL:        raw.URL,
		Title:      strings.TrimSpace(raw.Title),
		Engine:     raw.Engine,
		EngineName: raw.EngineName,
	}

	artistField := raw.Field("artist")
	n.Artist = NormalizeArtist(artistField)
	n.Artists = ExtractArtists(artistField)

	n.Album = raw.Field("album")
	n.Thumbnail = firstField(&raw, "thumbnail", "image", "img_src")
	n.PreviewURL = raw.Field("preview_url")
	n.IframeSrc = firstField(&raw, "iframe_src", "embed_url")
	n.AudioURL = raw.Field("audio_url")
	n.ISRC = raw.Field("isrc")
	n.ExternalID = firstField(&raw, "external_id", "id")

	if d, ok := raw.Fields["duration"]; ok {
		if ms, valid := parseAnyDuration(d); valid {
			n.DurationMs = ms
		}
	}

	if date := firstField(&raw, "release_date", "published_date"); date != "" {
		n.ReleaseDate = date
		n.Year = ExtractYear(date)
	}

	switch g := raw.Fields["genres"].(type) {
	case []string:
		n.Genres = append(n.Genres, g...)
	case []any:
		for _, item := range g {
			if s, ok := item.(string); ok && s != "" {
				n.Genres = append(n.Genres, s)
			}
		}
	case string:
		if g != "" {
			n.Genres = []string{g}
		}
	}
	if len(n.Genres) == 0 {
		if g := raw.Field("genre"); g != "" {
			n.Genres = []string{g}
		}
	}

	if q, ok := raw.Fields["quality"].(float64); ok && q >= 0 && q <= 1 {
		n.QualityScore = q
	}
	if meta, ok := raw.Fields["metadata"].(map[string]any); ok {
		n.Metadata = meta
	}

	n.Content = contentLine(&n)
	n.StableKey = schema.StableKey(n.Title, n.URL)
	return n
}

// NormalizeArtist strips featured-artist markers, keeping only the primary
// artist. Collaborations joined with "&" are kept whole.
func NormalizeArtist(artist string) string {
	if artist == "" {
		return ""
	}
	artist = featTrailRe.ReplaceAllString(artist, "")
	return strings.Join(strings.Fields(artist), " ")
}

// ExtractArtists returns the ordered artist list: the primary artist first,
// then each featured artist split on commas and ampersands.
func ExtractArtists(artist string) []string {
	if artist == "" {
		return nil
	}
	var artists []string
	if primary := NormalizeArtist(artist); primary != "" {
		artists = append(artists, primary)
	}
	parts := featSplitRe.Split(artist, 2)
	if len(parts) == 2 {
		for _, featured := range regexp.MustCompile(`[,&]`).Split(parts[1], -1) {
			if featured = strings.TrimSpace(featured); featured != "" {
				artists = append(artists, featured)
			}
		}
	}
	return artists
}

// ParseDuration converts a duration string to milliseconds. Accepted forms:
// "HH:MM:SS", "MM:SS", ISO-8601 "PT#H#M#S", "3m 45s", and a bare integer
// (seconds when < 1000, already milliseconds otherwise).
func ParseDuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if v, err := strconv.Atoi(s); err == nil {
		if v <= 0 {
			return 0, false
		}
		if v < 1000 {
			return v * 1000, true
		}
		return v, true
	}

	if strings.Contains(s, ":") {
		return validate.ParseClockDuration(s)
	}

	if m := isoDurationRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
		hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
		minutes, _ := strconv.Atoi(zeroIfEmpty(m[2]))
		seconds, _ := strconv.Atoi(zeroIfEmpty(m[3]))
		return (hours*3600 + minutes*60 + seconds) * 1000, true
	}

	if m := unitsRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "") {
		minutes, _ := strconv.Atoi(zeroIfEmpty(m[1]))
		seconds, _ := strconv.Atoi(zeroIfEmpty(m[2]))
		if minutes == 0 && seconds == 0 {
			return 0, false
		}
		return (minutes*60 + seconds) * 1000, true
	}

	return 0, false
}

// FormatDuration renders milliseconds as "M:SS" (or "H:MM:SS" past an
// hour), the form used in content lines and M3U exports.
func FormatDuration(ms int) string {
	seconds := (ms + 500) / 1000
	minutes := seconds / 60
	seconds = seconds % 60
	if minutes >= 60 {
		return fmt.Sprintf("%d:%02d:%02d", minutes/60, minutes%60, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// ExtractYear pulls a 4-digit year out of a freeform date string, or 0.
func ExtractYear(date string) int {
	if m := yearRe.FindString(date); m != "" {
		year, _ := strconv.Atoi(m)
		return year
	}
	return 0
}

func parseAnyDuration(v any) (int, bool) {
	switch d := v.(type) {
	case string:
		return ParseDuration(d)
	case int:
		return numericDuration(float64(d))
	case int64:
		return numericDuration(float64(d))
	case float64:
		return numericDuration(d)
	}
	return 0, false
}

func numericDuration(v float64) (int, bool) {
	if v <= 0 {
		return 0, false
	}
	if v < 1000 {
		return int(v * 1000), true
	}
	return int(v), true
}

func contentLine(n *schema.NormalizedResult) string {
	var parts []string
	if n.Artist != "" {
		parts = append(parts, n.Artist)
	}
	if n.Album != "" {
		parts = append(parts, "Album: "+n.Album)
	}
	if n.DurationMs > 0 {
		parts = append(parts, FormatDuration(n.DurationMs))
	}
	return strings.Join(parts, " • ")
}

func firstField(raw *schema.RawResult, names ...string) string {
	for _, name := range names {
		if v := raw.Field(name); v != "" {
			return v
		}
	}
	return ""
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
