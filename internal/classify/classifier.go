// Package classify tags normalized results with a content kind so that
// radio streams, podcasts and lyrics pages can be filtered out of track
// search results.
package classify

import (
	"log/slog"
	"regexp"
	"strings"

	"melodex/internal/schema"
)

var (
	radioPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bradio\b`),
		regexp.MustCompile(`(?i)\bfm\b`),
		regexp.MustCompile(`(?i)\bam\b`),
		regexp.MustCompile(`(?i)\bstation\b`),
		regexp.MustCompile(`(?i)\bbroadcast`),
		regexp.MustCompile(`(?i)\blive\s+stream`),
		regexp.MustCompile(`(?i)\bonline\s+radio`),
		regexp.MustCompile(`(?i)exclusive\.radio`),
		regexp.MustCompile(`(?i)radio\.com`),
		regexp.MustCompile(`(?i)tunein\.com`),
		regexp.MustCompile(`(?i)#\s*TOP\s*\d+\s*DJ`),
		regexp.MustCompile(`(?i)CHARTS\s*RADIO`),
	}

	artistDashTitleRe = regexp.MustCompile(`^([^-]+)\s*-\s*([^-]+)$`)
	titleByArtistRe   = regexp.MustCompile(`(?i)^(.+)\s+by\s+([^-]+)$`)
	versionSuffixRe   = regexp.MustCompile(`\s*\([^)]+\)\s*$`)

	podcastPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bpodcast\b`),
		regexp.MustCompile(`(?i)\bepisode\b`),
		regexp.MustCompile(`(?i)\bep\.\s*\d+`),
		regexp.MustCompile(`(?i)\binterview\b`),
	}

	radioURLTokens = []string{"radio", "fm", "stream", "live", "broadcast"}
)

// Engines whose output is a single content kind regardless of the result
// itself. Confidence 0.95: the engine cannot return anything else.
var engineOverrides = map[string]schema.ContentType{
	"radiobrowser": schema.ContentRadioStation,
	"genius":       schema.ContentLyrics,
}

// Engines that only serve music, which raises the music score for their
// results.
var musicEngines = map[string]bool{
	"bandcamp":   true,
	"soundcloud": true,
	"jamendo":    true,
	"mixcloud":   true,
	"deezer":     true,
	"spotify":    true,
}

// Video-hosting engines whose results may be music videos.
var videoEngines = map[string]bool{
	"youtube": true,
}

// Classify assigns a content type and confidence to a result. The decision
// order is fixed: engine override, radio score, podcast patterns, music
// score, video engines, unknown.
func Classify(n *schema.NormalizedResult) (schema.ContentType, float64) {
	engine := strings.ToLower(n.Engine)
	if kind, ok := engineOverrides[engine]; ok {
		return kind, 0.95
	}

	if score := radioScore(n); score >= 0.7 {
		return schema.ContentRadioStation, score
	}

	combined := n.Title + " " + n.Content
	for _, pattern := range podcastPatterns {
		if pattern.MatchString(combined) {
			return schema.ContentPodcast, 0.8
		}
	}

	if score := musicScore(n); score >= 0.5 {
		return schema.ContentMusicTrack, score
	}

	if videoEngines[engine] {
		if n.HasMusicMetadata() {
			return schema.ContentVideo, 0.7
		}
		return schema.ContentUnknown, 0.3
	}

	return schema.ContentUnknown, 0.0
}

// DefaultAllowed is the filter policy applied when the caller does not
// pass an explicit allowed set.
func DefaultAllowed() []schema.ContentType {
	return []schema.ContentType{schema.ContentMusicTrack, schema.ContentVideo}
}

// Filter classifies each result, annotates it, and keeps only the allowed
// content types. A nil allowed set means DefaultAllowed.
func Filter(results []schema.NormalizedResult, allowed []schema.ContentType) []schema.NormalizedResult {
	if allowed == nil {
		allowed = DefaultAllowed()
	}
	allowedSet := make(map[schema.ContentType]bool, len(allowed))
	for _, kind := range allowed {
		allowedSet[kind] = true
	}

	kept := make([]schema.NormalizedResult, 0, len(results))
	stats := make(map[schema.ContentType]int)
	for i := range results {
		kind, confidence := Classify(&results[i])
		results[i].ContentType = kind
		results[i].Confidence = confidence
		stats[kind]++
		if allowedSet[kind] {
			EnhanceMetadata(&results[i])
			kept = append(kept, results[i])
		}
	}
	slog.Debug("content classification",
		"total", len(results), "kept", len(kept), "stats", stats)
	return kept
}

// EnhanceMetadata fills in a missing artist by parsing "Artist - Title" or
// "Title by Artist" forms, and derives BaseTrack by stripping trailing
// parenthetical version markers.
func EnhanceMetadata(n *schema.NormalizedResult) {
	if n.ContentType != schema.ContentMusicTrack && n.ContentType != schema.ContentVideo {
		return
	}
	if n.Artist == "" {
		if m := artistDashTitleRe.FindStringSubmatch(n.Title); m != nil {
			n.Artist = strings.TrimSpace(m[1])
			n.BaseTrack = strings.TrimSpace(m[2])
		} else if m := titleByArtistRe.FindStringSubmatch(n.Title); m != nil {
			n.BaseTrack = strings.TrimSpace(m[1])
			n.Artist = strings.TrimSpace(m[2])
		}
		if n.Artist != "" && len(n.Artists) == 0 {
			n.Artists = []string{n.Artist}
		}
	}
	if n.BaseTrack == "" {
		n.BaseTrack = strings.TrimSpace(versionSuffixRe.ReplaceAllString(n.Title, ""))
	} else {
		n.BaseTrack = strings.TrimSpace(versionSuffixRe.ReplaceAllString(n.BaseTrack, ""))
	}
}

func radioScore(n *schema.NormalizedResult) float64 {
	score := 0.0
	for _, pattern := range radioPatterns {
		if pattern.MatchString(n.Title) {
			score += 0.3
			break
		}
	}
	lowerURL := strings.ToLower(n.URL)
	for _, token := range radioURLTokens {
		if strings.Contains(lowerURL, token) {
			score += 0.3
			break
		}
	}
	lowerContent := strings.ToLower(n.Content)
	for _, pattern := range radioPatterns[:5] {
		if pattern.MatchString(lowerContent) {
			score += 0.2
			break
		}
	}
	// No duration, or anything past an hour, smells like a stream.
	if n.DurationMs == 0 || n.DurationMs > 3600*1000 {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func musicScore(n *schema.NormalizedResult) float64 {
	score := 0.0
	if artistDashTitleRe.MatchString(n.Title) || titleByArtistRe.MatchString(n.Title) {
		score += 0.4
	}
	if n.HasMusicMetadata() {
		score += 0.3
	}
	if n.DurationMs >= 30*1000 && n.DurationMs <= 900*1000 {
		score += 0.2
	}
	if musicEngines[strings.ToLower(n.Engine)] {
		score += 0.3
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
