// Package unify folds per-engine results into cross-source unified tracks
// and ranks them by platform coverage.
package unify

import (
	"log/slog"
	"sort"
	"strings"

	"melodex/internal/schema"
)

// Per-platform popularity weights. Presence on a big platform counts more
// than presence on a niche one; unknown engines get the floor weight.
var platformWeights = map[string]float64{
	"youtube":    30,
	"spotify":    25,
	"soundcloud": 20,
	"bandcamp":   15,
	"deezer":     10,
	"mixcloud":   10,
	"genius":     5,
}

const defaultPlatformWeight = 5

var (
	platformCountBonus float64 = 10
	maxPopularityScore float64 = 100
)

// SetTunables overrides the scoring weights, typically from a ranking
// config file. Call before serving; Score reads these unsynchronized.
func SetTunables(weights map[string]float64, countBonus, maxScore float64) {
	if len(weights) > 0 {
		platformWeights = weights
	}
	if countBonus > 0 {
		platformCountBonus = countBonus
	}
	if maxScore > 0 {
		maxPopularityScore = maxScore
	}
}

// Ranked is the output of a merge pass: unified tracks in rank order plus
// flat result counts for the response envelope.
type Ranked struct {
	Tracks     []*schema.UnifiedTrack
	TotalRaw   int // results in, before dedup
	Duplicates int // dropped by per-engine stable-key dedup
}

// Merge deduplicates and unifies a stream of normalized results. Within an
// engine, results sharing a stable key collapse to the first occurrence.
// Across engines, results sharing a unified ID merge into one track: the
// platform entry is last-write-wins per engine, genres union, and scalar
// fields fill only when empty. Input order (the dispatcher's completion
// order) decides insertion order, which breaks ranking ties.
func Merge(results []schema.NormalizedResult) *Ranked {
	ranked := &Ranked{TotalRaw: len(results)}

	seen := make(map[string]map[string]bool) // engine -> stable key set
	byID := make(map[string]*schema.UnifiedTrack)
	var order []string

	for i := range results {
		r := &results[i]

		engineSeen := seen[r.Engine]
		if engineSeen == nil {
			engineSeen = make(map[string]bool)
			seen[r.Engine] = engineSeen
		}
		key := r.StableKey
		if key == "" {
			key = schema.StableKey(r.Title, r.URL)
		}
		if engineSeen[key] {
			ranked.Duplicates++
			continue
		}
		engineSeen[key] = true

		id := schema.UnifiedID(r.Artist, r.Title)
		track, ok := byID[id]
		if !ok {
			track = schema.NewUnifiedTrack(r.Artist, r.Title)
			byID[id] = track
			order = append(order, id)
		}
		mergeInto(track, r)
	}

	ranked.Tracks = make([]*schema.UnifiedTrack, 0, len(order))
	for _, id := range order {
		track := byID[id]
		track.PopularityScore = Score(track)
		ranked.Tracks = append(ranked.Tracks, track)
	}

	// Stable sort keeps insertion order between equal scores.
	sort.SliceStable(ranked.Tracks, func(i, j int) bool {
		return ranked.Tracks[i].PopularityScore > ranked.Tracks[j].PopularityScore
	})

	slog.Debug("merged results",
		"in", ranked.TotalRaw, "tracks", len(ranked.Tracks), "duplicates", ranked.Duplicates)
	return ranked
}

// Score computes a track's popularity: the sum of its platforms' weights
// plus a per-platform coverage bonus, capped at 100. Per-result quality is
// additive only below the cap.
func Score(track *schema.UnifiedTrack) float64 {
	score := 0.0
	quality := 0.0
	for name, entry := range track.Platforms {
		weight, ok := platformWeights[strings.ToLower(name)]
		if !ok {
			weight = defaultPlatformWeight
		}
		score += weight
		quality += entry.Quality
	}
	score += float64(len(track.Platforms)) * platformCountBonus
	if score < maxPopularityScore {
		score += quality
	}
	if score > maxPopularityScore {
		score = maxPopularityScore
	}
	return score
}

func mergeInto(track *schema.UnifiedTrack, r *schema.NormalizedResult) {
	entry := schema.PlatformEntry{
		URL:        r.URL,
		SourceURI:  r.ExternalID,
		Quality:    r.QualityScore,
		PreviewURL: r.PreviewURL,
		IframeSrc:  r.IframeSrc,
	}
	if len(r.Metadata) > 0 {
		entry.Metadata = r.Metadata
	}
	track.Platforms[r.Engine] = entry

	if track.Album == "" {
		track.Album = r.Album
	}
	if track.ReleaseDate == "" {
		track.ReleaseDate = r.ReleaseDate
	}
	if track.DurationMs == 0 {
		track.DurationMs = r.DurationMs
	}
	for _, genre := range r.Genres {
		track.AddGenre(genre)
	}
	if r.ContentType != "" && r.ContentType != schema.ContentMusicTrack {
		track.AddTag(string(r.ContentType))
	}
}
