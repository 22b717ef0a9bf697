package engines

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"melodex/internal/schema"
)

const radioParadiseAPIURL = "https://api.radioparadise.com/api/playlist"

// RadioParadise has no search API; it exposes recent playlist history per
// channel. The adapter fetches the feed and filters it locally against the
// query, so an empty match set is a normal outcome.
type RadioParadise struct {
	enabled bool
}

var radioParadiseChannels = map[string]int{
	"main":   0,
	"mellow": 1,
	"rock":   2,
	"world":  3,
}

type rpSong struct {
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	Album     string `json:"album"`
	Year      any    `json:"year"`
	Duration  int    `json:"duration"` // seconds
	Cover     string `json:"cover"`
	SampleURL string `json:"sample_url"`
	Rating    float64 `json:"rating"`
	SongID    any    `json:"song_id"`
}

func NewRadioParadise(enabled bool) *RadioParadise {
	return &RadioParadise{enabled: enabled}
}

func (rp *RadioParadise) Descriptor() Descriptor {
	return Descriptor{
		Name:        "radioparadise",
		DisplayName: "Radio Paradise",
		Shortcut:    "rp",
		Features:    []string{"search", "curated"},
		Timeout:     10 * time.Second,
		RateLimit:   10,
		RatePeriod:  time.Minute,
		CacheTTL:    time.Hour,
		Enabled:     rp.enabled,
	}
}

func (rp *RadioParadise) BuildRequest(_ context.Context, _ string, p SearchParams) (*Request, error) {
	channel := 0
	if name, ok := p.Extra["channel"]; ok {
		if id, known := radioParadiseChannels[name]; known {
			channel = id
		}
	}
	return &Request{
		URL:     fmt.Sprintf("%s?chan=%d", radioParadiseAPIURL, channel),
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

// ParseResponse filters the playlist feed by the query carried in
// p.Extra["query"]; the dispatcher sets it before parsing. Matching is a
// case-insensitive substring check over artist, title and album.
func (rp *RadioParadise) ParseResponse(resp *Response, p SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}

	var songs []rpSong
	if err := gojson.Unmarshal(resp.Body, &songs); err != nil {
		var wrapped struct {
			Songs []rpSong `json:"songs"`
		}
		if err := gojson.Unmarshal(resp.Body, &wrapped); err != nil {
			return nil, &AdapterError{Engine: "radioparadise", Operation: "parse", Err: err}
		}
		songs = wrapped.Songs
	}

	query := strings.ToLower(p.Extra["query"])
	results := make([]schema.RawResult, 0, len(songs))
	for _, song := range songs {
		if song.Artist == "" || song.Title == "" {
			continue
		}
		if query != "" && !rpMatches(&song, query) {
			continue
		}
		r := schema.RawResult{
			Engine:     "radioparadise",
			EngineName: "Radio Paradise",
			Title:      song.Artist + " - " + song.Title,
			URL: "https://radioparadise.com/search?" + url.Values{
				"q": {song.Artist + " " + song.Title},
			}.Encode(),
		}
		r.SetField("artist", song.Artist)
		r.SetField("album", song.Album)
		if song.Duration > 0 {
			r.SetField("duration", song.Duration)
		}
		r.SetField("thumbnail", rpCoverURL(song.Cover))
		r.SetField("audio_url", song.SampleURL)
		if year := fmt.Sprint(song.Year); year != "" && year != "<nil>" {
			r.SetField("release_date", year)
		}
		meta := map[string]any{}
		if song.Rating > 0 {
			meta["rating"] = song.Rating
		}
		if id := fmt.Sprint(song.SongID); id != "" && id != "<nil>" {
			meta["song_id"] = id
		}
		if len(meta) > 0 {
			r.SetField("metadata", meta)
		}
		results = append(results, r)
	}
	return results, nil
}

func rpMatches(song *rpSong, query string) bool {
	return strings.Contains(strings.ToLower(song.Artist), query) ||
		strings.Contains(strings.ToLower(song.Title), query) ||
		strings.Contains(strings.ToLower(song.Album), query)
}

func rpCoverURL(cover string) string {
	if cover == "" {
		return ""
	}
	if !strings.HasPrefix(cover, "http") {
		cover = "https://img.radioparadise.com/" + cover
	}
	return strings.Replace(cover, "s.jpg", "m.jpg", 1)
}
