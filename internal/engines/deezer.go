package engines

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"

	"melodex/internal/schema"
)

const deezerAPIURL = "https://api.deezer.com"

// Deezer searches the public Deezer catalog. No credentials required.
type Deezer struct {
	enabled  bool
	pageSize int
}

type deezerTrack struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Duration int    `json:"duration"` // seconds
	Preview  string `json:"preview"`
	Rank     int64  `json:"rank"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
		Cover string `json:"cover_medium"`
	} `json:"album"`
}

type deezerResponse struct {
	Data []deezerTrack `json:"data"`
}

func NewDeezer(enabled bool) *Deezer {
	return &Deezer{enabled: enabled, pageSize: 25}
}

func (d *Deezer) Descriptor() Descriptor {
	return Descriptor{
		Name:        "deezer",
		DisplayName: "Deezer",
		Shortcut:    "dz",
		Features:    []string{"search", "preview", "paging"},
		Timeout:     10 * time.Second,
		RateLimit:   50,
		RatePeriod:  5 * time.Second,
		CacheTTL:    24 * time.Hour,
		Enabled:     d.enabled,
	}
}

func (d *Deezer) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	args := url.Values{
		"q":     {query},
		"index": {fmt.Sprint((p.Page() - 1) * d.pageSize)},
	}
	return &Request{
		URL:     deezerAPIURL + "/search?" + args.Encode(),
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

func (d *Deezer) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload deezerResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "deezer", Operation: "parse", Err: err}
	}
	results := make([]schema.RawResult, 0, len(payload.Data))
	for _, track := range payload.Data {
		if track.Title == "" || track.Link == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "deezer",
			EngineName: "Deezer",
			Title:      track.Title,
			URL:        track.Link,
		}
		r.SetField("artist", track.Artist.Name)
		r.SetField("album", track.Album.Title)
		if track.Duration > 0 {
			r.SetField("duration", track.Duration)
		}
		r.SetField("thumbnail", track.Album.Cover)
		r.SetField("preview_url", track.Preview)
		r.SetField("external_id", fmt.Sprint(track.ID))
		if track.Rank > 0 {
			r.SetField("metadata", map[string]any{"rank": track.Rank})
		}
		results = append(results, r)
	}
	return results, nil
}
