package engines

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"

	"melodex/internal/schema"
)

const jamendoAPIURL = "https://api.jamendo.com/v3.0"

// Jamendo serves Creative-Commons music through a JSON API keyed by a
// client ID.
type Jamendo struct {
	clientID string
	enabled  bool
	pageSize int
}

type jamendoTrack struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ArtistName  string  `json:"artist_name"`
	AlbumName   string  `json:"album_name"`
	Duration    float64 `json:"duration"`
	ReleaseDate string  `json:"releasedate"`
	ShareURL    string  `json:"shareurl"`
	Audio       string  `json:"audio"`
	Image       string  `json:"image"`
	License     string  `json:"license_ccurl"`
}

type jamendoResponse struct {
	Results []jamendoTrack `json:"results"`
}

func NewJamendo(clientID string, enabled bool) *Jamendo {
	return &Jamendo{clientID: clientID, enabled: enabled && clientID != "", pageSize: 20}
}

func (j *Jamendo) Descriptor() Descriptor {
	return Descriptor{
		Name:           "jamendo",
		DisplayName:    "Jamendo",
		Shortcut:       "jam",
		Features:       []string{"search", "audio", "paging"},
		Timeout:        10 * time.Second,
		RateLimit:      30,
		RatePeriod:     time.Minute,
		CacheTTL:       24 * time.Hour,
		Enabled:        j.enabled,
		RequiresAPIKey: true,
	}
}

func (j *Jamendo) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	if j.clientID == "" {
		return nil, &AdapterError{Engine: "jamendo", Operation: "auth", Err: fmt.Errorf("client ID not configured")}
	}
	limit := p.Limit
	if limit <= 0 || limit > j.pageSize {
		limit = j.pageSize
	}
	args := url.Values{
		"client_id": {j.clientID},
		"format":    {"json"},
		"search":    {query},
		"limit":     {fmt.Sprint(limit)},
		"offset":    {fmt.Sprint((p.Page() - 1) * j.pageSize)},
		"include":   {"licenses"},
	}
	return &Request{
		URL:     jamendoAPIURL + "/tracks/?" + args.Encode(),
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

func (j *Jamendo) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload jamendoResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "jamendo", Operation: "parse", Err: err}
	}
	results := make([]schema.RawResult, 0, len(payload.Results))
	for _, track := range payload.Results {
		if track.Name == "" || track.ShareURL == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "jamendo",
			EngineName: "Jamendo",
			Title:      track.Name,
			URL:        track.ShareURL,
		}
		r.SetField("artist", track.ArtistName)
		r.SetField("album", track.AlbumName)
		if track.Duration > 0 {
			r.SetField("duration", track.Duration)
		}
		r.SetField("release_date", track.ReleaseDate)
		r.SetField("thumbnail", track.Image)
		r.SetField("audio_url", track.Audio)
		r.SetField("external_id", track.ID)
		if track.License != "" {
			r.SetField("metadata", map[string]any{"license": track.License})
		}
		results = append(results, r)
	}
	return results, nil
}
