package engines

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"

	"melodex/internal/schema"
)

const geniusAPIURL = "https://api.genius.com"

// Genius returns song metadata and lyrics-page links. The classifier tags
// everything from this engine as lyrics, so it only surfaces when a caller
// opts into that content type.
type Genius struct {
	accessToken string
	enabled     bool
	pageSize    int
}

type geniusHit struct {
	Type   string `json:"type"`
	Result struct {
		Title       string `json:"title"`
		ArtistNames string `json:"artist_names"`
		URL         string `json:"url"`
		ID          int64  `json:"id"`
		ReleaseDate string `json:"release_date_for_display"`
		Thumbnail   string `json:"song_art_image_thumbnail_url"`
		Album       *struct {
			Name string `json:"name"`
		} `json:"album"`
		Stats struct {
			Pageviews int64 `json:"pageviews"`
			Hot       bool  `json:"hot"`
		} `json:"stats"`
	} `json:"result"`
}

type geniusResponse struct {
	Response struct {
		Hits []geniusHit `json:"hits"`
	} `json:"response"`
}

func NewGenius(accessToken string, enabled bool) *Genius {
	return &Genius{accessToken: accessToken, enabled: enabled && accessToken != "", pageSize: 20}
}

func (g *Genius) Descriptor() Descriptor {
	return Descriptor{
		Name:           "genius",
		DisplayName:    "Genius",
		Shortcut:       "gen",
		Features:       []string{"search", "lyrics", "paging"},
		Timeout:        10 * time.Second,
		RateLimit:      30,
		RatePeriod:     time.Minute,
		CacheTTL:       24 * time.Hour,
		Enabled:        g.enabled,
		RequiresAPIKey: true,
	}
}

func (g *Genius) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	if g.accessToken == "" {
		return nil, &AdapterError{Engine: "genius", Operation: "auth", Err: fmt.Errorf("access token not configured")}
	}
	args := url.Values{
		"q":           {query},
		"per_page":    {fmt.Sprint(g.pageSize)},
		"page":        {fmt.Sprint(p.Page())},
		"text_format": {"plain"},
	}
	return &Request{
		URL: geniusAPIURL + "/search?" + args.Encode(),
		Headers: map[string]string{
			"Authorization": "Bearer " + g.accessToken,
			"Accept":        "application/json",
		},
	}, nil
}

func (g *Genius) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode == 401 {
		return nil, &AdapterError{Engine: "genius", Operation: "auth", Err: fmt.Errorf("invalid access token")}
	}
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload geniusResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "genius", Operation: "parse", Err: err}
	}
	results := make([]schema.RawResult, 0, len(payload.Response.Hits))
	for _, hit := range payload.Response.Hits {
		if hit.Type != "song" || hit.Result.URL == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "genius",
			EngineName: "Genius",
			Title:      hit.Result.Title,
			URL:        hit.Result.URL,
		}
		r.SetField("artist", hit.Result.ArtistNames)
		if hit.Result.Album != nil {
			r.SetField("album", hit.Result.Album.Name)
		}
		r.SetField("release_date", hit.Result.ReleaseDate)
		r.SetField("thumbnail", hit.Result.Thumbnail)
		r.SetField("external_id", fmt.Sprint(hit.Result.ID))
		meta := map[string]any{}
		if hit.Result.Stats.Pageviews > 0 {
			meta["pageviews"] = hit.Result.Stats.Pageviews
		}
		if hit.Result.Stats.Hot {
			meta["hot"] = true
		}
		if len(meta) > 0 {
			r.SetField("metadata", meta)
		}
		results = append(results, r)
	}
	return results, nil
}
