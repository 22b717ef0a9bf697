package engines

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/oauth2/clientcredentials"

	"melodex/internal/schema"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"
)

// Spotify searches the Spotify catalog using the client-credentials flow.
// The oauth2 token source caches and refreshes the access token itself.
type Spotify struct {
	tokenSource *clientcredentials.Config
	enabled     bool
	pageSize    int
}

type spotifyTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMs int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
	PreviewURL string `json:"preview_url"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
		Images      []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

func NewSpotify(clientID, clientSecret string, enabled bool) *Spotify {
	return &Spotify{
		tokenSource: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		enabled:  enabled && clientID != "" && clientSecret != "",
		pageSize: 20,
	}
}

func (s *Spotify) Descriptor() Descriptor {
	return Descriptor{
		Name:           "spotify",
		DisplayName:    "Spotify",
		Shortcut:       "sp",
		Features:       []string{"search", "isrc", "preview", "paging"},
		Timeout:        10 * time.Second,
		RateLimit:      90,
		RatePeriod:     30 * time.Second,
		CacheTTL:       2 * time.Hour,
		Enabled:        s.enabled,
		RequiresAPIKey: true,
	}
}

func (s *Spotify) BuildRequest(ctx context.Context, query string, p SearchParams) (*Request, error) {
	if s.tokenSource.ClientID == "" || s.tokenSource.ClientSecret == "" {
		return nil, &AdapterError{Engine: "spotify", Operation: "auth", Err: fmt.Errorf("client credentials not configured")}
	}
	token, err := s.tokenSource.Token(ctx)
	if err != nil {
		return nil, &AdapterError{Engine: "spotify", Operation: "auth", Err: err}
	}
	args := url.Values{
		"q":      {query},
		"type":   {"track"},
		"limit":  {fmt.Sprint(s.pageSize)},
		"offset": {fmt.Sprint((p.Page() - 1) * s.pageSize)},
	}
	return &Request{
		URL: spotifyAPIURL + "/search?" + args.Encode(),
		Headers: map[string]string{
			"Authorization": "Bearer " + token.AccessToken,
			"Accept":        "application/json",
		},
	}, nil
}

func (s *Spotify) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload spotifySearchResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "spotify", Operation: "parse", Err: err}
	}
	results := make([]schema.RawResult, 0, len(payload.Tracks.Items))
	for _, track := range payload.Tracks.Items {
		if track.Name == "" || track.ExternalURLs.Spotify == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "spotify",
			EngineName: "Spotify",
			Title:      track.Name,
			URL:        track.ExternalURLs.Spotify,
		}
		if len(track.Artists) > 0 {
			r.SetField("artist", track.Artists[0].Name)
		}
		r.SetField("album", track.Album.Name)
		if track.DurationMs > 0 {
			r.SetField("duration", track.DurationMs)
		}
		if len(track.Album.Images) > 0 {
			r.SetField("thumbnail", track.Album.Images[0].URL)
		}
		r.SetField("release_date", track.Album.ReleaseDate)
		r.SetField("isrc", track.ExternalIDs.ISRC)
		r.SetField("preview_url", track.PreviewURL)
		r.SetField("external_id", track.ID)
		if track.Popularity > 0 {
			// Popularity is 0-100; quality is 0-1.
			r.SetField("quality", float64(track.Popularity)/100.0)
		}
		results = append(results, r)
	}
	return results, nil
}
