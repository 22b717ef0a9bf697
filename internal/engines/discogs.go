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

const discogsAPIURL = "https://api.discogs.com"

// Discogs searches the Discogs release database. Auth is a personal token
// sent in the Authorization header.
type Discogs struct {
	token    string
	enabled  bool
	pageSize int
}

type discogsResult struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"` // "Artist - Title"
	Year       string   `json:"year"`
	URI        string   `json:"uri"`
	CoverImage string   `json:"cover_image"`
	Genre      []string `json:"genre"`
	Style      []string `json:"style"`
	Country    string   `json:"country"`
	Format     []string `json:"format"`
}

type discogsResponse struct {
	Results []discogsResult `json:"results"`
}

func NewDiscogs(token string, enabled bool) *Discogs {
	return &Discogs{token: token, enabled: enabled && token != "", pageSize: 20}
}

func (d *Discogs) Descriptor() Descriptor {
	return Descriptor{
		Name:           "discogs",
		DisplayName:    "Discogs",
		Shortcut:       "dc",
		Features:       []string{"search", "paging"},
		Timeout:        10 * time.Second,
		RateLimit:      60,
		RatePeriod:     time.Minute,
		CacheTTL:       24 * time.Hour,
		Enabled:        d.enabled,
		RequiresAPIKey: true,
	}
}

func (d *Discogs) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	if d.token == "" {
		return nil, &AdapterError{Engine: "discogs", Operation: "auth", Err: fmt.Errorf("token not configured")}
	}
	args := url.Values{
		"q":        {query},
		"type":     {"release"},
		"per_page": {fmt.Sprint(d.pageSize)},
		"page":     {fmt.Sprint(p.Page())},
	}
	return &Request{
		URL: discogsAPIURL + "/database/search?" + args.Encode(),
		Headers: map[string]string{
			"Authorization": "Discogs token=" + d.token,
			"Accept":        "application/json",
		},
	}, nil
}

func (d *Discogs) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload discogsResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "discogs", Operation: "parse", Err: err}
	}
	results := make([]schema.RawResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		if item.Title == "" || item.URI == "" {
			continue
		}
		link := item.URI
		if !strings.HasPrefix(link, "http") {
			link = "https://www.discogs.com" + link
		}

		// Discogs packs "Artist - Title" into one field.
		artist, title := splitDashTitle(item.Title)

		r := schema.RawResult{
			Engine:     "discogs",
			EngineName: "Discogs",
			Title:      title,
			URL:        link,
		}
		r.SetField("artist", artist)
		r.SetField("release_date", item.Year)
		r.SetField("thumbnail", item.CoverImage)
		r.SetField("external_id", fmt.Sprint(item.ID))
		if len(item.Genre) > 0 || len(item.Style) > 0 {
			r.SetField("genres", append(append([]string{}, item.Genre...), item.Style...))
		}
		meta := map[string]any{}
		if item.Country != "" {
			meta["country"] = item.Country
		}
		if len(item.Format) > 0 {
			meta["format"] = strings.Join(item.Format, ", ")
		}
		if len(meta) > 0 {
			r.SetField("metadata", meta)
		}
		results = append(results, r)
	}
	return results, nil
}

func splitDashTitle(combined string) (artist, title string) {
	if idx := strings.Index(combined, " - "); idx > 0 {
		return strings.TrimSpace(combined[:idx]), strings.TrimSpace(combined[idx+3:])
	}
	return "", combined
}
