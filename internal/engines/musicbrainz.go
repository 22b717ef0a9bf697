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

const (
	musicbrainzAPIURL = "https://musicbrainz.org/ws/2"
	musicbrainzWebURL = "https://musicbrainz.org"
	musicbrainzUA     = "melodex/1.0 (https://github.com/melodex)"
)

// MusicBrainz searches the open music encyclopedia. No key needed, but the
// service requires a descriptive User-Agent and allows one request per
// second, which the descriptor's rate limit encodes.
type MusicBrainz struct {
	enabled  bool
	pageSize int
}

type mbArtistCredit struct {
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		Name string `json:"name"`
	} `json:"artist"`
}

type mbRecording struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Length         int              `json:"length"` // milliseconds
	Disambiguation string           `json:"disambiguation"`
	ArtistCredit   []mbArtistCredit `json:"artist-credit"`
	ISRCs          []string         `json:"isrcs"`
	Releases       []struct {
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"releases"`
}

type mbRelease struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Date         string           `json:"date"`
	Country      string           `json:"country"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
}

type mbArtist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Disambiguation string `json:"disambiguation"`
	Area           *struct {
		Name string `json:"name"`
	} `json:"area"`
}

type mbResponse struct {
	Recordings []mbRecording `json:"recordings"`
	Releases   []mbRelease   `json:"releases"`
	Artists    []mbArtist    `json:"artists"`
}

func NewMusicBrainz(enabled bool) *MusicBrainz {
	return &MusicBrainz{enabled: enabled, pageSize: 20}
}

func (m *MusicBrainz) Descriptor() Descriptor {
	return Descriptor{
		Name:        "musicbrainz",
		DisplayName: "MusicBrainz",
		Shortcut:    "mb",
		Features:    []string{"search", "isrc", "paging"},
		Timeout:     10 * time.Second,
		RateLimit:   1,
		RatePeriod:  time.Second,
		CacheTTL:    7 * 24 * time.Hour,
		Enabled:     m.enabled,
	}
}

// BuildRequest searches recordings by default. "artist:" and "album:" (or
// "release:") prefixes switch the entity type.
func (m *MusicBrainz) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	entity := "recording"
	switch {
	case strings.HasPrefix(query, "artist:"):
		entity = "artist"
		query = strings.TrimSpace(strings.TrimPrefix(query, "artist:"))
	case strings.HasPrefix(query, "album:"):
		entity = "release"
		query = strings.TrimSpace(strings.TrimPrefix(query, "album:"))
	case strings.HasPrefix(query, "release:"):
		entity = "release"
		query = strings.TrimSpace(strings.TrimPrefix(query, "release:"))
	}
	args := url.Values{
		"query":  {query},
		"fmt":    {"json"},
		"limit":  {fmt.Sprint(m.pageSize)},
		"offset": {fmt.Sprint((p.Page() - 1) * m.pageSize)},
	}
	return &Request{
		URL: fmt.Sprintf("%s/%s/?%s", musicbrainzAPIURL, entity, args.Encode()),
		Headers: map[string]string{
			"User-Agent": musicbrainzUA,
			"Accept":     "application/json",
		},
	}, nil
}

func (m *MusicBrainz) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload mbResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "musicbrainz", Operation: "parse", Err: err}
	}
	switch {
	case len(payload.Recordings) > 0:
		return m.parseRecordings(payload.Recordings), nil
	case len(payload.Releases) > 0:
		return m.parseReleases(payload.Releases), nil
	case len(payload.Artists) > 0:
		return m.parseArtists(payload.Artists), nil
	}
	return nil, nil
}

func (m *MusicBrainz) parseRecordings(recordings []mbRecording) []schema.RawResult {
	results := make([]schema.RawResult, 0, len(recordings))
	for _, rec := range recordings {
		if rec.Title == "" || rec.ID == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "musicbrainz",
			EngineName: "MusicBrainz",
			Title:      rec.Title,
			URL:        musicbrainzWebURL + "/recording/" + rec.ID,
			Content:    rec.Disambiguation,
		}
		r.SetField("artist", creditString(rec.ArtistCredit))
		if rec.Length > 0 {
			r.SetField("duration", rec.Length)
		}
		if len(rec.Releases) > 0 {
			r.SetField("album", rec.Releases[0].Title)
			r.SetField("release_date", rec.Releases[0].Date)
		}
		if len(rec.ISRCs) > 0 {
			r.SetField("isrc", rec.ISRCs[0])
		}
		r.SetField("external_id", rec.ID)
		results = append(results, r)
	}
	return results
}

func (m *MusicBrainz) parseReleases(releases []mbRelease) []schema.RawResult {
	results := make([]schema.RawResult, 0, len(releases))
	for _, rel := range releases {
		if rel.Title == "" || rel.ID == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "musicbrainz",
			EngineName: "MusicBrainz",
			Title:      rel.Title,
			URL:        musicbrainzWebURL + "/release/" + rel.ID,
		}
		r.SetField("artist", creditString(rel.ArtistCredit))
		r.SetField("album", rel.Title)
		r.SetField("release_date", rel.Date)
		r.SetField("external_id", rel.ID)
		if rel.Country != "" {
			r.SetField("metadata", map[string]any{"country": rel.Country})
		}
		results = append(results, r)
	}
	return results
}

func (m *MusicBrainz) parseArtists(artists []mbArtist) []schema.RawResult {
	results := make([]schema.RawResult, 0, len(artists))
	for _, artist := range artists {
		if artist.Name == "" || artist.ID == "" {
			continue
		}
		var parts []string
		if artist.Type != "" {
			parts = append(parts, "Type: "+artist.Type)
		}
		if artist.Area != nil && artist.Area.Name != "" {
			parts = append(parts, "Area: "+artist.Area.Name)
		}
		content := strings.Join(parts, " • ")
		if content == "" {
			content = artist.Disambiguation
		}
		r := schema.RawResult{
			Engine:     "musicbrainz",
			EngineName: "MusicBrainz",
			Title:      artist.Name,
			URL:        musicbrainzWebURL + "/artist/" + artist.ID,
			Content:    content,
		}
		r.SetField("external_id", artist.ID)
		results = append(results, r)
	}
	return results
}

// creditString joins a MusicBrainz artist-credit list with its join
// phrases ("Artist feat. Other").
func creditString(credits []mbArtistCredit) string {
	var b strings.Builder
	for _, credit := range credits {
		b.WriteString(credit.Artist.Name)
		b.WriteString(credit.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}
