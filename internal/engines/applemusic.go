package engines

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"melodex/internal/schema"
)

const appleMusicAPIURL = "https://api.music.apple.com/v1"

// AppleMusic searches the Apple Music catalog. Auth is an ES256 developer
// token signed with the team's private key; tokens last an hour and are
// refreshed five minutes early.
type AppleMusic struct {
	keyID      string
	teamID     string
	privateKey *ecdsa.PrivateKey
	enabled    bool
	pageSize   int

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type appleMusicSong struct {
	ID         string `json:"id"`
	Attributes struct {
		Name             string `json:"name"`
		ArtistName       string `json:"artistName"`
		AlbumName        string `json:"albumName"`
		DurationInMillis int    `json:"durationInMillis"`
		ISRC             string `json:"isrc"`
		ReleaseDate      string `json:"releaseDate"`
		URL              string `json:"url"`
		GenreNames       []string `json:"genreNames"`
		Artwork          struct {
			URL string `json:"url"`
		} `json:"artwork"`
		Previews []struct {
			URL string `json:"url"`
		} `json:"previews"`
	} `json:"attributes"`
}

type appleMusicSearchResponse struct {
	Results struct {
		Songs struct {
			Data []appleMusicSong `json:"data"`
		} `json:"songs"`
	} `json:"results"`
}

// NewAppleMusic parses the PKCS8 PEM key up front; a bad key disables the
// engine instead of failing every search.
func NewAppleMusic(keyID, teamID string, keyPEM []byte, enabled bool) (*AppleMusic, error) {
	a := &AppleMusic{keyID: keyID, teamID: teamID, pageSize: 20}
	if keyID == "" || teamID == "" || len(keyPEM) == 0 {
		return a, nil
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return a, fmt.Errorf("apple music key: no PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return a, fmt.Errorf("apple music key: %w", err)
	}
	ecdsaKey, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return a, fmt.Errorf("apple music key: not ECDSA")
	}
	a.privateKey = ecdsaKey
	a.enabled = enabled
	return a, nil
}

func (a *AppleMusic) Descriptor() Descriptor {
	return Descriptor{
		Name:           "applemusic",
		DisplayName:    "Apple Music",
		Shortcut:       "am",
		Features:       []string{"search", "isrc", "preview", "paging"},
		Timeout:        10 * time.Second,
		RateLimit:      60,
		RatePeriod:     time.Minute,
		CacheTTL:       2 * time.Hour,
		Enabled:        a.enabled,
		RequiresAPIKey: true,
	}
}

func (a *AppleMusic) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	token, err := a.developerToken()
	if err != nil {
		return nil, &AdapterError{Engine: "applemusic", Operation: "auth", Err: err}
	}
	args := url.Values{
		"term":   {query},
		"types":  {"songs"},
		"limit":  {fmt.Sprint(a.pageSize)},
		"offset": {fmt.Sprint((p.Page() - 1) * a.pageSize)},
	}
	return &Request{
		URL: appleMusicAPIURL + "/catalog/us/search?" + args.Encode(),
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Accept":        "application/json",
		},
	}, nil
}

func (a *AppleMusic) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	var payload appleMusicSearchResponse
	if err := gojson.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AdapterError{Engine: "applemusic", Operation: "parse", Err: err}
	}
	songs := payload.Results.Songs.Data
	results := make([]schema.RawResult, 0, len(songs))
	for _, song := range songs {
		attr := song.Attributes
		if attr.Name == "" || attr.URL == "" {
			continue
		}
		r := schema.RawResult{
			Engine:     "applemusic",
			EngineName: "Apple Music",
			Title:      attr.Name,
			URL:        attr.URL,
		}
		r.SetField("artist", attr.ArtistName)
		r.SetField("album", attr.AlbumName)
		if attr.DurationInMillis > 0 {
			r.SetField("duration", attr.DurationInMillis)
		}
		r.SetField("thumbnail", artworkURL(attr.Artwork.URL))
		r.SetField("release_date", attr.ReleaseDate)
		r.SetField("isrc", attr.ISRC)
		if len(attr.Previews) > 0 {
			r.SetField("preview_url", attr.Previews[0].URL)
		}
		if len(attr.GenreNames) > 0 {
			r.SetField("genres", attr.GenreNames)
		}
		r.SetField("external_id", song.ID)
		results = append(results, r)
	}
	return results, nil
}

func (a *AppleMusic) developerToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExpiry) {
		return a.token, nil
	}
	if a.privateKey == nil {
		return "", fmt.Errorf("private key not loaded")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": a.teamID,
		"iat": now.Unix(),
		"exp": now.Add(60 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = a.keyID

	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", err
	}
	a.token = signed
	a.tokenExpiry = now.Add(55 * time.Minute)
	return signed, nil
}

// Apple artwork URLs carry {w}x{h} placeholders.
func artworkURL(template string) string {
	template = strings.ReplaceAll(template, "{w}", "320")
	return strings.ReplaceAll(template, "{h}", "320")
}
