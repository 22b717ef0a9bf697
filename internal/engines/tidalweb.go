package engines

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	gojson "github.com/goccy/go-json"

	"melodex/internal/schema"
)

const tidalBaseURL = "https://listen.tidal.com"

// TidalWeb scrapes Tidal's web search page. The page is a React app that
// embeds its state as JSON in a script tag, so the primary path extracts
// window.__INITIAL_STATE__ with a brace-balanced scan and walks it; plain
// HTML scraping is the fallback.
type TidalWeb struct {
	enabled bool
}

var tidalStateMarkers = []string{
	"window.__INITIAL_STATE__",
	"window.__PRELOADED_STATE__",
}

var tidalSearchPaths = [][]string{
	{"search", "results"},
	{"searchResults"},
	{"content", "searchResults"},
	{"pages", "search", "results"},
}

func NewTidalWeb(enabled bool) *TidalWeb {
	return &TidalWeb{enabled: enabled}
}

func (t *TidalWeb) Descriptor() Descriptor {
	return Descriptor{
		Name:        "tidalweb",
		DisplayName: "Tidal",
		Shortcut:    "td",
		Features:    []string{"search", "lossless"},
		Timeout:     15 * time.Second,
		RateLimit:   10,
		RatePeriod:  time.Minute,
		CacheTTL:    24 * time.Hour,
		Enabled:     t.enabled,
	}
}

func (t *TidalWeb) BuildRequest(_ context.Context, query string, _ SearchParams) (*Request, error) {
	return &Request{
		URL: tidalBaseURL + "/search?q=" + url.QueryEscape(query),
		Headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}, nil
}

func (t *TidalWeb) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}

	if results := t.parseEmbeddedState(resp.Body); len(results) > 0 {
		return results, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &AdapterError{Engine: "tidalweb", Operation: "parse", Err: err}
	}
	return t.parseHTML(doc), nil
}

func (t *TidalWeb) parseEmbeddedState(body []byte) []schema.RawResult {
	for _, marker := range tidalStateMarkers {
		raw, ok := extractAssignedJSON(body, marker)
		if !ok {
			continue
		}
		var state map[string]any
		if err := gojson.Unmarshal(raw, &state); err != nil {
			continue
		}
		for _, path := range tidalSearchPaths {
			if section, ok := walkPath(state, path); ok {
				if results := t.parseSearchSection(section); len(results) > 0 {
					return results
				}
			}
		}
	}
	return nil
}

func (t *TidalWeb) parseSearchSection(section map[string]any) []schema.RawResult {
	var results []schema.RawResult
	for _, track := range itemList(section, "tracks", 5) {
		if r, ok := t.parseTrack(track); ok {
			results = append(results, r)
		}
	}
	for _, album := range itemList(section, "albums", 3) {
		if r, ok := t.parseAlbum(album); ok {
			results = append(results, r)
		}
	}
	return results
}

func (t *TidalWeb) parseTrack(track map[string]any) (schema.RawResult, bool) {
	title, _ := track["title"].(string)
	id := anyID(track["id"])
	if title == "" || id == "" {
		return schema.RawResult{}, false
	}
	r := schema.RawResult{
		Engine:     "tidalweb",
		EngineName: "Tidal",
		Title:      title,
		URL:        tidalBaseURL + "/track/" + id,
	}
	artists := tidalArtists(track)
	if len(artists) > 0 {
		r.SetField("artist", artists[0])
	}
	if album, ok := track["album"].(map[string]any); ok {
		if name, ok := album["title"].(string); ok {
			r.SetField("album", name)
		}
	}
	if duration, ok := track["duration"].(float64); ok && duration > 0 {
		r.SetField("duration", int(duration))
	}
	if cover, ok := track["cover"].(string); ok {
		r.SetField("thumbnail", tidalImageURL(cover))
	}
	r.SetField("external_id", id)
	meta := map[string]any{}
	if quality, ok := track["audioQuality"].(string); ok && quality != "" {
		meta["audio_quality"] = quality
		meta["lossless"] = strings.Contains(quality, "LOSSLESS")
	}
	if len(meta) > 0 {
		r.SetField("metadata", meta)
	}
	return r, true
}

func (t *TidalWeb) parseAlbum(album map[string]any) (schema.RawResult, bool) {
	title, _ := album["title"].(string)
	id := anyID(album["id"])
	if title == "" || id == "" {
		return schema.RawResult{}, false
	}
	r := schema.RawResult{
		Engine:     "tidalweb",
		EngineName: "Tidal",
		Title:      title,
		URL:        tidalBaseURL + "/album/" + id,
	}
	artists := tidalArtists(album)
	if len(artists) > 0 {
		r.SetField("artist", artists[0])
	}
	r.SetField("album", title)
	if date, ok := album["releaseDate"].(string); ok {
		r.SetField("release_date", date)
	}
	if cover, ok := album["cover"].(string); ok {
		r.SetField("thumbnail", tidalImageURL(cover))
	}
	r.SetField("external_id", id)
	return r, true
}

func (t *TidalWeb) parseHTML(doc *goquery.Document) []schema.RawResult {
	var results []schema.RawResult
	doc.Find(`a[href*="/track/"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 10 {
			return false
		}
		href, _ := sel.Attr("href")
		title := strings.TrimSpace(sel.Text())
		if href == "" || title == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = tidalBaseURL + href
		}
		r := schema.RawResult{
			Engine:     "tidalweb",
			EngineName: "Tidal",
			Title:      title,
			URL:        href,
		}
		parent := sel.Closest("div")
		if artist := strings.TrimSpace(parent.Find(`a[href*="/artist/"]`).First().Text()); artist != "" {
			r.SetField("artist", artist)
		}
		if duration := strings.TrimSpace(parent.Find("time, span.duration").First().Text()); duration != "" {
			r.SetField("duration", duration)
		}
		results = append(results, r)
		return true
	})
	return results
}

// extractAssignedJSON finds `marker = {...}` in a script body and returns
// the balanced JSON object. A naive regex breaks on nested braces, so this
// walks the bytes tracking string and escape state.
func extractAssignedJSON(body []byte, marker string) ([]byte, bool) {
	idx := bytes.Index(body, []byte(marker))
	if idx < 0 {
		return nil, false
	}
	rest := body[idx+len(marker):]
	eq := bytes.IndexByte(rest, '=')
	if eq < 0 {
		return nil, false
	}
	rest = bytes.TrimLeft(rest[eq+1:], " \t\r\n")
	if len(rest) == 0 || rest[0] != '{' {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i, c := range rest {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return rest[:i+1], true
				}
			}
		}
	}
	return nil, false
}

func walkPath(data map[string]any, path []string) (map[string]any, bool) {
	current := data
	for _, key := range path {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// itemList pulls section[key] as a list, unwrapping the {items: [...]}
// shape Tidal sometimes uses, capped at limit entries.
func itemList(section map[string]any, key string, limit int) []map[string]any {
	value, ok := section[key]
	if !ok {
		return nil
	}
	if wrapped, ok := value.(map[string]any); ok {
		value = wrapped["items"]
	}
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range list {
		if len(out) >= limit {
			break
		}
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func tidalArtists(item map[string]any) []string {
	var names []string
	if list, ok := item["artists"].([]any); ok {
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				if name, ok := m["name"].(string); ok && name != "" {
					names = append(names, name)
				}
			}
		}
	}
	if len(names) == 0 {
		if m, ok := item["artist"].(map[string]any); ok {
			if name, ok := m["name"].(string); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func tidalImageURL(cover string) string {
	if cover == "" || strings.HasPrefix(cover, "http") {
		return cover
	}
	return fmt.Sprintf("https://resources.tidal.com/images/%s/320x320.jpg",
		strings.ReplaceAll(cover, "-", "/"))
}

func anyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	}
	return ""
}
