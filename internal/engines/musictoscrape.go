package engines

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"melodex/internal/schema"
)

const musicToScrapeBaseURL = "https://music-to-scrape.org"

// MusicToScrape scrapes the practice site of the same name. Its markup is
// unstable, so extraction tries a list of selectors in priority order and
// falls back to scanning track links.
type MusicToScrape struct {
	enabled bool
}

var mtsItemSelectors = []string{
	"div.track-item",
	"div.album-item",
	"article.music-item",
	"div.song",
	"li.track",
	"div.music-card",
}

var mtsTitleSelectors = []string{
	"h2, h3, h4",
	".title, .track-title, .song-title",
	"a.title",
	"span.title",
}

var mtsArtistSelectors = []string{
	".artist, .artist-name",
	"span.artist",
	"a.artist",
	".by",
}

func NewMusicToScrape(enabled bool) *MusicToScrape {
	return &MusicToScrape{enabled: enabled}
}

func (m *MusicToScrape) Descriptor() Descriptor {
	return Descriptor{
		Name:        "musictoscrape",
		DisplayName: "Music To Scrape",
		Shortcut:    "mts",
		Features:    []string{"search", "paging"},
		Timeout:     10 * time.Second,
		RateLimit:   30,
		RatePeriod:  time.Minute,
		CacheTTL:    24 * time.Hour,
		Enabled:     m.enabled,
	}
}

func (m *MusicToScrape) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	args := url.Values{
		"q":    {query},
		"page": {fmt.Sprint(p.Page())},
	}
	return &Request{
		URL: musicToScrapeBaseURL + "/search?" + args.Encode(),
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (compatible; melodex/1.0)",
			"Accept":     "text/html,application/xhtml+xml",
		},
	}, nil
}

func (m *MusicToScrape) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &AdapterError{Engine: "musictoscrape", Operation: "parse", Err: err}
	}

	items := m.findItems(doc)
	var results []schema.RawResult
	for _, item := range items {
		if len(results) >= 20 {
			break
		}
		if r, ok := m.parseItem(item); ok {
			results = append(results, r)
		}
	}
	if len(results) == 0 {
		results = m.parseGenericLinks(doc)
	}
	return results, nil
}

func (m *MusicToScrape) findItems(doc *goquery.Document) []*goquery.Selection {
	for _, selector := range mtsItemSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return collect(sel)
		}
	}
	if sel := doc.Find("#results div[class]"); sel.Length() > 0 {
		return collect(sel)
	}
	return collect(doc.Find("main article, main div[class]"))
}

func (m *MusicToScrape) parseItem(item *goquery.Selection) (schema.RawResult, bool) {
	title := firstText(item, mtsTitleSelectors)
	if title == "" {
		return schema.RawResult{}, false
	}

	href, _ := item.Find("a[href]").First().Attr("href")
	if href == "" {
		href = "/track/" + url.PathEscape(strings.ReplaceAll(strings.ToLower(title), " ", "-"))
	}
	if !strings.HasPrefix(href, "http") {
		href = musicToScrapeBaseURL + href
	}

	r := schema.RawResult{
		Engine:     "musictoscrape",
		EngineName: "Music To Scrape",
		Title:      title,
		URL:        href,
	}
	if artist := firstText(item, mtsArtistSelectors); artist != "" {
		r.SetField("artist", artist)
	}
	if album := strings.TrimSpace(item.Find(".album").First().Text()); album != "" {
		r.SetField("album", album)
	}
	if duration := strings.TrimSpace(item.Find(".duration, time, span.time").First().Text()); duration != "" {
		r.SetField("duration", duration)
	}
	if genre := strings.TrimSpace(item.Find(".genre").First().Text()); genre != "" {
		r.SetField("genre", genre)
	}
	if img, ok := item.Find("img[src]").First().Attr("src"); ok && img != "" {
		if !strings.HasPrefix(img, "http") {
			img = musicToScrapeBaseURL + img
		}
		r.SetField("thumbnail", img)
	}
	return r, true
}

func (m *MusicToScrape) parseGenericLinks(doc *goquery.Document) []schema.RawResult {
	var results []schema.RawResult
	doc.Find(`a[href*="/track/"], a[href*="/song/"], a[href*="/album/"]`).
		EachWithBreak(func(i int, link *goquery.Selection) bool {
			if i >= 10 {
				return false
			}
			title := strings.TrimSpace(link.Text())
			href, _ := link.Attr("href")
			if title == "" || href == "" {
				return true
			}
			if !strings.HasPrefix(href, "http") {
				href = musicToScrapeBaseURL + href
			}
			r := schema.RawResult{
				Engine:     "musictoscrape",
				EngineName: "Music To Scrape",
				Title:      title,
				URL:        href,
			}
			results = append(results, r)
			return true
		})
	return results
}

func firstText(item *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(item.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func collect(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}
