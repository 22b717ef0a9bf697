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

const bandcampBaseURL = "https://bandcamp.com"

// Bandcamp scrapes the public search page. Only track and album results
// are kept; artist and label hits carry no playable content.
type Bandcamp struct {
	enabled bool
}

func NewBandcamp(enabled bool) *Bandcamp {
	return &Bandcamp{enabled: enabled}
}

func (b *Bandcamp) Descriptor() Descriptor {
	return Descriptor{
		Name:        "bandcamp",
		DisplayName: "Bandcamp",
		Shortcut:    "bc",
		Features:    []string{"search", "paging"},
		Timeout:     10 * time.Second,
		RateLimit:   20,
		RatePeriod:  time.Minute,
		CacheTTL:    24 * time.Hour,
		Enabled:     b.enabled,
	}
}

func (b *Bandcamp) BuildRequest(_ context.Context, query string, p SearchParams) (*Request, error) {
	args := url.Values{
		"q":    {query},
		"page": {fmt.Sprint(p.Page())},
	}
	return &Request{
		URL: bandcampBaseURL + "/search?" + args.Encode(),
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (compatible; melodex/1.0)",
			"Accept":     "text/html,application/xhtml+xml",
		},
	}, nil
}

func (b *Bandcamp) ParseResponse(resp *Response, _ SearchParams) ([]schema.RawResult, error) {
	if resp.StatusCode != 200 {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &AdapterError{Engine: "bandcamp", Operation: "parse", Err: err}
	}

	var results []schema.RawResult
	doc.Find("li.searchresult").Each(func(_ int, item *goquery.Selection) {
		itemType := strings.ToUpper(strings.TrimSpace(item.Find(".itemtype").First().Text()))
		if itemType != "TRACK" && itemType != "ALBUM" {
			return
		}

		heading := item.Find(".heading a").First()
		title := strings.TrimSpace(heading.Text())
		href, _ := heading.Attr("href")
		if title == "" || href == "" {
			return
		}
		// Search result links carry tracking query params.
		if idx := strings.Index(href, "?"); idx > 0 {
			href = href[:idx]
		}

		r := schema.RawResult{
			Engine:     "bandcamp",
			EngineName: "Bandcamp",
			Title:      title,
			URL:        href,
		}

		// Subhead reads "by Artist" for tracks, "by Artist" under album too.
		subhead := strings.TrimSpace(item.Find(".subhead").First().Text())
		if artist := strings.TrimSpace(strings.TrimPrefix(subhead, "by ")); artist != "" && artist != subhead {
			r.SetField("artist", artist)
		} else if subhead != "" {
			r.SetField("artist", subhead)
		}

		if itemType == "ALBUM" {
			r.SetField("album", title)
		} else if album := albumFromItemURL(item); album != "" {
			r.SetField("album", album)
		}

		if released := strings.TrimSpace(item.Find(".released").First().Text()); released != "" {
			r.SetField("release_date", strings.TrimSpace(strings.TrimPrefix(released, "released ")))
		}
		if img, ok := item.Find(".art img").First().Attr("src"); ok {
			r.SetField("thumbnail", img)
		}
		if genre := strings.TrimSpace(item.Find(".genre").First().Text()); genre != "" {
			r.SetField("genre", strings.TrimSpace(strings.TrimPrefix(genre, "genre: ")))
		}
		results = append(results, r)
	})
	return results, nil
}

// Track results mention their album in the "from Album" itemurl line.
func albumFromItemURL(item *goquery.Selection) string {
	from := strings.TrimSpace(item.Find(".itemurl").Parent().Find(".fromAlbum").First().Text())
	return from
}
