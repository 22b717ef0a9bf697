package playlist

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"melodex/internal/schema"
)

// Format selects a playlist export encoding.
type Format string

const (
	FormatM3U  Format = "m3u"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Export renders a playlist in the given format and returns the payload
// with its MIME content type.
func Export(p *schema.UniversalPlaylist, format Format) ([]byte, string, error) {
	switch format {
	case FormatM3U:
		return []byte(ExportM3U(p)), "audio/x-mpegurl", nil
	case FormatJSON:
		data, err := ExportJSON(p)
		return data, "application/json", err
	case FormatCSV:
		data, err := ExportCSV(p)
		return data, "text/csv", err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportM3U renders the extended M3U form: one EXTINF line per track
// followed by the first playable platform URL. Tracks with no URL anywhere
// are skipped; unknown durations export as -1.
func ExportM3U(p *schema.UniversalPlaylist) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#PLAYLIST:" + p.Name + "\n\n")

	for i := range p.Tracks {
		track := &p.Tracks[i]
		url := track.FirstURL()
		if url == "" {
			continue
		}
		seconds := -1
		if track.DurationMs > 0 {
			seconds = track.DurationMs / 1000
		}
		fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n", seconds, track.Artist, track.Title)
		b.WriteString(url + "\n\n")
	}
	return b.String()
}

// ExportJSON renders the playlist's canonical JSON document.
func ExportJSON(p *schema.UniversalPlaylist) ([]byte, error) {
	return json.MarshalIndent(struct {
		*schema.UniversalPlaylist
		TrackCount int `json:"track_count"`
	}{p, p.TrackCount()}, "", "  ")
}

// ExportCSV renders one row per track: title, artist, platform list, first
// URL.
func ExportCSV(p *schema.UniversalPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"title", "artist", "platforms", "url"}); err != nil {
		return nil, err
	}
	for i := range p.Tracks {
		track := &p.Tracks[i]
		names := make([]string, 0, len(track.Platforms))
		for name := range track.Platforms {
			names = append(names, name)
		}
		sort.Strings(names)
		row := []string{track.Title, track.Artist, strings.Join(names, ";"), track.FirstURL()}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
