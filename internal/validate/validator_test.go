package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodex/internal/schema"
)

func TestSearchInput(t *testing.T) {
	known := map[string]bool{"deezer": true, "bandcamp": true}

	tests := []struct {
		name      string
		query     string
		engines   []string
		wantField string
	}{
		{name: "valid", query: "daft punk", engines: []string{"deezer"}},
		{name: "too short", query: "x", wantField: "query"},
		{name: "whitespace only", query: "   ", wantField: "query"},
		{name: "too long", query: strings.Repeat("a", 201), wantField: "query"},
		{name: "script tag", query: "<script>alert(1)</script>", wantField: "query"},
		{name: "javascript scheme", query: "javascript:alert(1)", wantField: "query"},
		{name: "event handler", query: "onload=steal()", wantField: "query"},
		{name: "unknown engine", query: "daft punk", engines: []string{"napster"}, wantField: "engines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SearchInput(tt.query, tt.engines, known)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.wantField, invalid.Field)
		})
	}
}

func TestSanitizeTextNeverLeaksDangerousPatterns(t *testing.T) {
	inputs := []string{
		"Get Lucky <script>alert(1)</script>",
		"Get Lucky <SCRIPT src=x>alert(1)</SCRIPT> remix",
		"javascript:alert(1)",
		"click onload=steal() here",
		"data:text/html,<b>x</b>",
		// Entity-encoded payloads decode first, then get stripped.
		"&lt;script&gt;alert(1)&lt;/script&gt;Get Lucky",
	}
	for _, input := range inputs {
		out := SanitizeText(input)
		assert.False(t, containsDangerous(out), "sanitized output still dangerous: %q -> %q", input, out)
	}
}

func TestSanitizeTextNormalizes(t *testing.T) {
	assert.Equal(t, "Beyoncé", SanitizeText("Beyonc&eacute;"))
	assert.Equal(t, "Get Lucky", SanitizeText("  Get \n\t Lucky  "))
	assert.Equal(t, "", SanitizeText(""))
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "https passes", in: "https://deezer.com/track/1", want: "https://deezer.com/track/1"},
		{name: "http passes", in: "http://deezer.com/track/1", want: "http://deezer.com/track/1"},
		{name: "ftp rejected", in: "ftp://deezer.com/track/1", want: ""},
		{name: "javascript rejected", in: "javascript:alert(1)", want: ""},
		{name: "embedded javascript rejected", in: "https://x.com/?u=javascript:alert(1)", want: ""},
		{name: "data rejected", in: "https://x.com/redirect?to=data:text/html", want: ""},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}

	long := "https://example.com/" + strings.Repeat("a", MaxURLLength)
	assert.Len(t, SanitizeURL(long), MaxURLLength)
}

func TestSanitizeResultCaps(t *testing.T) {
	r := schema.RawResult{
		Engine:  "deezer",
		Title:   strings.Repeat("t", MaxTitleLength+100),
		Content: strings.Repeat("c", MaxContentLength+100),
		URL:     "https://deezer.com/track/1",
	}
	r.SetField("artist", "Daft Punk <script>alert(1)</script>")
	r.SetField("duration", "3:45")
	r.SetField("thumbnail", "javascript:alert(1)")

	SanitizeResult(&r)

	assert.Len(t, r.Title, MaxTitleLength)
	assert.Len(t, r.Content, MaxContentLength)
	assert.Equal(t, "Daft Punk", r.Field("artist"))
	assert.Equal(t, 225000, r.Fields["duration"])
	assert.Equal(t, "", r.Fields["thumbnail"])
}

func TestSanitizeResultDropsBadDuration(t *testing.T) {
	r := schema.RawResult{Engine: "deezer", Title: "Track", URL: "https://deezer.com/track/1"}
	r.SetField("duration", "not a duration")

	SanitizeResult(&r)

	_, ok := r.Fields["duration"]
	assert.False(t, ok)
}

func TestSanitizeResultMetadataCaps(t *testing.T) {
	list := make([]any, 0, 25)
	for i := 0; i < 25; i++ {
		list = append(list, "tag")
	}
	nested := make(map[string]any, 15)
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o"} {
		nested[k] = "v"
	}

	r := schema.RawResult{Engine: "deezer", Title: "Track", URL: "https://deezer.com/track/1"}
	r.SetField("metadata", map[string]any{
		"tags":    list,
		"extra":   nested,
		"rank":    42,
		"payload": "safe <script>alert(1)</script> value",
		strings.Repeat("k", 80): "long key",
	})

	SanitizeResult(&r)

	meta, ok := r.Fields["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, meta["tags"], maxMetadataList)
	assert.Len(t, meta["extra"], maxNestedDictSize)
	assert.Equal(t, 42, meta["rank"])
	assert.Equal(t, "safe value", meta["payload"])

	for key := range meta {
		assert.LessOrEqual(t, len(key), maxMetadataKey)
	}
}

func TestNormalizeDuration(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{name: "seconds", in: 248, want: 248000, ok: true},
		{name: "milliseconds", in: 248000, want: 248000, ok: true},
		{name: "float seconds", in: 225.0, want: 225000, ok: true},
		{name: "mm:ss", in: "3:45", want: 225000, ok: true},
		{name: "hh:mm:ss", in: "1:02:03", want: 3723000, ok: true},
		{name: "too short", in: "0:00", ok: false},
		{name: "too long", in: 15000000, ok: false},
		{name: "garbage", in: "soon", ok: false},
		{name: "unsupported type", in: []string{"3:45"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDuration(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidISRC(t *testing.T) {
	assert.True(t, ValidISRC(""))
	assert.True(t, ValidISRC("USRC17607839"))
	assert.True(t, ValidISRC("US-RC1-76-07839"))
	assert.True(t, ValidISRC("usrc17607839"))
	assert.False(t, ValidISRC("NOT-AN-ISRC"))
	assert.False(t, ValidISRC("USRC176078390"))
}

func TestNormalizedOK(t *testing.T) {
	valid := schema.NormalizedResult{
		Title:      "Get Lucky",
		URL:        "https://deezer.com/track/1",
		DurationMs: 248000,
	}
	assert.True(t, NormalizedOK(&valid))

	tests := []struct {
		name   string
		mutate func(n *schema.NormalizedResult)
	}{
		{name: "empty title", mutate: func(n *schema.NormalizedResult) { n.Title = "" }},
		{name: "empty url", mutate: func(n *schema.NormalizedResult) { n.URL = "" }},
		{name: "bad scheme", mutate: func(n *schema.NormalizedResult) { n.URL = "ftp://x.com/1" }},
		{name: "no host", mutate: func(n *schema.NormalizedResult) { n.URL = "https:///track/1" }},
		{name: "duration too short", mutate: func(n *schema.NormalizedResult) { n.DurationMs = 500 }},
		{name: "duration too long", mutate: func(n *schema.NormalizedResult) { n.DurationMs = MaxDurationMs + 1 }},
		{name: "bad isrc", mutate: func(n *schema.NormalizedResult) { n.ISRC = "BOGUS" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.mutate(&n)
			assert.False(t, NormalizedOK(&n))
		})
	}

	// Zero duration means unknown, which is acceptable.
	unknown := valid
	unknown.DurationMs = 0
	assert.True(t, NormalizedOK(&unknown))
}

func TestForStorage(t *testing.T) {
	valid := StorageRecord{
		Title:      "Get Lucky",
		DurationMs: 248000,
		ISRC:       "USRC17607839",
		URLs:       map[string]string{"url": "https://deezer.com/track/1"},
	}
	assert.Empty(t, ForStorage(&valid))

	bad := StorageRecord{
		Title:      strings.Repeat("t", MaxTitleLength+1),
		DurationMs: 500,
		ISRC:       "BOGUS",
		URLs:       map[string]string{"thumbnail": "not a url"},
	}
	errs := ForStorage(&bad)
	require.Len(t, errs, 4)

	var titleProblem bool
	for _, err := range errs {
		if strings.Contains(err.Error(), "title too long") {
			titleProblem = true
		}
	}
	assert.True(t, titleProblem)

	missing := StorageRecord{}
	errs = ForStorage(&missing)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "title is required")
}

func TestPrepareForStorage(t *testing.T) {
	rec := StorageRecord{
		Title: strings.Repeat("t", MaxTitleLength+50),
		URLs:  map[string]string{"url": "https://example.com/" + strings.Repeat("a", MaxURLLength)},
	}
	PrepareForStorage(&rec)

	assert.Len(t, rec.Title, MaxTitleLength)
	assert.Len(t, rec.URLs["url"], MaxURLLength)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.UpdatedAt.IsZero())

	// A second pass keeps the original creation time.
	created := rec.CreatedAt
	PrepareForStorage(&rec)
	assert.Equal(t, created, rec.CreatedAt)
}
