package engines

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJamendoParse(t *testing.T) {
	body := `{"results":[
		{"id":"168","name":"Get Lucky (Cover)","artist_name":"Some Band",
		 "album_name":"Covers Vol 1","duration":248,"releasedate":"2013-06-01",
		 "shareurl":"https://www.jamendo.com/track/168","audio":"https://mp3.jamendo.com/168",
		 "image":"https://img.jamendo.com/168.jpg","license_ccurl":"https://creativecommons.org/licenses/by/3.0/"},
		{"id":"169","name":"","shareurl":"https://www.jamendo.com/track/169"}
	]}`

	j := NewJamendo("key", true)
	results, err := j.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "jamendo", r.Engine)
	assert.Equal(t, "Get Lucky (Cover)", r.Title)
	assert.Equal(t, "Some Band", r.Field("artist"))
	assert.Equal(t, "Covers Vol 1", r.Field("album"))
	assert.Equal(t, float64(248), r.Fields["duration"])
	assert.Equal(t, "https://mp3.jamendo.com/168", r.Field("audio_url"))
}

func TestJamendoRequiresKey(t *testing.T) {
	j := NewJamendo("", false)
	assert.False(t, j.Descriptor().Enabled)
	_, err := j.BuildRequest(context.Background(), "test", SearchParams{})
	assert.Error(t, err)
}

func TestJamendoBuildRequestPaging(t *testing.T) {
	j := NewJamendo("key", true)
	req, err := j.BuildRequest(context.Background(), "daft punk", SearchParams{PageNo: 3})
	require.NoError(t, err)
	assert.Contains(t, req.URL, "offset=40")
	assert.Contains(t, req.URL, "search=daft+punk")
	assert.Contains(t, req.URL, "client_id=key")
}

func TestDeezerParse(t *testing.T) {
	body := `{"data":[
		{"id":3135556,"title":"Harder, Better, Faster, Stronger",
		 "link":"https://www.deezer.com/track/3135556","duration":224,
		 "preview":"https://cdn.deezer.com/preview.mp3","rank":927924,
		 "artist":{"name":"Daft Punk"},
		 "album":{"title":"Discovery","cover_medium":"https://cdn.deezer.com/cover.jpg"}}
	]}`

	d := NewDeezer(true)
	results, err := d.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Harder, Better, Faster, Stronger", r.Title)
	assert.Equal(t, "Daft Punk", r.Field("artist"))
	assert.Equal(t, "Discovery", r.Field("album"))
	assert.Equal(t, 224, r.Fields["duration"])
	assert.Equal(t, "3135556", r.Field("external_id"))
}

func TestDeezerParseBadStatus(t *testing.T) {
	d := NewDeezer(true)
	results, err := d.ParseResponse(&Response{StatusCode: 503}, SearchParams{})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestDiscogsParse(t *testing.T) {
	body := `{"results":[
		{"id":249504,"title":"Daft Punk - Discovery","year":"2001",
		 "uri":"/release/249504-Daft-Punk-Discovery",
		 "cover_image":"https://img.discogs.com/249504.jpg",
		 "genre":["Electronic"],"style":["House","Disco"],"country":"UK",
		 "format":["CD","Album"]}
	]}`

	d := NewDiscogs("token", true)
	results, err := d.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Discovery", r.Title)
	assert.Equal(t, "Daft Punk", r.Field("artist"))
	assert.Equal(t, "https://www.discogs.com/release/249504-Daft-Punk-Discovery", r.URL)
	assert.Equal(t, []string{"Electronic", "House", "Disco"}, r.Fields["genres"])
}

func TestDiscogsAuthHeader(t *testing.T) {
	d := NewDiscogs("secret", true)
	req, err := d.BuildRequest(context.Background(), "discovery", SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, "Discogs token=secret", req.Headers["Authorization"])
}

func TestMusicBrainzParseRecordings(t *testing.T) {
	body := `{"recordings":[
		{"id":"b1a9c0e9","title":"Bohemian Rhapsody","length":354320,
		 "artist-credit":[{"artist":{"name":"Queen"},"joinphrase":""}],
		 "isrcs":["GBUM71029604"],
		 "releases":[{"title":"A Night at the Opera","date":"1975-11-21"}]}
	]}`

	m := NewMusicBrainz(true)
	results, err := m.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Bohemian Rhapsody", r.Title)
	assert.Equal(t, "Queen", r.Field("artist"))
	assert.Equal(t, "https://musicbrainz.org/recording/b1a9c0e9", r.URL)
	assert.Equal(t, 354320, r.Fields["duration"])
	assert.Equal(t, "GBUM71029604", r.Field("isrc"))
	assert.Equal(t, "A Night at the Opera", r.Field("album"))
}

func TestMusicBrainzArtistCreditJoinPhrase(t *testing.T) {
	credits := []mbArtistCredit{
		{Artist: struct {
			Name string `json:"name"`
		}{Name: "Daft Punk"}, JoinPhrase: " feat. "},
		{Artist: struct {
			Name string `json:"name"`
		}{Name: "Pharrell Williams"}},
	}
	assert.Equal(t, "Daft Punk feat. Pharrell Williams", creditString(credits))
}

func TestMusicBrainzBuildRequestEntityPrefix(t *testing.T) {
	m := NewMusicBrainz(true)

	req, err := m.BuildRequest(context.Background(), "artist:Radiohead", SearchParams{})
	require.NoError(t, err)
	assert.Contains(t, req.URL, "/artist/?")
	assert.Contains(t, req.URL, "query=Radiohead")
	assert.NotEmpty(t, req.Headers["User-Agent"])

	req, err = m.BuildRequest(context.Background(), "album:OK Computer", SearchParams{})
	require.NoError(t, err)
	assert.Contains(t, req.URL, "/release/?")

	req, err = m.BuildRequest(context.Background(), "karma police", SearchParams{PageNo: 2})
	require.NoError(t, err)
	assert.Contains(t, req.URL, "/recording/?")
	assert.Contains(t, req.URL, "offset=20")
}

func TestSpotifyParse(t *testing.T) {
	body := `{"tracks":{"items":[
		{"id":"0DiWol3AO6WpXZgp0goxAV","name":"One More Time","duration_ms":320357,
		 "popularity":82,"preview_url":"https://p.scdn.co/preview.mp3",
		 "artists":[{"name":"Daft Punk"}],
		 "album":{"name":"Discovery","release_date":"2001-03-12",
		   "images":[{"url":"https://i.scdn.co/image.jpg"}]},
		 "external_ids":{"isrc":"GBDUW0000059"},
		 "external_urls":{"spotify":"https://open.spotify.com/track/0DiWol3AO6WpXZgp0goxAV"}}
	]}}`

	s := NewSpotify("id", "secret", true)
	results, err := s.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "One More Time", r.Title)
	assert.Equal(t, "Daft Punk", r.Field("artist"))
	assert.Equal(t, 320357, r.Fields["duration"])
	assert.Equal(t, "GBDUW0000059", r.Field("isrc"))
	assert.InDelta(t, 0.82, r.Fields["quality"], 0.001)
}

func TestSpotifyDisabledWithoutCredentials(t *testing.T) {
	s := NewSpotify("", "", true)
	assert.False(t, s.Descriptor().Enabled)
	_, err := s.BuildRequest(context.Background(), "q", SearchParams{})
	assert.Error(t, err)
}

func TestAppleMusicParse(t *testing.T) {
	body := `{"results":{"songs":{"data":[
		{"id":"1440766282","attributes":{
		 "name":"Around the World","artistName":"Daft Punk","albumName":"Homework",
		 "durationInMillis":429533,"isrc":"GBDUW9600101","releaseDate":"1997-01-20",
		 "url":"https://music.apple.com/us/album/around-the-world/1440766282",
		 "genreNames":["Electronic","Dance"],
		 "artwork":{"url":"https://is1-ssl.mzstatic.com/{w}x{h}bb.jpg"},
		 "previews":[{"url":"https://audio-ssl.itunes.apple.com/preview.m4a"}]}}
	]}}}`

	a, err := NewAppleMusic("", "", nil, false)
	require.NoError(t, err)
	results, err := a.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Around the World", r.Title)
	assert.Equal(t, "Daft Punk", r.Field("artist"))
	assert.Equal(t, 429533, r.Fields["duration"])
	assert.Equal(t, "https://is1-ssl.mzstatic.com/320x320bb.jpg", r.Field("thumbnail"))
	assert.Equal(t, []string{"Electronic", "Dance"}, r.Fields["genres"])
}

func TestAppleMusicWithoutKeyIsDisabled(t *testing.T) {
	a, err := NewAppleMusic("", "", nil, true)
	require.NoError(t, err)
	assert.False(t, a.Descriptor().Enabled)
	_, err = a.BuildRequest(context.Background(), "q", SearchParams{})
	assert.Error(t, err)
}

func TestGeniusParse(t *testing.T) {
	body := `{"response":{"hits":[
		{"type":"song","result":{
		 "id":378195,"title":"Get Lucky","artist_names":"Daft Punk (Ft. Pharrell Williams)",
		 "url":"https://genius.com/Daft-punk-get-lucky-lyrics",
		 "release_date_for_display":"April 19, 2013",
		 "song_art_image_thumbnail_url":"https://images.genius.com/thumb.jpg",
		 "album":{"name":"Random Access Memories"},
		 "stats":{"pageviews":1500000,"hot":true}}},
		{"type":"article","result":{"url":"https://genius.com/a/article"}}
	]}}`

	g := NewGenius("token", true)
	results, err := g.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Get Lucky", r.Title)
	assert.Equal(t, "Random Access Memories", r.Field("album"))
	meta := r.Fields["metadata"].(map[string]any)
	assert.Equal(t, int64(1500000), meta["pageviews"])
}

func TestGeniusUnauthorized(t *testing.T) {
	g := NewGenius("bad", true)
	_, err := g.ParseResponse(&Response{StatusCode: 401}, SearchParams{})
	assert.Error(t, err)
}

func TestRadioParadiseParseAndFilter(t *testing.T) {
	body := `[
		{"artist":"Radiohead","title":"Karma Police","album":"OK Computer",
		 "year":1997,"duration":261,"cover":"covers/l/karma_s.jpg",
		 "rating":8.2,"song_id":12345},
		{"artist":"Pink Floyd","title":"Time","album":"The Dark Side of the Moon",
		 "duration":413}
	]`

	rp := NewRadioParadise(true)
	params := SearchParams{Extra: map[string]string{"query": "radiohead"}}
	results, err := rp.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)}, params)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Radiohead - Karma Police", r.Title)
	assert.Equal(t, "OK Computer", r.Field("album"))
	assert.Equal(t, 261, r.Fields["duration"])
	assert.Contains(t, r.Field("thumbnail"), "img.radioparadise.com")
	assert.Contains(t, r.Field("thumbnail"), "karma_m.jpg")
}

func TestRadioParadiseWrappedPayload(t *testing.T) {
	body := `{"songs":[{"artist":"Radiohead","title":"Creep","duration":238}]}`

	rp := NewRadioParadise(true)
	results, err := rp.ParseResponse(&Response{StatusCode: 200, Body: []byte(body)},
		SearchParams{Extra: map[string]string{"query": "creep"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestRadioParadiseChannelSelection(t *testing.T) {
	rp := NewRadioParadise(true)
	req, err := rp.BuildRequest(context.Background(), "anything",
		SearchParams{Extra: map[string]string{"channel": "mellow"}})
	require.NoError(t, err)
	assert.Contains(t, req.URL, "chan=1")
}

func TestTidalWebParseEmbeddedState(t *testing.T) {
	page := `<html><head><script>
	window.__INITIAL_STATE__ = {"search":{"results":{
		"tracks":{"items":[
			{"id":77646170,"title":"Instant Crush","duration":337,
			 "audioQuality":"LOSSLESS","cover":"a1b2-c3d4",
			 "artists":[{"name":"Daft Punk"},{"name":"Julian Casablancas"}],
			 "album":{"title":"Random Access Memories"}}
		]},
		"albums":{"items":[
			{"id":77646168,"title":"Random Access Memories","releaseDate":"2013-05-17",
			 "artists":[{"name":"Daft Punk"}],"cover":"a1b2-c3d4"}
		]}
	}}};
	</script></head><body></body></html>`

	tw := NewTidalWeb(true)
	results, err := tw.ParseResponse(&Response{StatusCode: 200, Body: []byte(page)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	track := results[0]
	assert.Equal(t, "Instant Crush", track.Title)
	assert.Equal(t, "https://listen.tidal.com/track/77646170", track.URL)
	assert.Equal(t, "Daft Punk", track.Field("artist"))
	assert.Equal(t, 337, track.Fields["duration"])
	meta := track.Fields["metadata"].(map[string]any)
	assert.Equal(t, true, meta["lossless"])
	assert.Contains(t, track.Field("thumbnail"), "resources.tidal.com/images/a1b2/c3d4")

	album := results[1]
	assert.Equal(t, "Random Access Memories", album.Field("album"))
	assert.Equal(t, "2013-05-17", album.Field("release_date"))
}

func TestTidalWebHTMLFallback(t *testing.T) {
	page := `<html><body><div>
		<a href="/track/123">Get Lucky</a>
		<a href="/artist/9">Daft Punk</a>
	</div></body></html>`

	tw := NewTidalWeb(true)
	results, err := tw.ParseResponse(&Response{StatusCode: 200, Body: []byte(page)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Get Lucky", results[0].Title)
	assert.Equal(t, "https://listen.tidal.com/track/123", results[0].URL)
	assert.Equal(t, "Daft Punk", results[0].Field("artist"))
}

func TestExtractAssignedJSONBalancedBraces(t *testing.T) {
	body := []byte(`window.__INITIAL_STATE__ = {"a":{"b":"}","c":[1,2]}}; other();`)
	raw, ok := extractAssignedJSON(body, "window.__INITIAL_STATE__")
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":"}","c":[1,2]}}`, string(raw))

	_, ok = extractAssignedJSON([]byte("no marker here"), "window.__INITIAL_STATE__")
	assert.False(t, ok)
}

func TestBandcampParse(t *testing.T) {
	page := `<html><body><ul>
	<li class="searchresult">
		<div class="itemtype">TRACK</div>
		<div class="art"><img src="https://f4.bcbits.com/img/a123_7.jpg"></div>
		<div class="heading"><a href="https://artist.bandcamp.com/track/some-song?from=search">Some Song</a></div>
		<div class="subhead">by Some Artist</div>
		<div class="released">released 17 May 2013</div>
	</li>
	<li class="searchresult">
		<div class="itemtype">ARTIST</div>
		<div class="heading"><a href="https://other.bandcamp.com">Other Artist</a></div>
	</li>
	<li class="searchresult">
		<div class="itemtype">ALBUM</div>
		<div class="heading"><a href="https://artist.bandcamp.com/album/some-album">Some Album</a></div>
		<div class="subhead">by Some Artist</div>
	</li>
	</ul></body></html>`

	b := NewBandcamp(true)
	results, err := b.ParseResponse(&Response{StatusCode: 200, Body: []byte(page)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	track := results[0]
	assert.Equal(t, "Some Song", track.Title)
	assert.Equal(t, "https://artist.bandcamp.com/track/some-song", track.URL)
	assert.Equal(t, "Some Artist", track.Field("artist"))
	assert.Equal(t, "17 May 2013", track.Field("release_date"))

	album := results[1]
	assert.Equal(t, "Some Album", album.Field("album"))
}

func TestMusicToScrapeParse(t *testing.T) {
	page := `<html><body>
	<div class="track-item">
		<h3>Scraped Song</h3>
		<span class="artist">Scraped Artist</span>
		<span class="album">Scraped Album</span>
		<span class="duration">3:21</span>
		<a href="/track/scraped-song">play</a>
	</div>
	</body></html>`

	m := NewMusicToScrape(true)
	results, err := m.ParseResponse(&Response{StatusCode: 200, Body: []byte(page)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Scraped Song", r.Title)
	assert.Equal(t, "Scraped Artist", r.Field("artist"))
	assert.Equal(t, "https://music-to-scrape.org/track/scraped-song", r.URL)
	assert.Equal(t, "3:21", r.Field("duration"))
}

func TestMusicToScrapeGenericFallback(t *testing.T) {
	page := `<html><body><p>
		<a href="/track/hidden-gem">Hidden Gem</a>
	</p></body></html>`

	m := NewMusicToScrape(true)
	results, err := m.ParseResponse(&Response{StatusCode: 200, Body: []byte(page)}, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Hidden Gem", results[0].Title)
}
