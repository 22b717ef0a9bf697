package playlist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"melodex/internal/dispatch"
	"melodex/internal/interactions"
	"melodex/internal/schema"
	"melodex/internal/validate"
)

// ErrNoResults reports a query or URL that resolved to nothing.
var ErrNoResults = errors.New("no track found for query")

// Searcher resolves a query into ranked unified tracks. The dispatcher
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, opts dispatch.Options) (*dispatch.Response, error)
}

// Service owns playlist mutation. All writes to one playlist serialize on
// a per-playlist mutex; different playlists never contend.
type Service struct {
	repo     Repository
	searcher Searcher
	events   interactions.Sink

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a playlist service. The searcher may be nil, which
// disables AddByQuery and AddByURL; the event sink may be nil.
func NewService(repo Repository, searcher Searcher, events interactions.Sink) *Service {
	return &Service{
		repo:     repo,
		searcher: searcher,
		events:   events,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Create makes a new empty playlist.
func (s *Service) Create(ctx context.Context, name, description, owner string) (*schema.UniversalPlaylist, error) {
	name = strings.TrimSpace(validate.SanitizeText(name))
	if name == "" {
		return nil, &validate.InvalidInputError{Field: "name", Message: "playlist name is required"}
	}

	p := schema.NewUniversalPlaylist(name, strings.TrimSpace(validate.SanitizeText(description)))
	p.Owner = owner
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a playlist or a NotFoundError.
func (s *Service) Get(ctx context.Context, id string) (*schema.UniversalPlaylist, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{ID: id}
	}
	return p, nil
}

// List returns playlists for an owner; empty owner means all.
func (s *Service) List(ctx context.Context, owner string) ([]*schema.UniversalPlaylist, error) {
	return s.repo.List(ctx, owner)
}

// Rename updates a playlist's name and description.
func (s *Service) Rename(ctx context.Context, id, name, description string) (*schema.UniversalPlaylist, error) {
	name = strings.TrimSpace(validate.SanitizeText(name))
	if name == "" {
		return nil, &validate.InvalidInputError{Field: "name", Message: "playlist name is required"}
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.Description = strings.TrimSpace(validate.SanitizeText(description))
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a playlist.
func (s *Service) Delete(ctx context.Context, id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.repo.Delete(ctx, id)
}

// AddTrack appends a track to the end of the playlist.
func (s *Service) AddTrack(ctx context.Context, id string, track *schema.UnifiedTrack) (*schema.UniversalPlaylist, error) {
	if track == nil || track.Title == "" {
		return nil, &validate.InvalidInputError{Field: "track", Message: "track with a title is required"}
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Tracks = append(p.Tracks, *track)
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}

	interactions.Emit(ctx, s.events, interactions.Event{
		Type:       interactions.EventAdd,
		PlaylistID: id,
		UnifiedID:  track.UnifiedID,
	})
	return p, nil
}

// AddByQuery searches for the query and appends the top-ranked track.
func (s *Service) AddByQuery(ctx context.Context, id, query string) (*schema.UnifiedTrack, error) {
	track, err := s.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if _, err := s.AddTrack(ctx, id, track); err != nil {
		return nil, err
	}
	return track, nil
}

// AddByURL detects the platform behind a third-party track URL, derives a
// coarse search query from it, and appends the top-ranked match.
func (s *Service) AddByURL(ctx context.Context, id, rawURL string) (*schema.UnifiedTrack, error) {
	platform := DetectPlatform(rawURL)
	query, err := deriveQuery(rawURL)
	if err != nil {
		return nil, err
	}

	track, err := s.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	// Keep the original link when the source platform didn't come back in
	// the search results.
	if platform != "" {
		if _, ok := track.Platforms[platform]; !ok {
			track.Platforms[platform] = schema.PlatformEntry{URL: rawURL}
		}
	}
	if _, err := s.AddTrack(ctx, id, track); err != nil {
		return nil, err
	}
	return track, nil
}

// RemoveTrack removes the track at the given position. Remaining tracks
// shift down, so positions stay exactly 0..n-1.
func (s *Service) RemoveTrack(ctx context.Context, id string, position int) (*schema.UniversalPlaylist, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= len(p.Tracks) {
		return nil, &validate.InvalidInputError{Field: "position", Message: fmt.Sprintf("position %d out of range", position)}
	}
	p.Tracks = append(p.Tracks[:position], p.Tracks[position+1:]...)
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MoveTrack moves the track at from to position to, shifting the tracks in
// between.
func (s *Service) MoveTrack(ctx context.Context, id string, from, to int) (*schema.UniversalPlaylist, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n := len(p.Tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, &validate.InvalidInputError{Field: "position", Message: fmt.Sprintf("move %d -> %d out of range", from, to)}
	}
	if from != to {
		track := p.Tracks[from]
		p.Tracks = append(p.Tracks[:from], p.Tracks[from+1:]...)
		rest := append([]schema.UnifiedTrack{track}, p.Tracks[to:]...)
		p.Tracks = append(p.Tracks[:to], rest...)
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) resolve(ctx context.Context, query string) (*schema.UnifiedTrack, error) {
	if s.searcher == nil {
		return nil, errors.New("no searcher configured")
	}
	resp, err := s.searcher.Search(ctx, query, dispatch.Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Tracks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoResults, query)
	}
	track := cloneTrack(resp.Tracks[0])
	return &track, nil
}

// Track URL hosts mapped to engine names.
var platformDomains = map[string]string{
	"soundcloud.com":    "soundcloud",
	"youtube.com":       "youtube",
	"youtu.be":          "youtube",
	"bandcamp.com":      "bandcamp",
	"mixcloud.com":      "mixcloud",
	"open.spotify.com":  "spotify",
	"spotify.com":       "spotify",
	"deezer.com":        "deezer",
	"tidal.com":         "tidal",
	"listen.tidal.com":  "tidal",
	"music.apple.com":   "applemusic",
	"genius.com":        "genius",
	"jamendo.com":       "jamendo",
	"discogs.com":       "discogs",
	"musicbrainz.org":   "musicbrainz",
	"radioparadise.com": "radioparadise",
}

// DetectPlatform maps a URL's host to an engine name, or "" when the host
// is not a known platform.
func DetectPlatform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for domain, platform := range platformDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform
		}
	}
	return ""
}

var slugDigitsRe = regexp.MustCompile(`^\d+$`)

// deriveQuery turns a track URL into a coarse search query from its slug.
// Numeric-ID URLs carry no usable words and are rejected.
func deriveQuery(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", &validate.InvalidInputError{Field: "url", Message: "not a valid URL"}
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		slug, err := url.PathUnescape(segments[i])
		if err != nil {
			slug = segments[i]
		}
		slug = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(slug)
		slug = strings.Join(strings.Fields(slug), " ")
		if slug == "" || slugDigitsRe.MatchString(strings.ReplaceAll(slug, " ", "")) {
			continue
		}
		// Skip pure route words like /track/ or /album/.
		switch strings.ToLower(slug) {
		case "track", "tracks", "song", "songs", "album", "albums", "watch", "release":
			continue
		}
		return slug, nil
	}
	return "", &validate.InvalidInputError{Field: "url", Message: "cannot derive a search query from URL"}
}
