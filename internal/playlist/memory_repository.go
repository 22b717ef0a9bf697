package playlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"melodex/internal/schema"
)

// MemoryRepository keeps playlists in process memory. Used in tests and
// when no MongoDB is configured. Stored and returned playlists are deep
// copies, so callers never share state through the repository.
type MemoryRepository struct {
	mu        sync.RWMutex
	playlists map[string]*schema.UniversalPlaylist
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		playlists: make(map[string]*schema.UniversalPlaylist),
	}
}

func (r *MemoryRepository) Save(_ context.Context, p *schema.UniversalPlaylist) error {
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlists[p.ID] = clonePlaylist(p)
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*schema.UniversalPlaylist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.playlists[id]
	if !ok {
		return nil, nil
	}
	return clonePlaylist(p), nil
}

func (r *MemoryRepository) List(_ context.Context, owner string) ([]*schema.UniversalPlaylist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var playlists []*schema.UniversalPlaylist
	for _, p := range r.playlists {
		if owner != "" && p.Owner != owner {
			continue
		}
		playlists = append(playlists, clonePlaylist(p))
	}
	sort.Slice(playlists, func(i, j int) bool {
		return playlists[i].UpdatedAt.After(playlists[j].UpdatedAt)
	})
	return playlists, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.playlists[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(r.playlists, id)
	return nil
}

func clonePlaylist(p *schema.UniversalPlaylist) *schema.UniversalPlaylist {
	out := *p
	out.Tracks = make([]schema.UnifiedTrack, len(p.Tracks))
	for i := range p.Tracks {
		out.Tracks[i] = cloneTrack(&p.Tracks[i])
	}
	return &out
}

func cloneTrack(t *schema.UnifiedTrack) schema.UnifiedTrack {
	out := *t
	out.Platforms = make(map[string]schema.PlatformEntry, len(t.Platforms))
	for name, entry := range t.Platforms {
		if entry.Metadata != nil {
			meta := make(map[string]any, len(entry.Metadata))
			for k, v := range entry.Metadata {
				meta[k] = v
			}
			entry.Metadata = meta
		}
		out.Platforms[name] = entry
	}
	out.Genres = append([]string(nil), t.Genres...)
	out.Tags = append([]string(nil), t.Tags...)
	return out
}
