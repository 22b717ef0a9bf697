// Package playlist manages universal playlists: ordered lists of unified
// tracks playable on whichever source hosts them.
package playlist

import (
	"context"

	"melodex/internal/schema"
)

// Repository is the persistence contract for playlists. A missing playlist
// is (nil, nil), matching the cache convention.
type Repository interface {
	Save(ctx context.Context, p *schema.UniversalPlaylist) error
	FindByID(ctx context.Context, id string) (*schema.UniversalPlaylist, error)
	List(ctx context.Context, owner string) ([]*schema.UniversalPlaylist, error)
	Delete(ctx context.Context, id string) error
}

// NotFoundError reports an operation against a playlist that does not
// exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "playlist " + e.ID + " not found"
}
