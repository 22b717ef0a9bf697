package schema

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// UniversalPlaylist is an ordered list of UnifiedTracks playable on any
// source that hosts them. Positions are 0-based and dense: after any
// sequence of adds and removes they are exactly 0..n-1.
type UniversalPlaylist struct {
	ID          string         `json:"id" bson:"_id"`
	Name        string         `json:"name" bson:"name"`
	Description string         `json:"description,omitempty" bson:"description,omitempty"`
	Owner       string         `json:"owner,omitempty" bson:"owner,omitempty"`
	Tracks      []UnifiedTrack `json:"tracks" bson:"tracks"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}

// NewUniversalPlaylist creates an empty playlist with an 8-hex ID derived
// from the name and creation instant.
func NewUniversalPlaylist(name, description string) *UniversalPlaylist {
	now := time.Now().UTC()
	sum := md5.Sum([]byte(fmt.Sprintf("%s%d", name, now.UnixNano())))
	return &UniversalPlaylist{
		ID:          hex.EncodeToString(sum[:])[:8],
		Name:        name,
		Description: description,
		Tracks:      []UnifiedTrack{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TrackCount returns the number of tracks in the playlist.
func (p *UniversalPlaylist) TrackCount() int {
	return len(p.Tracks)
}
