// Package interactions is an append-only log of user-facing events:
// searches run, tracks played or added, playlists exported. Recording is
// always best-effort; a sink failure never fails the operation it logs.
package interactions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType labels what the user did.
type EventType string

const (
	EventSearch EventType = "search"
	EventPlay   EventType = "play"
	EventAdd    EventType = "add"
	EventExport EventType = "export"
)

// Event is one logged interaction. Payload fields are filled per type:
// Query for searches, UnifiedID for plays and adds, PlaylistID for
// playlist-scoped events.
type Event struct {
	ID         string    `json:"id" bson:"_id"`
	Type       EventType `json:"type" bson:"type"`
	Query      string    `json:"query,omitempty" bson:"query,omitempty"`
	UnifiedID  string    `json:"unified_id,omitempty" bson:"unified_id,omitempty"`
	PlaylistID string    `json:"playlist_id,omitempty" bson:"playlist_id,omitempty"`
	Engine     string    `json:"engine,omitempty" bson:"engine,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// Sink accepts events for durable storage.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Emit records an event on a sink, filling ID and Timestamp when unset.
// A nil sink is a no-op; a sink error is logged and swallowed.
func Emit(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		slog.Warn("interaction record failed", "type", event.Type, "error", err)
	}
}
