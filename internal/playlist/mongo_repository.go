package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"melodex/internal/schema"
)

// mongoRepository implements Repository using MongoDB.
type mongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a MongoDB-backed playlist repository on the
// "playlists" collection.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("playlists"),
	}
}

// Save upserts a playlist. IDs are assigned at creation time, so an insert
// and an update are the same write.
func (r *mongoRepository) Save(ctx context.Context, p *schema.UniversalPlaylist) error {
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}
	return nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id string) (*schema.UniversalPlaylist, error) {
	var p schema.UniversalPlaylist
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find playlist by ID: %w", err)
	}
	return &p, nil
}

// List returns playlists, newest first. An empty owner lists everything.
func (r *mongoRepository) List(ctx context.Context, owner string) ([]*schema.UniversalPlaylist, error) {
	filter := bson.M{}
	if owner != "" {
		filter["owner"] = owner
	}

	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer cursor.Close(ctx)

	var playlists []*schema.UniversalPlaylist
	for cursor.Next(ctx) {
		var p schema.UniversalPlaylist
		if err := cursor.Decode(&p); err != nil {
			slog.Error("Failed to decode playlist", "error", err)
			continue
		}
		playlists = append(playlists, &p)
	}

	return playlists, cursor.Err()
}

func (r *mongoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if result.DeletedCount == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}
