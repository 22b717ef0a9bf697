package interactions

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// mongoSink appends events to a MongoDB collection.
type mongoSink struct {
	collection *mongo.Collection
}

// NewMongoSink creates a MongoDB-backed interaction sink on the
// "interactions" collection.
func NewMongoSink(db *mongo.Database) Sink {
	return &mongoSink{
		collection: db.Collection("interactions"),
	}
}

func (s *mongoSink) Record(ctx context.Context, event Event) error {
	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}
