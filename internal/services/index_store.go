package services

import (
	"context"
	"fmt"

	"github.com/tetuya0525/dialogue-index-builder/internal/database"
	"github.com/tetuya0525/dialogue-index-builder/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexSink persists one date's aggregate into the daily index. The index
// builder depends on this interface so tests can substitute a fake.
type IndexSink interface {
	UpsertDailyIndex(ctx context.Context, date string, agg models.DailyAggregate) error
}

// IndexStore writes daily index documents to MongoDB
type IndexStore struct {
	collection *mongo.Collection
}

// NewIndexStore creates a new index store
func NewIndexStore(mongodb *database.MongoDB) *IndexStore {
	return &IndexStore{
		collection: mongodb.Collection(database.CollectionDialogueIndex),
	}
}

// UpsertDailyIndex merge-upserts the index document for one civil date, keyed
// by the date string as document ID. $set touches only the fields this
// pipeline owns, so fields written by other enrichment steps survive a rerun;
// $currentDate gives updatedAt a server-assigned timestamp.
func (s *IndexStore) UpsertDailyIndex(ctx context.Context, date string, agg models.DailyAggregate) error {
	update, err := buildIndexUpdate(date, agg)
	if err != nil {
		return err
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": date}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert daily index for %s: %w", date, err)
	}

	return nil
}

// buildIndexUpdate builds the merge-upsert update document for one date
func buildIndexUpdate(date string, agg models.DailyAggregate) (bson.M, error) {
	civilDate, err := CivilDateUTC(date)
	if err != nil {
		return nil, fmt.Errorf("invalid index date %q: %w", date, err)
	}

	return bson.M{
		"$set": bson.M{
			"date":         civilDate,
			"dailySummary": agg.DailySummary,
			"timeChunks":   agg.TimeChunks,
		},
		"$currentDate": bson.M{
			"updatedAt": true,
		},
	}, nil
}
