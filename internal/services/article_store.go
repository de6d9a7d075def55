package services

import (
	"context"
	"fmt"

	"github.com/tetuya0525/dialogue-index-builder/internal/database"
	"github.com/tetuya0525/dialogue-index-builder/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// LogSource provides the raw dialogue logs the index is built from.
// The index builder depends on this interface so tests can substitute a fake.
type LogSource interface {
	FetchDialogueLogs(ctx context.Context) ([]models.DialogueLog, error)
}

// ArticleStore reads dialogue-log articles from MongoDB
type ArticleStore struct {
	collection *mongo.Collection
}

// NewArticleStore creates a new article store
func NewArticleStore(mongodb *database.MongoDB) *ArticleStore {
	return &ArticleStore{
		collection: mongodb.Collection(database.CollectionArticles),
	}
}

// FetchDialogueLogs returns all articles with sourceType DIALOGUE_LOG, in store
// order. No pagination: the rebuild is a full pass over every log. Query errors
// propagate to the caller unretried.
func (s *ArticleStore) FetchDialogueLogs(ctx context.Context) ([]models.DialogueLog, error) {
	filter := bson.M{"sourceType": models.SourceTypeDialogueLog}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query dialogue logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []models.DialogueLog
	for cursor.Next(ctx) {
		var doc struct {
			ID                 primitive.ObjectID `bson:"_id"`
			models.DialogueLog `bson:",inline"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode dialogue log: %w", err)
		}
		dialogueLog := doc.DialogueLog
		dialogueLog.ID = doc.ID.Hex()
		logs = append(logs, dialogueLog)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dialogue logs: %w", err)
	}

	return logs, nil
}
