package models

import "time"

// Source type values stored on articles. Only DIALOGUE_LOG articles feed the index.
const SourceTypeDialogueLog = "DIALOGUE_LOG"

// DialogueLog is one raw dialogue-log article as fetched from the store.
// CreatedAt is nil when the source document carries no timestamp; such records
// cannot be dated and are excluded from grouping.
type DialogueLog struct {
	ID         string     `bson:"-" json:"id"`
	CreatedAt  *time.Time `bson:"createdAt,omitempty" json:"created_at,omitempty"`
	Title      string     `bson:"title,omitempty" json:"title,omitempty"`
	SourceType string     `bson:"sourceType" json:"source_type"`

	// Fields carries the remaining document fields opaquely. Aggregation never
	// reads them, but a production analyzer may.
	Fields map[string]interface{} `bson:",inline" json:"-"`
}

// DateBucket groups the dialogue logs of one civil date (JST). Logs keep their
// fetch order; the first entry is the day's representative record.
type DateBucket struct {
	Date string
	Logs []DialogueLog
}

// KeyMoment points back at one representative article within a time chunk.
type KeyMoment struct {
	Topic        string `bson:"topic" json:"topic"`
	Timestamp    string `bson:"timestamp" json:"timestamp"`
	ArticleID    string `bson:"articleId" json:"article_id"`
	ArticleTitle string `bson:"articleTitle" json:"article_title"`
}

// TimeChunk is one sub-interval of a day's conversation activity.
type TimeChunk struct {
	StartTime    string      `bson:"startTime" json:"start_time"`
	EndTime      string      `bson:"endTime" json:"end_time"`
	ChunkSummary string      `bson:"chunkSummary" json:"chunk_summary"`
	Categories   []string    `bson:"categories" json:"categories"`
	Tags         []string    `bson:"tags" json:"tags"`
	KeyMoments   []KeyMoment `bson:"keyMoments" json:"key_moments"`
}

// DailyAggregate is the analyzer output for one date, before persistence.
// UpdatedAt is assigned by the store at write time, not here.
type DailyAggregate struct {
	DailySummary string      `json:"daily_summary"`
	TimeChunks   []TimeChunk `json:"time_chunks"`
}

// DailyIndex is the persisted per-date index document in dialogue_index.
// The document _id is the YYYY-MM-DD date string; Date anchors the same civil
// date to UTC midnight.
type DailyIndex struct {
	Date         time.Time   `bson:"date" json:"date"`
	DailySummary string      `bson:"dailySummary" json:"daily_summary"`
	TimeChunks   []TimeChunk `bson:"timeChunks" json:"time_chunks"`
	UpdatedAt    time.Time   `bson:"updatedAt" json:"updated_at"`
}
