package services

import (
	"context"
	"fmt"

	"github.com/tetuya0525/dialogue-index-builder/internal/models"
)

// Analyzer derives one day's aggregate (daily summary + time chunks) from that
// day's dialogue logs. Implementations must be pure functions of the bucket
// contents so reruns stay idempotent: same logs in, same aggregate out.
// Grouping, writing and orchestration never depend on which implementation is
// behind this interface.
type Analyzer interface {
	Analyze(ctx context.Context, date string, logs []models.DialogueLog) (models.DailyAggregate, error)
}

// Default title used when a dialogue log has no title of its own.
const untitledDialogueLog = "無題の対話ログ"

// PlaceholderAnalyzer is the deterministic stand-in for real content analysis.
// It emits a templated daily summary and a single fixed time chunk whose key
// moment references the bucket's earliest-fetched log.
type PlaceholderAnalyzer struct{}

// NewPlaceholderAnalyzer creates the placeholder analyzer
func NewPlaceholderAnalyzer() *PlaceholderAnalyzer {
	return &PlaceholderAnalyzer{}
}

// Analyze produces the placeholder aggregate for one date
func (a *PlaceholderAnalyzer) Analyze(_ context.Context, date string, logs []models.DialogueLog) (models.DailyAggregate, error) {
	if len(logs) == 0 {
		return models.DailyAggregate{}, fmt.Errorf("no dialogue logs for %s", date)
	}

	first := logs[0]
	title := first.Title
	if title == "" {
		title = untitledDialogueLog
	}

	return models.DailyAggregate{
		DailySummary: fmt.Sprintf("%sの対話要約。この日は%d件の対話記録がありました。", date, len(logs)),
		TimeChunks: []models.TimeChunk{
			{
				StartTime:    "10:00",
				EndTime:      "12:59",
				ChunkSummary: "AI司書の設計に関する議論が行われました。",
				Categories:   []string{"システム設計", "バックエンド"},
				Tags:         []string{"Cloud Run", "Firestore", "API設計"},
				KeyMoments: []models.KeyMoment{
					{
						Topic:        "最初のキーモーメントのトピック",
						Timestamp:    "10:15",
						ArticleID:    first.ID,
						ArticleTitle: title,
					},
				},
			},
		},
	}, nil
}
