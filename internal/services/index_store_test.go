package services

import (
	"testing"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

// TestBuildIndexUpdate verifies the merge-upsert document shape: $set carries
// only the fields this pipeline owns, so unrelated fields in a stored document
// survive a rerun untouched.
func TestBuildIndexUpdate(t *testing.T) {
	agg := models.DailyAggregate{
		DailySummary: "2025-07-16の対話要約。この日は2件の対話記録がありました。",
		TimeChunks: []models.TimeChunk{
			{StartTime: "10:00", EndTime: "12:59"},
		},
	}

	update, err := buildIndexUpdate("2025-07-16", agg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatal("Expected $set document in update")
	}

	expectedFields := map[string]bool{"date": true, "dailySummary": true, "timeChunks": true}
	for field := range set {
		if !expectedFields[field] {
			t.Errorf("Unexpected field %q in $set — merge safety requires touching owned fields only", field)
		}
	}
	for field := range expectedFields {
		if _, ok := set[field]; !ok {
			t.Errorf("Expected field %q in $set", field)
		}
	}

	date, ok := set["date"].(time.Time)
	if !ok {
		t.Fatal("Expected date to be a time.Time")
	}
	expectedDate := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	if !date.Equal(expectedDate) {
		t.Errorf("Expected date %v (UTC midnight), got %v", expectedDate, date)
	}

	if set["dailySummary"] != agg.DailySummary {
		t.Errorf("Expected dailySummary %q, got %v", agg.DailySummary, set["dailySummary"])
	}

	// updatedAt must be server-assigned, never client-set
	currentDate, ok := update["$currentDate"].(bson.M)
	if !ok {
		t.Fatal("Expected $currentDate document in update")
	}
	if currentDate["updatedAt"] != true {
		t.Error("Expected $currentDate to cover updatedAt")
	}
	if _, ok := set["updatedAt"]; ok {
		t.Error("updatedAt must not appear in $set")
	}
}

func TestBuildIndexUpdateInvalidDate(t *testing.T) {
	if _, err := buildIndexUpdate("not-a-date", models.DailyAggregate{}); err == nil {
		t.Error("Expected error for malformed date, got nil")
	}
}
