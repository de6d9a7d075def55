package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/models"
)

type fakeLogSource struct {
	logs []models.DialogueLog
	err  error
}

func (f *fakeLogSource) FetchDialogueLogs(_ context.Context) ([]models.DialogueLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.logs, nil
}

type fakeIndexSink struct {
	upserts  map[string]models.DailyAggregate
	failFor  map[string]bool
	writeLog []string
}

func newFakeIndexSink() *fakeIndexSink {
	return &fakeIndexSink{
		upserts: make(map[string]models.DailyAggregate),
		failFor: make(map[string]bool),
	}
}

func (f *fakeIndexSink) UpsertDailyIndex(_ context.Context, date string, agg models.DailyAggregate) error {
	f.writeLog = append(f.writeLog, date)
	if f.failFor[date] {
		return errors.New("write refused")
	}
	f.upserts[date] = agg
	return nil
}

// failingAnalyzer wraps the placeholder and fails for selected dates
type failingAnalyzer struct {
	inner   Analyzer
	failFor map[string]bool
}

func (f *failingAnalyzer) Analyze(ctx context.Context, date string, logs []models.DialogueLog) (models.DailyAggregate, error) {
	if f.failFor[date] {
		return models.DailyAggregate{}, errors.New("analysis refused")
	}
	return f.inner.Analyze(ctx, date, logs)
}

func utc(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("Failed to parse test timestamp %q: %v", value, err)
	}
	return &parsed
}

func threeDayLogs(t *testing.T) []models.DialogueLog {
	t.Helper()
	return []models.DialogueLog{
		{ID: "a", CreatedAt: utc(t, "2025-07-15T01:00:00Z"), Title: "一日目"},
		{ID: "b", CreatedAt: utc(t, "2025-07-16T01:00:00Z"), Title: "二日目"},
		{ID: "c", CreatedAt: utc(t, "2025-07-16T02:00:00Z")},
		{ID: "d", CreatedAt: utc(t, "2025-07-17T01:00:00Z"), Title: "三日目"},
	}
}

func TestRebuildFullRun(t *testing.T) {
	source := &fakeLogSource{logs: threeDayLogs(t)}
	sink := newFakeIndexSink()
	builder := NewIndexBuilderService(source, sink, NewPlaceholderAnalyzer())

	report, err := builder.Rebuild(context.Background(), RebuildOptions{Trigger: "http"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if report.DaysIndexed != 3 {
		t.Errorf("Expected 3 days indexed, got %d", report.DaysIndexed)
	}
	if report.DaysFailed != 0 {
		t.Errorf("Expected 0 days failed, got %d", report.DaysFailed)
	}
	if report.LogsFetched != 4 {
		t.Errorf("Expected 4 logs fetched, got %d", report.LogsFetched)
	}

	agg, ok := sink.upserts["2025-07-16"]
	if !ok {
		t.Fatal("Expected an upsert for 2025-07-16")
	}
	expectedSummary := "2025-07-16の対話要約。この日は2件の対話記録がありました。"
	if agg.DailySummary != expectedSummary {
		t.Errorf("Expected: %q, got: %q", expectedSummary, agg.DailySummary)
	}
	moment := agg.TimeChunks[0].KeyMoments[0]
	if moment.ArticleID != "b" {
		t.Errorf("Expected key moment to reference earliest-fetched record b, got %q", moment.ArticleID)
	}
}

// TestRebuildIdempotent runs the pipeline twice over unchanged logs and
// expects identical aggregates both times
func TestRebuildIdempotent(t *testing.T) {
	source := &fakeLogSource{logs: threeDayLogs(t)}

	firstSink := newFakeIndexSink()
	builder := NewIndexBuilderService(source, firstSink, NewPlaceholderAnalyzer())
	if _, err := builder.Rebuild(context.Background(), RebuildOptions{}); err != nil {
		t.Fatalf("Unexpected error on first run: %v", err)
	}

	secondSink := newFakeIndexSink()
	builder = NewIndexBuilderService(source, secondSink, NewPlaceholderAnalyzer())
	if _, err := builder.Rebuild(context.Background(), RebuildOptions{}); err != nil {
		t.Fatalf("Unexpected error on second run: %v", err)
	}

	if !reflect.DeepEqual(firstSink.upserts, secondSink.upserts) {
		t.Errorf("Expected identical aggregates across reruns, got %+v and %+v",
			firstSink.upserts, secondSink.upserts)
	}
}

// TestRebuildIsolation checks a bad day never blocks good days
func TestRebuildIsolation(t *testing.T) {
	tests := []struct {
		name        string
		analyzeFail map[string]bool
		writeFail   map[string]bool
		wantIndexed int
		wantFailed  int
		missing     string
	}{
		{
			name:        "Analyze failure for one date",
			analyzeFail: map[string]bool{"2025-07-16": true},
			wantIndexed: 2,
			wantFailed:  1,
			missing:     "2025-07-16",
		},
		{
			name:        "Write failure for one date",
			writeFail:   map[string]bool{"2025-07-15": true},
			wantIndexed: 2,
			wantFailed:  1,
			missing:     "2025-07-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeLogSource{logs: threeDayLogs(t)}
			sink := newFakeIndexSink()
			if tt.writeFail != nil {
				sink.failFor = tt.writeFail
			}
			analyzer := &failingAnalyzer{inner: NewPlaceholderAnalyzer(), failFor: tt.analyzeFail}
			builder := NewIndexBuilderService(source, sink, analyzer)

			report, err := builder.Rebuild(context.Background(), RebuildOptions{})
			if err != nil {
				t.Fatalf("Expected run to succeed despite per-date failure, got: %v", err)
			}
			if report.DaysIndexed != tt.wantIndexed {
				t.Errorf("Expected %d days indexed, got %d", tt.wantIndexed, report.DaysIndexed)
			}
			if report.DaysFailed != tt.wantFailed {
				t.Errorf("Expected %d days failed, got %d", tt.wantFailed, report.DaysFailed)
			}
			if _, ok := sink.upserts[tt.missing]; ok {
				t.Errorf("Expected no stored aggregate for failed date %s", tt.missing)
			}
		})
	}
}

func TestRebuildZeroLogs(t *testing.T) {
	source := &fakeLogSource{}
	sink := newFakeIndexSink()
	builder := NewIndexBuilderService(source, sink, NewPlaceholderAnalyzer())

	report, err := builder.Rebuild(context.Background(), RebuildOptions{})
	if err != nil {
		t.Fatalf("Expected zero-log run to succeed, got: %v", err)
	}
	if report.DaysIndexed != 0 {
		t.Errorf("Expected 0 days indexed, got %d", report.DaysIndexed)
	}
	if len(sink.writeLog) != 0 {
		t.Errorf("Expected no writes, got %d", len(sink.writeLog))
	}
}

func TestRebuildUndatedRecordSkipped(t *testing.T) {
	source := &fakeLogSource{logs: []models.DialogueLog{
		{ID: "valid", CreatedAt: utc(t, "2025-07-16T01:00:00Z")},
		{ID: "undated"},
	}}
	sink := newFakeIndexSink()
	builder := NewIndexBuilderService(source, sink, NewPlaceholderAnalyzer())

	report, err := builder.Rebuild(context.Background(), RebuildOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.DaysIndexed != 1 {
		t.Errorf("Expected 1 day indexed, got %d", report.DaysIndexed)
	}
	if report.DaysFailed != 0 {
		t.Errorf("Expected the undated record to be skipped silently, got %d failures", report.DaysFailed)
	}
	if len(sink.upserts) != 1 {
		t.Errorf("Expected 1 upsert, got %d", len(sink.upserts))
	}
}

func TestRebuildFetchErrorAborts(t *testing.T) {
	source := &fakeLogSource{err: errors.New("store unreachable")}
	sink := newFakeIndexSink()
	builder := NewIndexBuilderService(source, sink, NewPlaceholderAnalyzer())

	if _, err := builder.Rebuild(context.Background(), RebuildOptions{}); err == nil {
		t.Fatal("Expected fetch error to abort the run, got nil")
	}
	if len(sink.writeLog) != 0 {
		t.Errorf("Expected no writes after fetch failure, got %d", len(sink.writeLog))
	}
}

func TestRebuildDateRange(t *testing.T) {
	tests := []struct {
		name     string
		opts     RebuildOptions
		expected []string
	}{
		{
			name:     "From bound only",
			opts:     RebuildOptions{From: "2025-07-16"},
			expected: []string{"2025-07-16", "2025-07-17"},
		},
		{
			name:     "To bound only",
			opts:     RebuildOptions{To: "2025-07-15"},
			expected: []string{"2025-07-15"},
		},
		{
			name:     "Both bounds",
			opts:     RebuildOptions{From: "2025-07-16", To: "2025-07-16"},
			expected: []string{"2025-07-16"},
		},
		{
			name:     "No bounds is full rebuild",
			opts:     RebuildOptions{},
			expected: []string{"2025-07-15", "2025-07-16", "2025-07-17"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeLogSource{logs: threeDayLogs(t)}
			sink := newFakeIndexSink()
			builder := NewIndexBuilderService(source, sink, NewPlaceholderAnalyzer())

			report, err := builder.Rebuild(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if report.DaysIndexed != len(tt.expected) {
				t.Errorf("Expected %d days indexed, got %d", len(tt.expected), report.DaysIndexed)
			}
			if !reflect.DeepEqual(sink.writeLog, tt.expected) {
				t.Errorf("Expected writes %v, got %v", tt.expected, sink.writeLog)
			}
		})
	}
}

func TestRebuildOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RebuildOptions
		wantErr bool
	}{
		{name: "Empty is valid", opts: RebuildOptions{}},
		{name: "Valid range", opts: RebuildOptions{From: "2025-07-01", To: "2025-07-31"}},
		{name: "Malformed from", opts: RebuildOptions{From: "July 1"}, wantErr: true},
		{name: "Malformed to", opts: RebuildOptions{To: "2025/07/31"}, wantErr: true},
		{name: "Inverted range", opts: RebuildOptions{From: "2025-08-01", To: "2025-07-01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLastReport(t *testing.T) {
	source := &fakeLogSource{logs: threeDayLogs(t)}
	builder := NewIndexBuilderService(source, newFakeIndexSink(), NewPlaceholderAnalyzer())

	if _, ok := builder.LastReport(); ok {
		t.Fatal("Expected no report before the first run")
	}

	report, err := builder.Rebuild(context.Background(), RebuildOptions{Trigger: "http"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cached, ok := builder.LastReport()
	if !ok {
		t.Fatal("Expected a cached report after a run")
	}
	if cached.RunID != report.RunID {
		t.Errorf("Expected cached run ID %q, got %q", report.RunID, cached.RunID)
	}
}
