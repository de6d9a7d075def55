package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/logging"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const lastReportCacheKey = "last_report"

// RebuildOptions bounds one rebuild run. The zero value is the default full
// rebuild; From/To (inclusive YYYY-MM-DD, either may be empty) restrict which
// date buckets get written without changing fetch or grouping.
type RebuildOptions struct {
	From    string
	To      string
	Trigger string // "http" or "schedule", for logs and metrics
}

// Validate checks the optional date range
func (o RebuildOptions) Validate() error {
	if o.From != "" {
		if _, err := CivilDateUTC(o.From); err != nil {
			return fmt.Errorf("invalid from date %q: %w", o.From, err)
		}
	}
	if o.To != "" {
		if _, err := CivilDateUTC(o.To); err != nil {
			return fmt.Errorf("invalid to date %q: %w", o.To, err)
		}
	}
	if o.From != "" && o.To != "" && o.From > o.To {
		return fmt.Errorf("from date %s is after to date %s", o.From, o.To)
	}
	return nil
}

// inRange reports whether a date bucket falls inside the optional bounds.
// YYYY-MM-DD strings compare correctly as plain strings.
func (o RebuildOptions) inRange(date string) bool {
	if o.From != "" && date < o.From {
		return false
	}
	if o.To != "" && date > o.To {
		return false
	}
	return true
}

// RebuildReport summarizes one completed rebuild run
type RebuildReport struct {
	RunID       string        `json:"run_id"`
	Trigger     string        `json:"trigger"`
	LogsFetched int           `json:"logs_fetched"`
	DaysTotal   int           `json:"days_total"`
	DaysIndexed int           `json:"days_indexed"`
	DaysFailed  int           `json:"days_failed"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
}

// IndexBuilderService runs the fetch → group → analyze → write pipeline.
// It is stateless across runs apart from the cached last report; every run is
// a full pass over the store.
type IndexBuilderService struct {
	source   LogSource
	sink     IndexSink
	analyzer Analyzer
	reports  *gocache.Cache
}

// NewIndexBuilderService creates the index builder with its collaborators
// injected, so tests can swap in fakes for the store and the analyzer.
func NewIndexBuilderService(source LogSource, sink IndexSink, analyzer Analyzer) *IndexBuilderService {
	return &IndexBuilderService{
		source:   source,
		sink:     sink,
		analyzer: analyzer,
		reports:  gocache.New(24*time.Hour, time.Hour),
	}
}

// Rebuild runs the full pipeline once. A fetch failure aborts the run; an
// analyze or write failure for one date is logged, counted, and skipped so a
// bad day never blocks good days. Returns the run report on success.
func (s *IndexBuilderService) Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := logging.WithRun(runID, opts.Trigger)
	startedAt := time.Now()

	logger.Info("starting dialogue index rebuild")

	logs, err := s.source.FetchDialogueLogs(ctx)
	if err != nil {
		s.countRun("error", opts.Trigger, startedAt)
		return nil, fmt.Errorf("failed to fetch dialogue logs: %w", err)
	}

	buckets := GroupLogsByDate(logs)
	logger.Info("grouped dialogue logs", "logs", len(logs), "days", len(buckets))

	report := &RebuildReport{
		RunID:       runID,
		Trigger:     opts.Trigger,
		LogsFetched: len(logs),
		DaysTotal:   len(buckets),
		StartedAt:   startedAt,
	}

	for _, date := range SortedBucketDates(buckets) {
		if !opts.inRange(date) {
			continue
		}
		bucket := buckets[date]

		agg, err := s.analyzer.Analyze(ctx, date, bucket.Logs)
		if err != nil {
			logger.Error("failed to analyze date bucket", "date", date, "error", err)
			s.countDayFailure("analyze")
			report.DaysFailed++
			continue
		}

		if err := s.sink.UpsertDailyIndex(ctx, date, agg); err != nil {
			logger.Error("failed to write daily index", "date", date, "error", err)
			s.countDayFailure("write")
			report.DaysFailed++
			continue
		}

		logger.Debug("daily index updated", "date", date, "logs", len(bucket.Logs))
		report.DaysIndexed++
	}

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(startedAt)

	if m := GetMetrics(); m != nil {
		m.LogsFetched.Set(float64(report.LogsFetched))
		m.DaysIndexed.Add(float64(report.DaysIndexed))
	}
	s.countRun("success", opts.Trigger, startedAt)

	s.reports.Set(lastReportCacheKey, report, gocache.DefaultExpiration)

	logger.Info("dialogue index rebuild finished",
		"days_indexed", report.DaysIndexed,
		"days_failed", report.DaysFailed,
		"duration", report.Duration,
	)

	return report, nil
}

// LastReport returns the most recent run report, if one finished within the
// cache window.
func (s *IndexBuilderService) LastReport() (*RebuildReport, bool) {
	v, ok := s.reports.Get(lastReportCacheKey)
	if !ok {
		return nil, false
	}
	report, ok := v.(*RebuildReport)
	return report, ok
}

func (s *IndexBuilderService) countRun(outcome, trigger string, startedAt time.Time) {
	m := GetMetrics()
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "http"
	}
	m.RebuildRuns.WithLabelValues(outcome, trigger).Inc()
	m.RebuildRunDuration.Observe(time.Since(startedAt).Seconds())
}

func (s *IndexBuilderService) countDayFailure(stage string) {
	if m := GetMetrics(); m != nil {
		m.DayFailures.WithLabelValues(stage).Inc()
	}
}
