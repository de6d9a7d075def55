package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SchedulerService runs the index rebuild on a cron schedule, mirroring the
// on-demand HTTP trigger exactly: same orchestrator call, same full rebuild.
type SchedulerService struct {
	scheduler  gocron.Scheduler
	builder    *IndexBuilderService
	cronExpr   string
	instanceID string
}

// NewSchedulerService creates a scheduler for periodic rebuilds. The cron
// expression is validated up front so a bad REBUILD_CRON fails at startup, not
// at first fire.
func NewSchedulerService(builder *IndexBuilderService, cronExpr string) (*SchedulerService, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid rebuild cron expression %q: %w", cronExpr, err)
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &SchedulerService{
		scheduler:  scheduler,
		builder:    builder,
		cronExpr:   cronExpr,
		instanceID: uuid.New().String(),
	}, nil
}

// Start registers the rebuild job and starts the scheduler
func (s *SchedulerService) Start() error {
	log.Println("⏰ Starting rebuild scheduler...")

	_, err := s.scheduler.NewJob(
		gocron.CronJob(s.cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if _, err := s.builder.Rebuild(ctx, RebuildOptions{Trigger: "schedule"}); err != nil {
				log.Printf("⚠️ Scheduled rebuild failed: %v", err)
			}
		}),
		gocron.WithName("dialogue-index-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("failed to register rebuild job: %w", err)
	}

	s.scheduler.Start()
	log.Printf("✅ Rebuild scheduler started (cron: %s, instance: %s)", s.cronExpr, s.instanceID)

	return nil
}

// Stop stops the scheduler
func (s *SchedulerService) Stop() error {
	log.Println("⏹️ Stopping rebuild scheduler...")
	return s.scheduler.Shutdown()
}
