package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/prepdeck/backend/internal/config"
	interviewService "github.com/prepdeck/backend/internal/service/interview"
)

// Scheduler owns the cron runner for the report exporter and the idle
// session sweeper.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler wires the configured jobs. The exporter is registered only
// when export is enabled; the sweeper always runs.
func NewScheduler(cfg config.JobsConfig, store ExporterStore, sessions *interviewService.Service) (*Scheduler, error) {
	c := cron.New()

	if cfg.ExportEnabled {
		exporter := NewExporter(store, cfg.ExportDir)
		if _, err := c.AddFunc(cfg.ExportSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := exporter.Run(ctx); err != nil {
				log.Printf("[jobs] report export failed: %v", err)
			}
		}); err != nil {
			return nil, err
		}
		log.Printf("[jobs] report exporter scheduled: %s", cfg.ExportSchedule)
	}

	ttl := cfg.SessionIdleTTL
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		sessions.EvictIdleBefore(time.Now().Add(-ttl))
	}); err != nil {
		return nil, err
	}
	log.Printf("[jobs] session sweeper scheduled: %s (ttl %s)", cfg.SweepSchedule, ttl)

	return &Scheduler{cron: c}, nil
}

// Start launches the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
