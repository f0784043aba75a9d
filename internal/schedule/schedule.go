// Package schedule runs periodic background jobs, currently the
// nightly roster sync from the school information system.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/classeye/classeye/internal/storage/sis"
)

// RosterSyncer runs one roster import. Implemented by sis.Importer.
type RosterSyncer interface {
	Run(ctx context.Context) (sis.ImportStats, error)
}

// Scheduler wraps the cron runner.
type Scheduler struct {
	cron *gocron.Scheduler
	log  *slog.Logger
}

// New creates a stopped scheduler.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron: gocron.NewScheduler(time.UTC),
		log:  log,
	}
}

// AddRosterSync registers the roster import. spec is either a daily
// time ("02:00") or a five-field cron expression ("0 2 * * *").
func (s *Scheduler) AddRosterSync(spec string, syncer RosterSyncer) error {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		s.log.Info("scheduled roster sync starting")
		stats, err := syncer.Run(ctx)
		if err != nil {
			s.log.Error("scheduled roster sync failed", "err", err)
			return
		}
		s.log.Info("scheduled roster sync done",
			"classes", stats.Classes, "students", stats.Students, "failed", stats.Failed)
	}

	var err error
	if strings.Contains(spec, " ") {
		_, err = s.cron.Cron(spec).Do(run)
	} else {
		_, err = s.cron.Every(1).Day().At(spec).Do(run)
	}
	if err != nil {
		return fmt.Errorf("registering roster sync %q: %w", spec, err)
	}
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return s.cron.Len()
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

// Stop halts job execution and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
