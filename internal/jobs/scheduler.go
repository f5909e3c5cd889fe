package jobs

import (
	"context"
	"log"

	"hireloop/config"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic maintenance jobs. Jobs never change payment state.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.JobsConfig
	reminder *ReleaseReminder
}

func NewScheduler(cfg config.JobsConfig, reminder *ReleaseReminder) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &Scheduler{cron: c, cfg: cfg, reminder: reminder}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ReleaseReminderSchedule, func() {
		if _, err := s.reminder.Run(context.Background()); err != nil {
			log.Printf("[Jobs] release reminder: %v", err)
		}
	}); err != nil {
		return err
	}
	log.Printf("[Jobs] release reminder scheduled %q", s.cfg.ReleaseReminderSchedule)
	s.cron.Start()
	return nil
}

// Stop returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
