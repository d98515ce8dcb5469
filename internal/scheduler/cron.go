package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Start registers both passes on a cron runner in the scheduler time zone.
func (s *Scheduler) Start() (*cron.Cron, error) {
	logger := cron.PrintfLogger(zap.NewStdLog(s.log.Named("cron")))
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) (BatchResult, error)
	}{
		{JobReminder, s.cfg.ReminderCron, s.RunReminderPass},
		{JobExpiration, s.cfg.ExpirationCron, s.RunExpirationPass},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.schedule, func() {
			if _, err := job.run(context.Background()); err != nil {
				s.log.Error("scheduler pass failed", zap.String("job", job.name), zap.Error(err))
			}
		}); err != nil {
			return nil, err
		}
		s.log.Info("scheduler job registered", zap.String("job", job.name), zap.String("cron", job.schedule), zap.String("timezone", s.loc.String()))
	}

	c.Start()
	return c, nil
}
