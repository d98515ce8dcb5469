package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/tablebill/internal/observability/context"
	obslogger "github.com/smallbiznis/tablebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tablebill/internal/observability/metrics"
	"go.uber.org/zap"
)

type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
}

func (s *Scheduler) newJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	return obscontext.WithActor(ctx, "system", "scheduler"), run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun, selected int) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("selected", selected),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, res BatchResult) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("selected", res.Selected),
		zap.Int("created", res.Created),
		zap.Int("resent", res.Resent),
		zap.Int("failed", res.Failed),
	}
	log := s.logger(ctx)
	if res.Failed > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logItemError(ctx context.Context, job string, restaurantID snowflake.ID, err error) {
	ctx = obscontext.WithRestaurantID(ctx, restaurantID.String())
	s.logger(ctx).Error("scheduler.item.failed",
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
