package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/tablebill/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RegisterCron),
)

func RegisterCron(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	var runner *cron.Cron
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c, err := sched.Start()
			if err != nil {
				return err
			}
			runner = c
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if runner == nil {
				return nil
			}
			select {
			case <-runner.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
