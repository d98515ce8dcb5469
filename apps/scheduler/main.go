package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/cache"
	"github.com/smallbiznis/tablebill/internal/clock"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/events"
	"github.com/smallbiznis/tablebill/internal/invoice"
	"github.com/smallbiznis/tablebill/internal/notification"
	"github.com/smallbiznis/tablebill/internal/observability"
	"github.com/smallbiznis/tablebill/internal/ratelimit"
	"github.com/smallbiznis/tablebill/internal/restaurant"
	"github.com/smallbiznis/tablebill/internal/scheduler"
	"github.com/smallbiznis/tablebill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	runOnce := flag.String("run", "", "run a single pass (reminder|expiration) and exit")
	flag.Parse()

	options := []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		events.Module,
		notification.Module,

		// Domain services required by scheduler
		restaurant.Module,
		invoice.Module,
		scheduler.Module,
	}

	if *runOnce == "" {
		fx.New(options...).Run()
		return
	}

	var (
		sched *scheduler.Scheduler
		log   *zap.Logger
	)
	options = append(options,
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.Scheduler.Enabled = false
			return cfg
		}),
		fx.Populate(&sched, &log),
	)
	app := fx.New(options...)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		os.Exit(1)
	}

	result, err := sched.Run(context.Background(), *runOnce)
	if err != nil {
		log.Error("scheduler pass failed", zap.String("job", *runOnce), zap.Error(err))
	} else {
		_ = json.NewEncoder(os.Stdout).Encode(result)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	_ = app.Stop(stopCtx)
	if err != nil {
		os.Exit(1)
	}
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
