package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/cache"
	"github.com/smallbiznis/tablebill/internal/clock"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/events"
	"github.com/smallbiznis/tablebill/internal/gateway/razorpay"
	"github.com/smallbiznis/tablebill/internal/invoice"
	"github.com/smallbiznis/tablebill/internal/migration"
	"github.com/smallbiznis/tablebill/internal/notification"
	"github.com/smallbiznis/tablebill/internal/observability"
	"github.com/smallbiznis/tablebill/internal/payment"
	"github.com/smallbiznis/tablebill/internal/publicinvoice"
	"github.com/smallbiznis/tablebill/internal/ratelimit"
	"github.com/smallbiznis/tablebill/internal/restaurant"
	"github.com/smallbiznis/tablebill/internal/scheduler"
	"github.com/smallbiznis/tablebill/internal/server"
	"github.com/smallbiznis/tablebill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		events.Module,
		notification.Module,
		razorpay.Module,

		// Billing domains
		restaurant.Module,
		invoice.Module,
		payment.Module,
		publicinvoice.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
