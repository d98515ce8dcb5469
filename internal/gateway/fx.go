package gateway

import (
	"github.com/smallbiznis/tablebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Factory builds a concrete gateway from credentials. Registered by the
// provider package so this package stays free of SDK imports.
type Factory func(keyID, keySecret string, log *zap.Logger) Gateway

func provide(cfg config.Config, factory Factory, log *zap.Logger) Gateway {
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		log.Warn("payment gateway credentials missing; checkout and verification are disabled")
		return Disabled()
	}
	return factory(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, log)
}

func Module(factory Factory) fx.Option {
	return fx.Module("gateway",
		fx.Supply(factory),
		fx.Provide(provide),
	)
}
