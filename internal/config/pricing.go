package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig is the per-table price list applied to every restaurant.
type PricingConfig struct {
	PricePerTable  float64 `mapstructure:"pricePerTable"`
	MaxTables      int     `mapstructure:"maxTables"`
	AnnualDiscount float64 `mapstructure:"annualDiscount"`
	BasicMaxTables int     `mapstructure:"basicMaxTables"`
	ProMaxTables   int     `mapstructure:"proMaxTables"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		PricePerTable:  50,
		MaxTables:      1000,
		AnnualDiscount: 0.10,
		BasicMaxTables: 10,
		ProMaxTables:   50,
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingConfigHolder returns a holder that never reloads.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	return NewPricingConfigHolderWithPaths(
		"/var/lib/tablebill/config", // volume-mounted config
		"/etc/tablebill",
		".",
	)
}

// NewPricingConfigHolderWithPaths reads pricing.yml from the first path that
// has one and watches it for changes.
func NewPricingConfigHolderWithPaths(paths ...string) (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("TABLEBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.pricePerTable", defaults.PricePerTable)
	v.SetDefault("pricing.maxTables", defaults.MaxTables)
	v.SetDefault("pricing.annualDiscount", defaults.AnnualDiscount)
	v.SetDefault("pricing.basicMaxTables", defaults.BasicMaxTables)
	v.SetDefault("pricing.proMaxTables", defaults.ProMaxTables)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			zap.L().Warn("pricing config reload failed", zap.Error(err))
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			zap.L().Warn("invalid pricing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("pricing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.PricePerTable <= 0 {
		return errors.New("pricing.pricePerTable must be positive")
	}
	if cfg.MaxTables < 1 {
		return errors.New("pricing.maxTables must be at least 1")
	}
	if cfg.AnnualDiscount < 0 || cfg.AnnualDiscount >= 1 {
		return errors.New("pricing.annualDiscount must be in [0, 1)")
	}
	if cfg.BasicMaxTables < 1 || cfg.ProMaxTables <= cfg.BasicMaxTables {
		return errors.New("pricing plan thresholds must be increasing")
	}
	return nil
}
