package scheduler

import (
	"time"

	"github.com/smallbiznis/tablebill/internal/config"
)

// Config controls the renewal passes.
type Config struct {
	ReminderCron   string
	ExpirationCron string
	Timezone       string
	ReminderWindow time.Duration
	Concurrency    int
	LockTTL        time.Duration
	JobTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReminderCron:   "0 9 * * *",
		ExpirationCron: "0 0 * * *",
		Timezone:       "UTC",
		ReminderWindow: 5 * 24 * time.Hour,
		Concurrency:    8,
		LockTTL:        10 * time.Minute,
		JobTimeout:     5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	return Config{
		ReminderCron:   sc.ReminderCron,
		ExpirationCron: sc.ExpirationCron,
		Timezone:       sc.Timezone,
		ReminderWindow: time.Duration(sc.ReminderWindowDays) * 24 * time.Hour,
		Concurrency:    sc.Concurrency,
		LockTTL:        sc.LockTTL,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.ReminderCron == "" {
		c.ReminderCron = defaults.ReminderCron
	}
	if c.ExpirationCron == "" {
		c.ExpirationCron = defaults.ExpirationCron
	}
	if c.Timezone == "" {
		c.Timezone = defaults.Timezone
	}
	if c.ReminderWindow <= 0 {
		c.ReminderWindow = defaults.ReminderWindow
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
