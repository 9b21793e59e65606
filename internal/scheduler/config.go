package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/settlement/internal/config"
)

const (
	JobSyncCredits = "sync_credits"
	JobSettleAll   = "settle_all"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
	SyncLimit   int
	// EnabledJobs lists the jobs to run. settle_all creates payouts and must be
	// listed explicitly.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
		SyncLimit:   500,
		EnabledJobs: []string{JobSyncCredits},
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.SyncLimit <= 0 || c.SyncLimit > 1000 {
		c.SyncLimit = defaults.SyncLimit
	}
	if len(c.EnabledJobs) == 0 {
		c.EnabledJobs = defaults.EnabledJobs
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	out := Config{
		Enabled:     cfg.Scheduler.Enabled,
		RunInterval: cfg.Scheduler.Interval,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		SyncLimit:   cfg.Scheduler.SyncLimit,
	}
	for _, job := range strings.Split(cfg.Scheduler.Jobs, ",") {
		if job = strings.TrimSpace(job); job != "" {
			out.EnabledJobs = append(out.EnabledJobs, job)
		}
	}
	return out.withDefaults()
}
