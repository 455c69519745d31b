package sweeper

import (
	"time"

	"github.com/smallbiznis/meterbill/internal/config"
)

// Config controls sweep intervals and retry batch sizes.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	RetryThreshold    time.Duration
	MaxRetryBatchSize int
	DisabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Hour,
		JobTimeout:        5 * time.Minute,
		RetryThreshold:    30 * time.Minute,
		MaxRetryBatchSize: 100,
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
	if c.RetryThreshold <= 0 {
		c.RetryThreshold = defaults.RetryThreshold
	}
	if c.MaxRetryBatchSize <= 0 {
		c.MaxRetryBatchSize = defaults.MaxRetryBatchSize
	}
	return c
}

// ProvideConfig snapshots the hot-reloadable billing settings at startup.
func ProvideConfig(holder *config.BillingConfigHolder) Config {
	billing := holder.Get()
	return Config{
		RunInterval:       billing.SweepInterval,
		JobTimeout:        billing.JobTimeout,
		RetryThreshold:    billing.RetryThreshold,
		MaxRetryBatchSize: billing.MaxRetryBatchSize,
		DisabledJobs:      billing.DisabledJobs,
	}.withDefaults()
}
