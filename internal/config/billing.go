package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig tunes the sweep loop. It is hot-reloadable so operators can
// pause jobs or change batch sizes without restarting the process.
type BillingConfig struct {
	SweepInterval     time.Duration `mapstructure:"sweepInterval"`
	JobTimeout        time.Duration `mapstructure:"jobTimeout"`
	RetryThreshold    time.Duration `mapstructure:"retryThreshold"`
	MaxRetryBatchSize int           `mapstructure:"maxRetryBatchSize"`
	DisabledJobs      []string      `mapstructure:"disabledJobs"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		SweepInterval:     time.Hour,
		JobTimeout:        5 * time.Minute,
		RetryThreshold:    30 * time.Minute,
		MaxRetryBatchSize: 100,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/meterbill/config") // Volume-mounted config
	v.AddConfigPath("/etc/meterbill")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("METERBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.sweepInterval", defaults.SweepInterval)
		v.SetDefault("billing.jobTimeout", defaults.JobTimeout)
		v.SetDefault("billing.retryThreshold", defaults.RetryThreshold)
		v.SetDefault("billing.maxRetryBatchSize", defaults.MaxRetryBatchSize)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	cfg = withBillingDefaults(cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		updated = withBillingDefaults(updated)
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func withBillingDefaults(cfg BillingConfig) BillingConfig {
	defaults := DefaultBillingConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	if cfg.RetryThreshold <= 0 {
		cfg.RetryThreshold = defaults.RetryThreshold
	}
	if cfg.MaxRetryBatchSize <= 0 {
		cfg.MaxRetryBatchSize = defaults.MaxRetryBatchSize
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.SweepInterval < time.Minute {
		return errors.New("billing.sweepInterval must be at least one minute")
	}
	return nil
}
