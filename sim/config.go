package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups every tunable named in §6.1. Zero-valued fields are filled
// in by DefaultConfig; LoadConfig always returns a fully-populated Config or
// a wrapped ErrConfigError.
type Config struct {
	SimSpeedFactor            float64 `yaml:"sim_speed_factor"`
	MaxQueueSize              int     `yaml:"max_queue_size"`
	BatchSize                 int     `yaml:"batch_size"`
	BatchRetryBackoffsSec     []int   `yaml:"batch_retry_backoffs_sec"`
	DecideScoreThreshold      float64 `yaml:"decide_score_threshold"`
	TrendArchiveThresholdDays int     `yaml:"trend_archive_threshold_days"`
	PostCooldownMin           int     `yaml:"post_cooldown_min"`
	SelfDevCooldownMin        int     `yaml:"self_dev_cooldown_min"`
	MaxPurchasesDay           int     `yaml:"max_purchases_day"`
	ShutdownTimeoutSec        int     `yaml:"shutdown_timeout_sec"`
	EnergyRecoveryIntervalMin int     `yaml:"energy_recovery_interval_min"`
	CacheTTLMin               int     `yaml:"cache_ttl_min"`
	CacheMaxSize              int     `yaml:"cache_max_size"`
	ExposureResetMin          int     `yaml:"exposure_reset_min"` // §9 open question (b)

	Seed       int64 `yaml:"seed"`
	AgentCount int   `yaml:"agent_count"`
	HorizonMin int   `yaml:"horizon_min"`
}

// DefaultConfig returns the documented defaults from §6.1, plus the §9(b)
// default for ExposureResetMin (1440).
func DefaultConfig() Config {
	return Config{
		SimSpeedFactor:            60,
		MaxQueueSize:              DefaultMaxQueueSize,
		BatchSize:                 100,
		BatchRetryBackoffsSec:     []int{1, 2, 4},
		DecideScoreThreshold:      0.25,
		TrendArchiveThresholdDays: 3,
		PostCooldownMin:           60,
		SelfDevCooldownMin:        30,
		MaxPurchasesDay:           5,
		ShutdownTimeoutSec:        30,
		EnergyRecoveryIntervalMin: 1440,
		CacheTTLMin:               2880,
		CacheMaxSize:              10000,
		ExposureResetMin:          1440,
		Seed:                      1,
		AgentCount:                100,
		HorizonMin:                1440,
	}
}

// LoadConfig reads a YAML document at path, overlays it onto DefaultConfig,
// and validates the result. Strict field checking (KnownFields) matches the
// teacher's cmd/default_config.go: a typo'd key is a load-time ConfigError,
// not a silently-ignored field.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfigError, path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrConfigError, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every tunable is within the ranges implied by §6.1
// and §4. Returns ErrConfigError wrapped with the offending field on failure.
func (c Config) Validate() error {
	switch {
	case c.SimSpeedFactor <= 0:
		return fmt.Errorf("%w: sim_speed_factor must be > 0, got %v", ErrConfigError, c.SimSpeedFactor)
	case c.MaxQueueSize <= 0:
		return fmt.Errorf("%w: max_queue_size must be > 0, got %d", ErrConfigError, c.MaxQueueSize)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be > 0, got %d", ErrConfigError, c.BatchSize)
	case len(c.BatchRetryBackoffsSec) == 0:
		return fmt.Errorf("%w: batch_retry_backoffs_sec must be non-empty", ErrConfigError)
	case c.DecideScoreThreshold < 0:
		return fmt.Errorf("%w: decide_score_threshold must be >= 0, got %v", ErrConfigError, c.DecideScoreThreshold)
	case c.TrendArchiveThresholdDays <= 0:
		return fmt.Errorf("%w: trend_archive_threshold_days must be > 0, got %d", ErrConfigError, c.TrendArchiveThresholdDays)
	case c.PostCooldownMin < 0:
		return fmt.Errorf("%w: post_cooldown_min must be >= 0, got %d", ErrConfigError, c.PostCooldownMin)
	case c.SelfDevCooldownMin < 0:
		return fmt.Errorf("%w: self_dev_cooldown_min must be >= 0, got %d", ErrConfigError, c.SelfDevCooldownMin)
	case c.MaxPurchasesDay <= 0:
		return fmt.Errorf("%w: max_purchases_day must be > 0, got %d", ErrConfigError, c.MaxPurchasesDay)
	case c.ShutdownTimeoutSec <= 0:
		return fmt.Errorf("%w: shutdown_timeout_sec must be > 0, got %d", ErrConfigError, c.ShutdownTimeoutSec)
	case c.EnergyRecoveryIntervalMin <= 0:
		return fmt.Errorf("%w: energy_recovery_interval_min must be > 0, got %d", ErrConfigError, c.EnergyRecoveryIntervalMin)
	case c.ExposureResetMin <= 0:
		return fmt.Errorf("%w: exposure_reset_min must be > 0, got %d", ErrConfigError, c.ExposureResetMin)
	case c.AgentCount <= 0:
		return fmt.Errorf("%w: agent_count must be > 0, got %d", ErrConfigError, c.AgentCount)
	}
	return nil
}

// RetryBackoffs returns the configured retry schedule as a slice of
// seconds, defaulting to [1, 2, 4] (§4.3) if unset.
func (c Config) RetryBackoffs() []int {
	if len(c.BatchRetryBackoffsSec) == 0 {
		return []int{1, 2, 4}
	}
	return c.BatchRetryBackoffsSec
}
