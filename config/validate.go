package config

import (
	"github.com/meridian-hq/ABMX/errors"
)

// Validate checks the configuration for invalid values. A nil Server.Port is
// valid (the default port is used); an explicit 0 is not.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}

	if c.Server.Port != nil {
		port := *c.Server.Port
		if port < 1 || port > 65535 {
			return errors.Newf("server.port must be between 1 and 65535, got %d", port)
		}
	}

	if err := c.Cache.Entity.validateTier("cache.entity"); err != nil {
		return err
	}
	if err := c.Cache.Score.validateTier("cache.score"); err != nil {
		return err
	}
	if err := c.Cache.Prompt.validateTier("cache.prompt"); err != nil {
		return err
	}

	if c.Scheduler.TickSeconds < 1 {
		return errors.Newf("scheduler.tick_seconds must be at least 1, got %d", c.Scheduler.TickSeconds)
	}
	if c.Scheduler.Workers < 1 {
		return errors.Newf("scheduler.workers must be at least 1, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.StopTimeoutSeconds < 1 {
		return errors.Newf("scheduler.stop_timeout_seconds must be at least 1, got %d", c.Scheduler.StopTimeoutSeconds)
	}

	if c.Sweep.Enabled {
		if c.Sweep.IntervalSeconds < 1 {
			return errors.Newf("sweep.interval_seconds must be at least 1, got %d", c.Sweep.IntervalSeconds)
		}
		if c.Sweep.BatchSize < 1 {
			return errors.Newf("sweep.batch_size must be at least 1, got %d", c.Sweep.BatchSize)
		}
		if c.Sweep.Concurrency < 1 {
			return errors.Newf("sweep.concurrency must be at least 1, got %d", c.Sweep.Concurrency)
		}
	}

	if c.Scoring.BaseScore < 0 || c.Scoring.BaseScore > 1 {
		return errors.Newf("scoring.base_score must be between 0 and 1, got %v", c.Scoring.BaseScore)
	}

	if c.Provider.RequestsPerSecond < 0 {
		return errors.Newf("provider.requests_per_second must not be negative, got %v", c.Provider.RequestsPerSecond)
	}
	if c.Provider.Burst < 0 {
		return errors.Newf("provider.burst must not be negative, got %d", c.Provider.Burst)
	}
	if c.Provider.TimeoutSeconds < 0 {
		return errors.Newf("provider.timeout_seconds must not be negative, got %d", c.Provider.TimeoutSeconds)
	}

	return nil
}

func (t CacheTierConfig) validateTier(name string) error {
	if t.MaxSize < 1 {
		return errors.Newf("%s.max_size must be at least 1, got %d", name, t.MaxSize)
	}
	if t.TTLSeconds < 1 {
		return errors.Newf("%s.ttl_seconds must be at least 1, got %d", name, t.TTLSeconds)
	}
	return nil
}
