package config

import (
	"github.com/spf13/viper"
)

// Cache tier defaults. The score tier runs a day-long TTL because score
// recomputation is the expensive path; entity and prompt tiers turn over
// hourly to track upstream CRM edits.
const (
	DefaultEntityCacheSize = 1000
	DefaultEntityCacheTTL  = 3600 // 1 hour

	DefaultScoreCacheSize = 5000
	DefaultScoreCacheTTL  = 86400 // 24 hours

	DefaultPromptCacheSize = 1000
	DefaultPromptCacheTTL  = 3600 // 1 hour
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "abmx.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
	})

	// Cache defaults
	v.SetDefault("cache.entity.max_size", DefaultEntityCacheSize)
	v.SetDefault("cache.entity.ttl_seconds", DefaultEntityCacheTTL)
	v.SetDefault("cache.score.max_size", DefaultScoreCacheSize)
	v.SetDefault("cache.score.ttl_seconds", DefaultScoreCacheTTL)
	v.SetDefault("cache.prompt.max_size", DefaultPromptCacheSize)
	v.SetDefault("cache.prompt.ttl_seconds", DefaultPromptCacheTTL)

	// Scheduler defaults
	v.SetDefault("scheduler.tick_seconds", 1)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.stop_timeout_seconds", 10)

	// Sweep defaults
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval_seconds", 3600)
	v.SetDefault("sweep.batch_size", 50)
	v.SetDefault("sweep.concurrency", 4)

	// Scoring defaults
	v.SetDefault("scoring.rules_path", "")
	v.SetDefault("scoring.watch_rules", false)
	v.SetDefault("scoring.base_score", 0.5)

	// Provider defaults
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout_seconds", 10)
	v.SetDefault("provider.requests_per_second", 5)
	v.SetDefault("provider.burst", 10)
}
