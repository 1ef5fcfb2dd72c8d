package config

import "time"

// Config represents the core ABMX configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Provider  ProviderConfig  `mapstructure:"provider"`
}

// DatabaseConfig configures the SQLite document store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the ABMX web server
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // nil = default 8710, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Server port constants
const (
	DefaultServerPort  = 8710 // Development port (above privileged range)
	FallbackServerPort = 8711 // Fallback when the default is taken
)

// CacheConfig configures the three result-cache tiers. TTLs are in
// seconds; zero means "use the default", not "no expiry".
type CacheConfig struct {
	Entity CacheTierConfig `mapstructure:"entity"`
	Score  CacheTierConfig `mapstructure:"score"`
	Prompt CacheTierConfig `mapstructure:"prompt"`
}

// CacheTierConfig configures one bounded TTL cache
type CacheTierConfig struct {
	MaxSize    int `mapstructure:"max_size"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// SchedulerConfig configures the background task scheduler
type SchedulerConfig struct {
	TickSeconds        int `mapstructure:"tick_seconds"`         // How often to check for due tasks (default: 1)
	Workers            int `mapstructure:"workers"`              // Bounded worker pool size (default: 4)
	StopTimeoutSeconds int `mapstructure:"stop_timeout_seconds"` // Bounded wait on Stop() (default: 10)
}

// SweepConfig configures the periodic re-scoring sweep
type SweepConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"` // How often the sweep task fires (default: 3600)
	BatchSize       int  `mapstructure:"batch_size"`       // Entities re-scored per sweep (default: 50)
	Concurrency     int  `mapstructure:"concurrency"`      // Parallel re-scores within one sweep (default: 4)
}

// ScoringConfig configures the relevance scoring rules
type ScoringConfig struct {
	RulesPath  string  `mapstructure:"rules_path"`  // YAML rule file; empty = built-in defaults
	WatchRules bool    `mapstructure:"watch_rules"` // Reload the rule file on change
	BaseScore  float64 `mapstructure:"base_score"`  // Score before any signal fires (default: 0.5)
}

// ProviderConfig configures the upstream CRM provider
type ProviderConfig struct {
	BaseURL           string `mapstructure:"base_url"`            // Empty = static in-memory provider
	Token             string `mapstructure:"token"`               // Bearer token for the hosted CRM API
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`     // Per-request timeout (default: 10)
	RequestsPerSecond int    `mapstructure:"requests_per_second"` // Rate limit toward the provider (default: 5)
	Burst             int    `mapstructure:"burst"`               // Rate limiter burst (default: 10)
}

// TickInterval returns the scheduler tick as a duration
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// StopTimeout returns the bounded stop wait as a duration
func (c SchedulerConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutSeconds) * time.Second
}

// Interval returns the sweep cadence as a duration
func (c SweepConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// TTL returns the tier's time-to-live as a duration
func (c CacheTierConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
