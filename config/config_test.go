package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/project config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Database.Path != "abmx.db" {
		t.Errorf("expected default database path 'abmx.db', got %q", cfg.Database.Path)
	}

	if cfg.Cache.Entity.MaxSize != DefaultEntityCacheSize {
		t.Errorf("expected entity cache size %d, got %d", DefaultEntityCacheSize, cfg.Cache.Entity.MaxSize)
	}
	if cfg.Cache.Score.TTLSeconds != DefaultScoreCacheTTL {
		t.Errorf("expected score cache TTL %d, got %d", DefaultScoreCacheTTL, cfg.Cache.Score.TTLSeconds)
	}

	if cfg.Scheduler.TickSeconds != 1 {
		t.Errorf("expected default tick 1s, got %d", cfg.Scheduler.TickSeconds)
	}
	if cfg.Scheduler.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Scheduler.Workers)
	}

	if cfg.Scoring.BaseScore != 0.5 {
		t.Errorf("expected default base score 0.5, got %v", cfg.Scoring.BaseScore)
	}
}

func TestDurationHelpers(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if got := cfg.Scheduler.TickInterval(); got != time.Second {
		t.Errorf("expected tick interval 1s, got %v", got)
	}
	if got := cfg.Scheduler.StopTimeout(); got != 10*time.Second {
		t.Errorf("expected stop timeout 10s, got %v", got)
	}
	if got := cfg.Cache.Entity.TTL(); got != time.Hour {
		t.Errorf("expected entity TTL 1h, got %v", got)
	}
	if got := cfg.Sweep.Interval(); got != time.Hour {
		t.Errorf("expected sweep interval 1h, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		v := viper.New()
		SetDefaults(v)
		cfg, err := LoadWithViper(v)
		if err != nil {
			t.Fatalf("LoadWithViper() failed: %v", err)
		}
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "nil port is valid (default used)",
			mutate:  func(c *Config) { c.Server.Port = nil },
			wantErr: false,
		},
		{
			name: "zero port is invalid",
			mutate: func(c *Config) {
				zero := 0
				c.Server.Port = &zero
			},
			wantErr: true,
		},
		{
			name:    "empty database path is invalid",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "zero cache size is invalid",
			mutate:  func(c *Config) { c.Cache.Entity.MaxSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero cache TTL is invalid",
			mutate:  func(c *Config) { c.Cache.Score.TTLSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "zero tick is invalid",
			mutate:  func(c *Config) { c.Scheduler.TickSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "zero workers is invalid",
			mutate:  func(c *Config) { c.Scheduler.Workers = 0 },
			wantErr: true,
		},
		{
			name: "disabled sweep skips sweep checks",
			mutate: func(c *Config) {
				c.Sweep.Enabled = false
				c.Sweep.BatchSize = 0
			},
			wantErr: false,
		},
		{
			name: "enabled sweep with zero batch is invalid",
			mutate: func(c *Config) {
				c.Sweep.Enabled = true
				c.Sweep.BatchSize = 0
			},
			wantErr: true,
		},
		{
			name:    "base score above 1 is invalid",
			mutate:  func(c *Config) { c.Scoring.BaseScore = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative base score is invalid",
			mutate:  func(c *Config) { c.Scoring.BaseScore = -0.1 },
			wantErr: true,
		},
		{
			name:    "negative provider rate is invalid",
			mutate:  func(c *Config) { c.Provider.RequestsPerSecond = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"database.path", "abmx.db"},
		{"cache.entity.max_size", DefaultEntityCacheSize},
		{"cache.entity.ttl_seconds", DefaultEntityCacheTTL},
		{"cache.score.max_size", DefaultScoreCacheSize},
		{"cache.score.ttl_seconds", DefaultScoreCacheTTL},
		{"cache.prompt.max_size", DefaultPromptCacheSize},
		{"cache.prompt.ttl_seconds", DefaultPromptCacheTTL},
		{"scheduler.tick_seconds", 1},
		{"scheduler.workers", 4},
		{"scheduler.stop_timeout_seconds", 10},
		{"sweep.enabled", true},
		{"sweep.interval_seconds", 3600},
		{"scoring.base_score", 0.5},
		{"provider.timeout_seconds", 10},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := v.Get(tt.key)
			if got != tt.expected {
				t.Errorf("default %s = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "abmx.toml")

	content := `
[database]
path = "/tmp/custom.db"

[scheduler]
tick_seconds = 2
workers = 8

[scoring]
base_score = 0.4
`
	if err := os.WriteFile(configPath, []byte(content), DefaultFilePermissions); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("expected overridden database path, got %q", cfg.Database.Path)
	}
	if cfg.Scheduler.TickSeconds != 2 {
		t.Errorf("expected tick 2, got %d", cfg.Scheduler.TickSeconds)
	}
	if cfg.Scheduler.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Scoring.BaseScore != 0.4 {
		t.Errorf("expected base score 0.4, got %v", cfg.Scoring.BaseScore)
	}

	// Values not in the file keep their defaults
	if cfg.Cache.Entity.MaxSize != DefaultEntityCacheSize {
		t.Errorf("expected default entity cache size, got %d", cfg.Cache.Entity.MaxSize)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("found in parent", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "proj", "subdir")
		os.MkdirAll(subDir, DefaultDirPermissions)
		os.WriteFile(filepath.Join(tmpDir, "proj", "abmx.toml"), []byte(""), DefaultFilePermissions)

		oldWd, _ := os.Getwd()
		defer os.Chdir(oldWd)
		os.Chdir(subDir)

		result := findProjectConfig()
		if result == "" {
			t.Error("expected to find config file")
		}
		if filepath.Base(result) != "abmx.toml" {
			t.Errorf("expected abmx.toml, got %s", filepath.Base(result))
		}
	})

	t.Run("no config found", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "empty", "subdir")
		os.MkdirAll(subDir, DefaultDirPermissions)

		oldWd, _ := os.Getwd()
		defer os.Chdir(oldWd)
		os.Chdir(subDir)

		result := findProjectConfig()
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})
}

func TestGetServerPort_Default(t *testing.T) {
	Reset()
	defer Reset()

	port := GetServerPort()
	if port != DefaultServerPort {
		t.Errorf("expected default port %d, got %d", DefaultServerPort, port)
	}
}
