package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Campuses   []CampusSeed     `yaml:"campuses"`
	Directory  []UserSeed       `yaml:"directory"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the delivery worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// SweepConfig drives the overdue check-in sweep. The interval must be
// finer than the smallest check-in interval in use; escalation to staff
// and re-escalation dedup are policy values, not hardcoded.
type SweepConfig struct {
	Enabled                  bool          `yaml:"enabled"`
	IntervalSeconds          int           `yaml:"interval_seconds"`
	Interval                 time.Duration `yaml:"-"` // Ignored by YAML parser
	StaffThresholdMultiplier float64       `yaml:"staff_threshold_multiplier"`
	EscalationDedupMinutes   int           `yaml:"escalation_dedup_minutes"`
	RunTimeoutSeconds        int           `yaml:"run_timeout_seconds"`
}

// CampusSeed describes a university loaded into the registry at startup.
type CampusSeed struct {
	Name             string   `yaml:"name"`
	Center           LatLng   `yaml:"center"`
	CoverageRadiusKm float64  `yaml:"coverage_radius_km"`
	Boundary         []LatLng `yaml:"boundary"`
}

// LatLng is a plain coordinate pair used in seed data.
type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// UserSeed describes a directory account loaded at startup. Identity and
// auth live outside this service; the seed list only gives the directory
// something to resolve against in development deployments.
type UserSeed struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Role   string `yaml:"role"` // "student", "staff" or "security"
	Campus string `yaml:"campus"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}

	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 60
	}
	cfg.Sweep.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second
	if cfg.Sweep.StaffThresholdMultiplier <= 0 {
		cfg.Sweep.StaffThresholdMultiplier = 3
	}
	if cfg.Sweep.RunTimeoutSeconds <= 0 {
		cfg.Sweep.RunTimeoutSeconds = 30
	}

	for i, campus := range cfg.Campuses {
		if len(campus.Boundary) > 0 && len(campus.Boundary) < 3 {
			return nil, fmt.Errorf("campus %q: boundary needs at least 3 vertices, got %d", campus.Name, len(campus.Boundary))
		}
		if campus.CoverageRadiusKm <= 0 {
			cfg.Campuses[i].CoverageRadiusKm = 5
		}
	}

	return &cfg, nil
}
