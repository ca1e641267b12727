// Package config loads collector configuration from YAML with
// environment overrides for database coordinates, logging and vendor
// credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete collector configuration.
type Config struct {
	Vendor      VendorConfig      `yaml:"vendor"`
	Fleet       FleetConfig       `yaml:"fleet"`
	Database    DatabaseConfig    `yaml:"database"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Registry    RegistryConfig    `yaml:"registry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// VendorConfig describes the monitoring API the collector harvests.
type VendorConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	FallbackUser   string        `yaml:"fallback_username"`
	FallbackPass   string        `yaml:"fallback_password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	RequestPacing  time.Duration `yaml:"request_pacing"`
	UserAgent      string        `yaml:"user_agent"`
}

// FleetConfig pins the region under observation and the fleet size
// used for percentage-to-count arithmetic.
type FleetConfig struct {
	RegionCode string `yaml:"region_code"`
	TotalATMs  int    `yaml:"total_atms"`
}

// DatabaseConfig carries PostgreSQL coordinates. DSN assembles them
// into a lib/pq connection string.
type DatabaseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Name         string        `yaml:"name"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	SSLMode      string        `yaml:"ssl_mode"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// PersistenceConfig selects which write paths a cycle takes.
type PersistenceConfig struct {
	Enabled      bool `yaml:"enabled"`
	UseNewTables bool `yaml:"use_new_tables"`
	LegacyTables bool `yaml:"legacy_tables"`
}

// RegistryConfig locates the durable terminal registry file.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls zerolog destination and verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SchedulerConfig paces continuous operation.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration the collector runs with when no
// file is supplied.
func Default() Config {
	return Config{
		Vendor: VendorConfig{
			ConnectTimeout: 30 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxRetries:     2,
			RetryDelay:     3 * time.Second,
			PingTimeout:    15 * time.Second,
			RequestPacing:  200 * time.Millisecond,
			UserAgent:      "atmwatch/1.0",
		},
		Fleet: FleetConfig{
			RegionCode: "TL-DL",
			TotalATMs:  14,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			SSLMode:      "disable",
			QueryTimeout: 30 * time.Second,
		},
		Persistence: PersistenceConfig{
			UseNewTables: true,
		},
		Registry: RegistryConfig{
			Path: "terminal_registry.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			Interval: 900 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("VENDOR_BASE_URL"); v != "" {
		c.Vendor.BaseURL = v
	}
	if v := os.Getenv("VENDOR_USERNAME"); v != "" {
		c.Vendor.Username = v
	}
	if v := os.Getenv("VENDOR_PASSWORD"); v != "" {
		c.Vendor.Password = v
	}
	if v := os.Getenv("VENDOR_FALLBACK_USERNAME"); v != "" {
		c.Vendor.FallbackUser = v
	}
	if v := os.Getenv("VENDOR_FALLBACK_PASSWORD"); v != "" {
		c.Vendor.FallbackPass = v
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Fleet.TotalATMs <= 0 {
		return fmt.Errorf("fleet total_atms must be positive, got %d", c.Fleet.TotalATMs)
	}
	if c.Fleet.RegionCode == "" {
		return fmt.Errorf("fleet region_code cannot be empty")
	}
	if c.Vendor.MaxRetries < 0 {
		return fmt.Errorf("vendor max_retries cannot be negative, got %d", c.Vendor.MaxRetries)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %v", c.Scheduler.Interval)
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry path cannot be empty")
	}
	return nil
}

// DSN assembles the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}
