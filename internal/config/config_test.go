package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "TL-DL", cfg.Fleet.RegionCode)
	assert.Equal(t, 14, cfg.Fleet.TotalATMs)
	assert.Equal(t, 2, cfg.Vendor.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Vendor.RetryDelay)
	assert.Equal(t, 900*time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.Persistence.UseNewTables)
	assert.False(t, cfg.Persistence.LegacyTables)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vendor:
  base_url: https://vendor.example.com:8443
  username: monitor
fleet:
  total_atms: 16
scheduler:
  interval: 300s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://vendor.example.com:8443", cfg.Vendor.BaseURL)
	assert.Equal(t, 16, cfg.Fleet.TotalATMs)
	assert.Equal(t, 300*time.Second, cfg.Scheduler.Interval)
	// Untouched fields keep their defaults.
	assert.Equal(t, "TL-DL", cfg.Fleet.RegionCode)
	assert.Equal(t, 2, cfg.Vendor.MaxRetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  host: from-file
  port: 5432
`), 0o644))

	t.Setenv("DB_HOST", "from-env")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("VENDOR_PASSWORD", "secret-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "secret-from-env", cfg.Vendor.Password)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Fleet, cfg.Fleet)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero_total_atms", func(c *Config) { c.Fleet.TotalATMs = 0 }},
		{"empty_region", func(c *Config) { c.Fleet.RegionCode = "" }},
		{"negative_retries", func(c *Config) { c.Vendor.MaxRetries = -1 }},
		{"zero_interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"empty_registry_path", func(c *Config) { c.Registry.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.internal", Port: 5432, Name: "atmwatch",
		User: "collector", Password: "pw", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal port=5432 dbname=atmwatch user=collector password=pw sslmode=require",
		d.DSN())
}
