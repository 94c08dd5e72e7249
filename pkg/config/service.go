package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/pathing"
)

var ErrInvalidConfig = errors.New("invalid config")

var (
	ActiveDashboardAPIConfig   *DashboardAPIConfig
	ActiveDashboardWatchConfig *DashboardWatchConfig
)

func DefaultDashboardAPIConfig() *DashboardAPIConfig {
	return &DashboardAPIConfig{
		ListenAddress:          "0.0.0.0",
		ListenPort:             9040,
		Storage:                StorageSQLite,
		SQLitePath:             pathing.GetReadingDbPath(),
		Timezone:               "UTC",
		FetchTimeoutSeconds:    10,
		RefreshIntervalSeconds: 60,
		InfluxDB: InfluxDBConfig{
			URL:             "http://localhost:8086",
			Org:             "pump_flow",
			Bucket:          "pump_readings",
			DefaultSettings: map[string]string{},
			TenantSettings:  map[string]map[string]string{},
		},
	}
}

func DefaultDashboardWatchConfig() *DashboardWatchConfig {
	return &DashboardWatchConfig{
		DashboardAPIHost: "localhost:9040",
		TLSEnabled:       false,
		Tenant:           "default",
		Preset:           "cycle",
	}
}

func LoadDashboardAPIConfig() error {
	cfg := DefaultDashboardAPIConfig()
	if err := loadOrCreate("dashboard_api.toml", cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ActiveDashboardAPIConfig = cfg
	return nil
}

func LoadDashboardWatchConfig() error {
	cfg := DefaultDashboardWatchConfig()
	if err := loadOrCreate("dashboard_watch.toml", cfg); err != nil {
		return err
	}
	if cfg.Tenant == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalidConfig)
	}
	ActiveDashboardWatchConfig = cfg
	return nil
}

// loadOrCreate decodes the named file in the config dir over cfg, which holds
// the defaults. A missing file is created from those defaults.
func loadOrCreate(name string, cfg any) error {
	configPath := filepath.Join(pathing.GetConfigDir(), name)

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	// Load existing config
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (c *DashboardAPIConfig) Validate() error {
	var errs []error
	if c.Storage != StorageSQLite && c.Storage != StorageInfluxDB {
		errs = append(errs, fmt.Errorf("%w: storage must be %q or %q, got %q",
			ErrInvalidConfig, StorageSQLite, StorageInfluxDB, c.Storage))
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("%w: listen_port %d out of range", ErrInvalidConfig, c.ListenPort))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("%w: timezone: %v", ErrInvalidConfig, err))
	}
	if c.Storage == StorageInfluxDB && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, fmt.Errorf("%w: influxdb url and bucket are required", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

func (c *DashboardAPIConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DashboardAPIConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c *DashboardAPIConfig) RefreshInterval() time.Duration {
	if c.RefreshIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}
