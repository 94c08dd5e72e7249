package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/pathing"
)

func useTempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(pathing.ConfigDirEnv, dir)
	t.Setenv(pathing.DataDirEnv, dir)
	return dir
}

func TestLoadDashboardAPIConfigCreatesDefault(t *testing.T) {
	dir := useTempConfigDir(t)

	require.NoError(t, LoadDashboardAPIConfig())
	require.NotNil(t, ActiveDashboardAPIConfig)
	assert.Equal(t, StorageSQLite, ActiveDashboardAPIConfig.Storage)
	assert.Equal(t, 9040, ActiveDashboardAPIConfig.ListenPort)
	assert.Equal(t, filepath.Join(dir, "pump-readings.db"), ActiveDashboardAPIConfig.SQLitePath)

	_, err := os.Stat(filepath.Join(dir, "dashboard_api.toml"))
	require.NoError(t, err)

	// second load reads the file written by the first
	require.NoError(t, LoadDashboardAPIConfig())
	assert.Equal(t, 10*time.Second, ActiveDashboardAPIConfig.FetchTimeout())
	assert.Equal(t, time.Minute, ActiveDashboardAPIConfig.RefreshInterval())
}

func TestLoadDashboardAPIConfigFromFile(t *testing.T) {
	dir := useTempConfigDir(t)
	content := `
listen_port = 8080
storage = "influxdb"
timezone = "Europe/Lisbon"
refresh_interval_seconds = 15

[influxdb]
url = "http://influx:8086"
bucket = "pumps"
token = "secret"

[influxdb.default_settings]
baseline_days = "14"

[influxdb.tenant_settings.farm-1]
alert_enabled = "false"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard_api.toml"), []byte(content), 0644))

	require.NoError(t, LoadDashboardAPIConfig())
	cfg := ActiveDashboardAPIConfig
	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "0.0.0.0", cfg.ListenAddress, "unset keys keep defaults")
	assert.Equal(t, StorageInfluxDB, cfg.Storage)
	assert.Equal(t, "Europe/Lisbon", cfg.Location().String())
	assert.Equal(t, 15*time.Second, cfg.RefreshInterval())
	assert.Equal(t, "pumps", cfg.InfluxDB.Bucket)
	assert.Equal(t, "14", cfg.InfluxDB.DefaultSettings["baseline_days"])
	assert.Equal(t, "false", cfg.InfluxDB.TenantSettings["farm-1"]["alert_enabled"])
}

func TestDashboardAPIConfigValidate(t *testing.T) {
	cfg := DefaultDashboardAPIConfig()
	require.NoError(t, cfg.Validate())

	cfg.Storage = "postgres"
	cfg.ListenPort = 0
	cfg.Timezone = "Mars/Olympus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "storage")
	assert.Contains(t, err.Error(), "listen_port")
	assert.Contains(t, err.Error(), "timezone")
}

func TestLoadDashboardWatchConfig(t *testing.T) {
	dir := useTempConfigDir(t)

	require.NoError(t, LoadDashboardWatchConfig())
	assert.Equal(t, "localhost:9040", ActiveDashboardWatchConfig.DashboardAPIHost)
	assert.Equal(t, "cycle", ActiveDashboardWatchConfig.Preset)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard_watch.toml"), []byte(`tenant = ""`), 0644))
	assert.ErrorIs(t, LoadDashboardWatchConfig(), ErrInvalidConfig)
}
