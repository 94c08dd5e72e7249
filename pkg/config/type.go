package config

const (
	StorageSQLite   = "sqlite"
	StorageInfluxDB = "influxdb"
)

type DashboardWatchConfig struct {
	DashboardAPIHost string `toml:"dashboard_api_host"`
	TLSEnabled       bool   `toml:"tls_enabled"`
	Tenant           string `toml:"tenant"`
	// One of 1d, 7d, 30d or cycle
	Preset string `toml:"preset"`
}

type DashboardAPIConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	// sqlite or influxdb
	Storage    string `toml:"storage"`
	SQLitePath string `toml:"sqlite_path"`
	// IANA zone billing cycles are resolved in
	Timezone               string         `toml:"timezone"`
	FetchTimeoutSeconds    int            `toml:"fetch_timeout_seconds"`
	RefreshIntervalSeconds int            `toml:"refresh_interval_seconds"`
	InfluxDB               InfluxDBConfig `toml:"influxdb"`
}

type InfluxDBConfig struct {
	URL    string `toml:"url"`
	Org    string `toml:"org"`
	Bucket string `toml:"bucket"`
	Token  string `toml:"token"`
	// InfluxDB holds no settings table. These apply to every tenant,
	// TenantSettings override them per tenant.
	DefaultSettings map[string]string            `toml:"default_settings"`
	TenantSettings  map[string]map[string]string `toml:"tenant_settings"`
}
