package pathing

import (
	"os"
	"path/filepath"
)

const (
	DataDirEnv   = "PUMP_FLOW_DATA_DIR"
	ConfigDirEnv = "PUMP_FLOW_CONFIG_DIR"
)

// EnsureDirs creates the data and config directories. Must be called on startup.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
		GetConfigDir(),
	}

	// Create all directories
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}

func GetReadingDbPath() string {
	// Join path
	return filepath.Join(GetDataDir(), "pump-readings.db")
}

func GetDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	return "/var/lib/pump_flow_monitor"
}

func GetConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	return "/etc/pump_flow_monitor"
}
