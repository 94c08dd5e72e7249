// Reading import stores manually collected pump readings (JSON) and tenant
// settings in the storage backend configured for the dashboard API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/config"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/influxsource"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/pathing"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/readingdb"
)

type settingFlags map[string]string

func (s settingFlags) String() string { return fmt.Sprint(map[string]string(s)) }

func (s settingFlags) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	s[key] = value
	return nil
}

func main() {
	settings := settingFlags{}
	tenant := flag.String("tenant", "", "tenant the readings belong to")
	file := flag.String("file", "-", "JSON array of readings, - for stdin")
	flag.Var(settings, "set", "tenant setting key=value (sqlite storage only), repeatable")
	flag.Parse()

	if *tenant == "" {
		log.Fatal("-tenant is required")
	}
	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadDashboardAPIConfig(); err != nil {
		log.Fatalf("Failed to load dashboard API config: %v", err)
	}
	cfg := config.ActiveDashboardAPIConfig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	readings, err := readReadings(*file)
	if err != nil {
		log.Fatalf("Failed to read readings: %v", err)
	}

	switch cfg.Storage {
	case config.StorageInfluxDB:
		if len(settings) > 0 {
			log.Warn("Settings are ignored for influxdb storage, set them in dashboard_api.toml")
		}
		src, err := influxsource.NewSource(ctx, cfg.InfluxDB)
		if err != nil {
			log.Fatal(err)
		}
		defer src.Close()
		store(readings, func(r meter.Reading) error { return src.WriteReading(ctx, *tenant, r) })

	default:
		db, err := readingdb.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		for key, value := range settings {
			if err := db.SetTenantSetting(ctx, *tenant, key, value); err != nil {
				log.Fatalf("Failed to store setting %s: %v", key, err)
			}
			log.Printf("Setting %s = %s", key, value)
		}
		store(readings, func(r meter.Reading) error {
			_, err := db.InsertReading(ctx, *tenant, r)
			return err
		})
	}
}

func readReadings(path string) ([]meter.Reading, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	var readings []meter.Reading
	if err := json.NewDecoder(in).Decode(&readings); err != nil {
		return nil, err
	}
	return meter.SortByTime(readings), nil
}

// store writes every reading, skipping duplicates.
func store(readings []meter.Reading, write func(meter.Reading) error) {
	stored, skipped := 0, 0
	for _, r := range readings {
		if err := write(r); err != nil {
			if errors.Is(err, meter.ErrDuplicateReading) {
				skipped++
				continue
			}
			log.Fatalf("Failed to store reading at %s: %v", r.Timestamp.Format(time.RFC3339), err)
		}
		stored++
	}
	log.Printf("Stored %d readings, skipped %d duplicates", stored, skipped)
}
