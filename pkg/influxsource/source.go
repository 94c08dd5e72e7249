// Package influxsource reads pump readings stored as InfluxDB v2 points.
package influxsource

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/config"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
)

// Source implements dashboard.ReadingSource. Tenant settings come from
// configuration since the bucket holds only readings.
type Source struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	cfg      config.InfluxDBConfig
}

// NewSource connects and verifies the server is healthy.
func NewSource(ctx context.Context, cfg config.InfluxDBConfig) (*Source, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	log.Printf("Connected to InfluxDB at %s, bucket %s", cfg.URL, cfg.Bucket)
	return &Source{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}, nil
}

func (s *Source) Close() {
	s.client.Close()
}

func (s *Source) ListReadingsInRange(ctx context.Context, tenant string, from, to time.Time) ([]meter.Reading, error) {
	return s.query(ctx, rangeQuery(s.cfg.Bucket, tenant, from, to))
}

func (s *Source) FindNearestBefore(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error) {
	return s.queryOne(ctx, beforeQuery(s.cfg.Bucket, tenant, ts))
}

func (s *Source) FindNearestAfter(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error) {
	return s.queryOne(ctx, afterQuery(s.cfg.Bucket, tenant, ts))
}

func (s *Source) GetTenantSettings(_ context.Context, tenant string) (map[string]string, error) {
	return mergeSettings(s.cfg.DefaultSettings, s.cfg.TenantSettings[tenant]), nil
}

// WriteReading stores r as a point tagged with tenant. Points sharing a
// timestamp would be merged by InfluxDB, so an existing reading at r.Timestamp
// yields meter.ErrDuplicateReading. The lookup and the write are not atomic.
func (s *Source) WriteReading(ctx context.Context, tenant string, r meter.Reading) error {
	if r.Virtual {
		return meter.ErrVirtualReading
	}
	existing, err := s.queryOne(ctx, pointQuery(s.cfg.Bucket, tenant, r.Timestamp))
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", meter.ErrDuplicateReading, r.Timestamp.Format(time.RFC3339))
	}

	point := write.NewPoint(
		Measurement,
		map[string]string{TagTenant: tenant},
		readingFields(r),
		r.Timestamp,
	)
	return s.writeAPI.WritePoint(ctx, point)
}

func (s *Source) query(ctx context.Context, flux string) ([]meter.Reading, error) {
	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("flux query: %w", err)
	}
	defer result.Close()

	readings := []meter.Reading{}
	for result.Next() {
		record := result.Record()
		r, err := readingFromValues(record.Time(), record.Values())
		if err != nil {
			return nil, fmt.Errorf("reading at %s: %w", record.Time().Format(time.RFC3339), err)
		}
		readings = append(readings, r)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("flux result: %w", result.Err())
	}
	return readings, nil
}

func (s *Source) queryOne(ctx context.Context, flux string) (*meter.Reading, error) {
	readings, err := s.query(ctx, flux)
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return &readings[0], nil
}

func mergeSettings(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
