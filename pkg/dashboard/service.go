// Package dashboard composes readings, intervals, KPIs, baseline and alerts
// for one tenant and reporting window.
package dashboard

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/alerts"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/intervals"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/kpi"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/period"
)

// ReadingSource is the storage collaborator. Find* return nil, nil when no
// reading exists on that side.
type ReadingSource interface {
	ListReadingsInRange(ctx context.Context, tenant string, from, to time.Time) ([]meter.Reading, error)
	FindNearestBefore(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error)
	FindNearestAfter(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error)
	GetTenantSettings(ctx context.Context, tenant string) (map[string]string, error)
}

type Dashboard struct {
	Readings  []meter.Reading      `json:"readings"`
	Intervals []intervals.Interval `json:"intervals"`
	KPIs      kpi.Summary          `json:"kpis"`
	Alerts    []alerts.Alert       `json:"alerts"`
	Baseline  *float64             `json:"baseline"`
	Period    period.Window        `json:"period"`
}

// Empty is the "no data" dashboard for w.
func Empty(w period.Window) Dashboard {
	return Dashboard{
		Readings:  []meter.Reading{},
		Intervals: []intervals.Interval{},
		KPIs:      kpi.Empty(),
		Alerts:    []alerts.Alert{},
		Period:    w,
	}
}

const DefaultFetchTimeout = 10 * time.Second

type Service struct {
	source       ReadingSource
	fetchTimeout time.Duration
	location     *time.Location
	now          func() time.Time
}

type Option func(*Service)

// WithFetchTimeout bounds the storage reads of one Compute call.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithLocation sets the zone billing cycles are resolved in (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(source ReadingSource, opts ...Option) *Service {
	s := &Service{
		source:       source,
		fetchTimeout: DefaultFetchTimeout,
		location:     time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute builds the dashboard for tenant over w. It never fails: any storage
// error is logged and yields Empty(w).
func (s *Service) Compute(ctx context.Context, tenant string, w period.Window) Dashboard {
	logger := log.WithFields(log.Fields{
		"tenant": tenant,
		"from":   w.From.Format(time.RFC3339),
		"to":     w.To.Format(time.RFC3339),
	})

	if err := w.Validate(); err != nil {
		logger.Warnf("Dashboard unavailable: %v", err)
		return Empty(w)
	}

	f, err := s.fetch(ctx, tenant, w)
	if err != nil {
		logger.Warnf("Dashboard unavailable, serving empty result: %v", err)
		return Empty(w)
	}

	settings := ParseSettings(f.settings)
	readings := withBoundaries(f.inRange, f.before, f.after, w)
	ivs := intervals.Calculate(readings)
	baseline := alerts.Baseline(ivs, settings.BaselineOptions(w.To))

	return Dashboard{
		Readings:  readings,
		Intervals: ivs,
		KPIs:      kpi.Calculate(ivs),
		Alerts:    alerts.Detect(ivs, baseline, settings.Thresholds()),
		Baseline:  baseline,
		Period:    w,
	}
}

// ResolveWindow resolves f using the tenant's billing cycle day. Settings
// that cannot be read fall back to the default cycle day.
func (s *Service) ResolveWindow(ctx context.Context, tenant string, f period.Filter) (period.Window, error) {
	cycleDay := DefaultBillingCycleDay
	if f.Preset == "" || f.Preset == period.PresetBillingCycle {
		ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
		raw, err := s.source.GetTenantSettings(ctx, tenant)
		if err != nil {
			log.WithField("tenant", tenant).Warnf("Failed to read tenant settings, using default billing cycle: %v", err)
		} else {
			cycleDay = ParseSettings(raw).BillingCycleDay
		}
	}
	return period.Resolve(f, s.now(), cycleDay, s.location)
}

type fetched struct {
	inRange  []meter.Reading
	before   *meter.Reading
	after    *meter.Reading
	settings map[string]string
}

func (s *Service) fetch(ctx context.Context, tenant string, w period.Window) (fetched, error) {
	var f fetched

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		readings, err := s.source.ListReadingsInRange(ctx, tenant, w.From, w.To)
		if err != nil {
			return fmt.Errorf("list readings: %w", err)
		}
		f.inRange = readings
		return nil
	})
	g.Go(func() error {
		r, err := s.source.FindNearestBefore(ctx, tenant, w.From)
		if err != nil {
			return fmt.Errorf("find reading before window: %w", err)
		}
		f.before = r
		return nil
	})
	g.Go(func() error {
		r, err := s.source.FindNearestAfter(ctx, tenant, w.To)
		if err != nil {
			return fmt.Errorf("find reading after window: %w", err)
		}
		f.after = r
		return nil
	})
	g.Go(func() error {
		settings, err := s.source.GetTenantSettings(ctx, tenant)
		if err != nil {
			return fmt.Errorf("tenant settings: %w", err)
		}
		f.settings = settings
		return nil
	})

	if err := g.Wait(); err != nil {
		return fetched{}, err
	}
	return f, nil
}
