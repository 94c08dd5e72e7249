// Package dashboardtest provides an in-memory dashboard.ReadingSource.
package dashboardtest

import (
	"context"
	"sync"
	"time"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
)

type MemorySource struct {
	mu       sync.Mutex
	readings map[string][]meter.Reading
	settings map[string]map[string]string

	// Err, when set, is returned by every call.
	Err error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		readings: make(map[string][]meter.Reading),
		settings: make(map[string]map[string]string),
	}
}

func (m *MemorySource) Add(tenant string, readings ...meter.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings[tenant] = meter.SortByTime(append(m.readings[tenant], readings...))
}

func (m *MemorySource) SetSetting(tenant, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings[tenant] == nil {
		m.settings[tenant] = make(map[string]string)
	}
	m.settings[tenant][key] = value
}

func (m *MemorySource) ListReadingsInRange(ctx context.Context, tenant string, from, to time.Time) ([]meter.Reading, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []meter.Reading{}
	for _, r := range m.readings[tenant] {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *MemorySource) FindNearestBefore(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *meter.Reading
	for i, r := range m.readings[tenant] {
		if r.Timestamp.Before(ts) {
			found = &m.readings[tenant][i]
		}
	}
	return clone(found), nil
}

func (m *MemorySource) FindNearestAfter(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.readings[tenant] {
		if r.Timestamp.After(ts) {
			return clone(&m.readings[tenant][i]), nil
		}
	}
	return nil, nil
}

func (m *MemorySource) GetTenantSettings(ctx context.Context, tenant string) (map[string]string, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]string, len(m.settings[tenant]))
	for k, v := range m.settings[tenant] {
		result[k] = v
	}
	return result, nil
}

func (m *MemorySource) check(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	return ctx.Err()
}

func clone(r *meter.Reading) *meter.Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
