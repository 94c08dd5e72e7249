package readingdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
)

var (
	ErrDuplicateReading = meter.ErrDuplicateReading
	ErrVirtualReading   = meter.ErrVirtualReading
)

const readingColumns = "id, timestamp, " +
	"volume, volume_status, volume_final_old, volume_initial_new, " +
	"hours, hours_status, hours_final_old, hours_initial_new, notes"

// InsertReading stores r for tenant and returns its id. Timestamps are stored
// with millisecond resolution.
func (s *Store) InsertReading(ctx context.Context, tenant string, r meter.Reading) (int64, error) {
	if r.Virtual {
		return 0, ErrVirtualReading
	}

	volStatus, volOld, volNew := meter.EventFields(r.Volume.Event)
	hrsStatus, hrsOld, hrsNew := meter.EventFields(r.Hours.Event)

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO readings (tenant_id, timestamp, "+
			"volume, volume_status, volume_final_old, volume_initial_new, "+
			"hours, hours_status, hours_final_old, hours_initial_new, notes) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		tenant,
		r.Timestamp.UnixMilli(),
		r.Volume.Value.StringFixed(meter.Precision),
		string(volStatus),
		nullable(volOld),
		nullable(volNew),
		r.Hours.Value.StringFixed(meter.Precision),
		string(hrsStatus),
		nullable(hrsOld),
		nullable(hrsNew),
		r.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateReading, r.Timestamp.Format(time.RFC3339))
		}
		return 0, err
	}
	return res.LastInsertId()
}

// ListReadingsInRange returns readings with from <= timestamp <= to, ascending.
func (s *Store) ListReadingsInRange(ctx context.Context, tenant string, from, to time.Time) ([]meter.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+readingColumns+" FROM readings "+
			"WHERE tenant_id = ? AND timestamp >= ? AND timestamp <= ? "+
			"ORDER BY timestamp ASC",
		tenant, ceilMilli(from), to.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []meter.Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// FindNearestBefore returns the latest reading strictly before ts, or nil.
func (s *Store) FindNearestBefore(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error) {
	return s.findOne(ctx,
		"SELECT "+readingColumns+" FROM readings "+
			"WHERE tenant_id = ? AND timestamp < ? ORDER BY timestamp DESC LIMIT 1",
		tenant, ceilMilli(ts),
	)
}

// FindNearestAfter returns the earliest reading strictly after ts, or nil.
func (s *Store) FindNearestAfter(ctx context.Context, tenant string, ts time.Time) (*meter.Reading, error) {
	return s.findOne(ctx,
		"SELECT "+readingColumns+" FROM readings "+
			"WHERE tenant_id = ? AND timestamp > ? ORDER BY timestamp ASC LIMIT 1",
		tenant, ts.UnixMilli(),
	)
}

// ceilMilli rounds t up to the millisecond. Lower bounds are rounded up and
// upper bounds down so stored readings compare as with the exact bounds.
func ceilMilli(t time.Time) int64 {
	ms := t.UnixMilli()
	if time.UnixMilli(ms).Before(t) {
		ms++
	}
	return ms
}

func (s *Store) findOne(ctx context.Context, query string, args ...any) (*meter.Reading, error) {
	r, err := scanReading(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetTenantSettings(ctx context.Context, tenant string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM tenant_settings WHERE tenant_id = ?",
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *Store) SetTenantSetting(ctx context.Context, tenant, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tenant_settings (tenant_id, key, value) VALUES (?, ?, ?) "+
			"ON CONFLICT (tenant_id, key) DO UPDATE SET value = excluded.value",
		tenant, key, value,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(row scanner) (meter.Reading, error) {
	var (
		r              meter.Reading
		ms             int64
		volume, hours  decimal.Decimal
		volStatus      string
		hrsStatus      string
		volOld, volNew decimal.NullDecimal
		hrsOld, hrsNew decimal.NullDecimal
	)
	err := row.Scan(&r.ID, &ms,
		&volume, &volStatus, &volOld, &volNew,
		&hours, &hrsStatus, &hrsOld, &hrsNew,
		&r.Notes,
	)
	if err != nil {
		return meter.Reading{}, err
	}

	volEvent, err := meter.ParseEvent(volStatus, ptr(volOld), ptr(volNew))
	if err != nil {
		return meter.Reading{}, fmt.Errorf("reading %d volume: %w", r.ID, err)
	}
	hrsEvent, err := meter.ParseEvent(hrsStatus, ptr(hrsOld), ptr(hrsNew))
	if err != nil {
		return meter.Reading{}, fmt.Errorf("reading %d hours: %w", r.ID, err)
	}

	r.Timestamp = time.UnixMilli(ms).UTC()
	r.Volume = meter.NewRegister(volume, volEvent)
	r.Hours = meter.NewRegister(hours, hrsEvent)
	return r, nil
}

func nullable(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(meter.Precision)
}

func ptr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Code may be extended; the low byte is the primary result code.
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(sqliteErr.Error(), "UNIQUE")
}
