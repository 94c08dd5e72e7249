package influxsource

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
)

const Measurement = "pump_reading"

// Field and tag names of a stored reading. Meter values are kept as decimal
// strings so deltas stay exact.
const (
	TagTenant             = "tenant"
	FieldVolume           = "volume"
	FieldVolumeStatus     = "volume_status"
	FieldVolumeFinalOld   = "volume_final_old"
	FieldVolumeInitialNew = "volume_initial_new"
	FieldHours            = "hours"
	FieldHoursStatus      = "hours_status"
	FieldHoursFinalOld    = "hours_final_old"
	FieldHoursInitialNew  = "hours_initial_new"
	FieldNotes            = "notes"
)

var (
	// Flux range() needs explicit bounds.
	earliest = time.Unix(0, 0).UTC()
	latest   = time.Date(2262, 4, 11, 0, 0, 0, 0, time.UTC)
)

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func fluxTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// readingsQuery selects the pivoted readings of tenant with start <= _time < stop.
func readingsQuery(bucket, tenant string, start, stop time.Time, desc bool, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", quote(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n", fluxTime(start), fluxTime(stop))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s and r.%s == %s)\n",
		quote(Measurement), TagTenant, quote(tenant))
	b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	b.WriteString("  |> group()\n")
	fmt.Fprintf(&b, "  |> sort(columns: [\"_time\"], desc: %t)", desc)
	if limit > 0 {
		fmt.Fprintf(&b, "\n  |> limit(n: %d)", limit)
	}
	return b.String()
}

// rangeQuery is inclusive of both ends; range() stop is exclusive.
func rangeQuery(bucket, tenant string, from, to time.Time) string {
	return readingsQuery(bucket, tenant, from, to.Add(time.Nanosecond), false, 0)
}

func beforeQuery(bucket, tenant string, ts time.Time) string {
	return readingsQuery(bucket, tenant, earliest, ts, true, 1)
}

func afterQuery(bucket, tenant string, ts time.Time) string {
	return readingsQuery(bucket, tenant, ts.Add(time.Nanosecond), latest, false, 1)
}

// pointQuery selects the reading of tenant stored exactly at ts.
func pointQuery(bucket, tenant string, ts time.Time) string {
	return readingsQuery(bucket, tenant, ts, ts.Add(time.Nanosecond), false, 1)
}

// readingFromValues builds a reading from one pivoted Flux record.
func readingFromValues(ts time.Time, values map[string]any) (meter.Reading, error) {
	volume, err := decimalField(values, FieldVolume, true)
	if err != nil {
		return meter.Reading{}, err
	}
	hours, err := decimalField(values, FieldHours, true)
	if err != nil {
		return meter.Reading{}, err
	}

	volumeEvent, err := eventFromValues(values, FieldVolumeStatus, FieldVolumeFinalOld, FieldVolumeInitialNew)
	if err != nil {
		return meter.Reading{}, err
	}
	hoursEvent, err := eventFromValues(values, FieldHoursStatus, FieldHoursFinalOld, FieldHoursInitialNew)
	if err != nil {
		return meter.Reading{}, err
	}

	notes, _ := values[FieldNotes].(string)
	return meter.Reading{
		Timestamp: ts.UTC(),
		Volume:    meter.NewRegister(*volume, volumeEvent),
		Hours:     meter.NewRegister(*hours, hoursEvent),
		Notes:     notes,
	}, nil
}

// readingFields is the inverse of readingFromValues.
func readingFields(r meter.Reading) map[string]any {
	fields := map[string]any{
		FieldVolume: r.Volume.Value.StringFixed(meter.Precision),
		FieldHours:  r.Hours.Value.StringFixed(meter.Precision),
	}
	addEventFields(fields, r.Volume.Event, FieldVolumeStatus, FieldVolumeFinalOld, FieldVolumeInitialNew)
	addEventFields(fields, r.Hours.Event, FieldHoursStatus, FieldHoursFinalOld, FieldHoursInitialNew)
	if r.Notes != "" {
		fields[FieldNotes] = r.Notes
	}
	return fields
}

func addEventFields(fields map[string]any, e meter.Event, statusKey, finalOldKey, initialNewKey string) {
	status, finalOld, initialNew := meter.EventFields(e)
	fields[statusKey] = string(status)
	if finalOld != nil {
		fields[finalOldKey] = finalOld.StringFixed(meter.Precision)
	}
	if initialNew != nil {
		fields[initialNewKey] = initialNew.StringFixed(meter.Precision)
	}
}

func eventFromValues(values map[string]any, statusKey, finalOldKey, initialNewKey string) (meter.Event, error) {
	status, _ := values[statusKey].(string)
	finalOld, err := decimalField(values, finalOldKey, false)
	if err != nil {
		return nil, err
	}
	initialNew, err := decimalField(values, initialNewKey, false)
	if err != nil {
		return nil, err
	}
	return meter.ParseEvent(status, finalOld, initialNew)
}

// decimalField reads a decimal stored as a string or a float field.
func decimalField(values map[string]any, key string, required bool) (*decimal.Decimal, error) {
	var d decimal.Decimal
	switch v := values[key].(type) {
	case nil:
		if required {
			return nil, fmt.Errorf("field %s missing", key)
		}
		return nil, nil
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	case int64:
		d = decimal.NewFromInt(v)
	default:
		return nil, fmt.Errorf("field %s has unsupported type %T", key, v)
	}
	return &d, nil
}
