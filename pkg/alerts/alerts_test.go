package alerts_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/alerts"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/flowunits"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/intervals"
)

var asOf = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

// hourly builds one-hour, high confidence intervals with the given flows,
// ending at end.
func hourly(end time.Time, flows ...float64) []intervals.Interval {
	ivs := make([]intervals.Interval, 0, len(flows))
	start := end.Add(-time.Duration(len(flows)) * 2 * time.Hour)
	for i, q := range flows {
		f := flowunits.NewFlow(q)
		ivs = append(ivs, intervals.Interval{
			Start:       start.Add(time.Duration(i) * 2 * time.Hour),
			End:         start.Add(time.Duration(i+1) * 2 * time.Hour),
			DeltaVolume: decimal.NewFromFloat(q),
			DeltaHours:  decimal.NewFromInt(1),
			Flow:        &f,
			Confidence:  intervals.ConfidenceHigh,
		})
	}
	return ivs
}

func TestBaselineMeanOfRecentHighConfidence(t *testing.T) {
	ivs := hourly(asOf, 10, 12, 14, 16, 18)

	b := alerts.Baseline(ivs, alerts.BaselineOptions{AsOf: asOf})

	require.NotNil(t, b)
	assert.InDelta(t, 14.0, *b, 1e-9)
}

func TestBaselineIgnoresOldAndLowConfidence(t *testing.T) {
	old := hourly(asOf.AddDate(0, 0, -10), 50, 50, 50, 50, 50, 50)
	recent := hourly(asOf, 10, 10, 10, 10)
	low := hourly(asOf.Add(-time.Hour), 1)
	low[0].Confidence = intervals.ConfidenceLow

	ivs := append(append(old, recent...), low...)

	assert.Nil(t, alerts.Baseline(ivs, alerts.BaselineOptions{AsOf: asOf}),
		"four recent samples are not enough even with older data around")

	b := alerts.Baseline(ivs, alerts.BaselineOptions{AsOf: asOf, MinIntervals: 4})
	require.NotNil(t, b)
	assert.InDelta(t, 10.0, *b, 1e-9)

	b = alerts.Baseline(ivs, alerts.BaselineOptions{AsOf: asOf, Days: 30})
	require.NotNil(t, b)
	assert.InDelta(t, 34.0, *b, 1e-9)
}

func TestBaselineSkipsIntervalsWithoutFlow(t *testing.T) {
	ivs := hourly(asOf, 10, 10, 10, 10, 10)
	ivs[2].Flow = nil

	assert.Nil(t, alerts.Baseline(ivs, alerts.BaselineOptions{AsOf: asOf}))
}

func TestBaselineDefaultsToNow(t *testing.T) {
	ivs := hourly(time.Now(), 3, 3, 3, 3, 3)

	b := alerts.Baseline(ivs, alerts.BaselineOptions{})

	require.NotNil(t, b)
	assert.InDelta(t, 3.0, *b, 1e-9)
}

func ptr(v float64) *float64 { return &v }

func TestDetectDisabled(t *testing.T) {
	ivs := hourly(asOf, 10, 1, 1, 50)
	ivs[0].DeltaHours = decimal.Zero
	ivs[0].Flow = nil

	th := alerts.DefaultThresholds()
	th.Enabled = false

	got := alerts.Detect(ivs, ptr(10), th)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDetectFlowDrop(t *testing.T) {
	t.Run("first consecutive pair below threshold", func(t *testing.T) {
		got := alerts.Detect(hourly(asOf, 10, 8, 8.5, 5, 5), ptr(10), alerts.Thresholds{FlowDropPct: 10, COVPct: 1000, Enabled: true})

		require.Len(t, got, 1)
		assert.Equal(t, alerts.TypeFlowDrop, got[0].Type)
		assert.Equal(t, alerts.SeverityHigh, got[0].Severity)
		assert.Contains(t, got[0].Message, "8.50")
		assert.Contains(t, got[0].Message, "10.00")
	})

	t.Run("isolated drops are ignored", func(t *testing.T) {
		got := alerts.Detect(hourly(asOf, 8, 10, 8, 10), ptr(10), alerts.Thresholds{FlowDropPct: 10, COVPct: 1000, Enabled: true})
		assert.Empty(t, got)
	})

	t.Run("interval without flow breaks the streak", func(t *testing.T) {
		ivs := hourly(asOf, 8, 10, 8)
		ivs[1].Flow = nil
		got := alerts.Detect(ivs, ptr(10), alerts.Thresholds{FlowDropPct: 10, COVPct: 1000, Enabled: true})
		assert.Empty(t, got)
	})

	t.Run("no baseline", func(t *testing.T) {
		got := alerts.Detect(hourly(asOf, 1, 1, 1), nil, alerts.Thresholds{FlowDropPct: 10, COVPct: 1000, Enabled: true})
		assert.Empty(t, got)
	})
}

func TestDetectHighVariability(t *testing.T) {
	ivs := hourly(asOf, 10, 20)

	got := alerts.Detect(ivs, nil, alerts.DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, alerts.TypeHighVariability, got[0].Type)
	assert.Equal(t, alerts.SeverityMedium, got[0].Severity)
	assert.Contains(t, got[0].Message, "33.3%")

	assert.Empty(t, alerts.Detect(ivs, nil, alerts.Thresholds{FlowDropPct: 10, COVPct: 40, Enabled: true}))
}

func TestDetectInconsistencyPerInterval(t *testing.T) {
	ivs := hourly(asOf, 10, 10, 10, 10)
	for _, i := range []int{1, 3} {
		ivs[i].DeltaHours = decimal.Zero
		ivs[i].Flow = nil
	}
	ivs[2].DeltaVolume = decimal.NewFromInt(-3)
	ivs[2].Flow = nil

	got := alerts.Detect(ivs, nil, alerts.DefaultThresholds())

	require.Len(t, got, 3)
	for _, a := range got {
		assert.Equal(t, alerts.TypeDataInconsistency, a.Type)
		assert.Equal(t, alerts.SeverityHigh, a.Severity)
	}
	assert.Contains(t, got[0].Message, "zero elapsed hours")
	assert.Contains(t, got[1].Message, "volume regressed")
	assert.Contains(t, got[2].Message, "zero elapsed hours")
}
