// Package kpi reduces reconstructed intervals to the dashboard KPIs.
package kpi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/flowunits"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/intervals"
)

// Summary aggregates a set of intervals. Totals are always present, every
// rate is nil when it cannot be computed.
type Summary struct {
	TotalProduction decimal.Decimal `json:"total_production_m3"`
	TotalHours      decimal.Decimal `json:"total_hours_h"`
	// Volume weighted: total production over total run hours.
	AvgFlow        *flowunits.Flow `json:"avg_flow"`
	FlowCOVPct     *float64        `json:"flow_cov_pct"`
	UtilizationPct *float64        `json:"utilization_pct"`
}

// Empty is the summary of no intervals.
func Empty() Summary {
	return Summary{TotalProduction: decimal.Zero, TotalHours: decimal.Zero}
}

func Calculate(ivs []intervals.Interval) Summary {
	summary := Empty()
	if len(ivs) == 0 {
		return summary
	}

	for _, iv := range ivs {
		summary.TotalProduction = summary.TotalProduction.Add(iv.DeltaVolume)
		summary.TotalHours = summary.TotalHours.Add(iv.DeltaHours)
	}

	if summary.TotalHours.IsPositive() {
		avg := flowunits.NewFlow(summary.TotalProduction.InexactFloat64() / summary.TotalHours.InexactFloat64())
		summary.AvgFlow = &avg
	}

	if cov, ok := intervals.FlowCOV(ivs); ok {
		summary.FlowCOVPct = &cov
	}

	if span := flowSpan(ivs); span > 0 {
		utilization := summary.TotalHours.InexactFloat64() / span.Hours() * 100
		summary.UtilizationPct = &utilization
	}

	return summary
}

// flowSpan is the wall clock time from the earliest start to the latest end
// among intervals that have a flow.
func flowSpan(ivs []intervals.Interval) time.Duration {
	var first, last time.Time
	found := false
	for _, iv := range ivs {
		if iv.Flow == nil {
			continue
		}
		if !found || iv.Start.Before(first) {
			first = iv.Start
		}
		if !found || iv.End.After(last) {
			last = iv.End
		}
		found = true
	}
	if !found {
		return 0
	}
	return last.Sub(first)
}
