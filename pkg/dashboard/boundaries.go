package dashboard

import (
	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/period"
)

// withBoundaries returns the in-range readings in time order, framed by
// virtual readings at the window edges wherever a neighbour outside the
// window allows interpolating one.
func withBoundaries(inRange []meter.Reading, before, after *meter.Reading, w period.Window) []meter.Reading {
	sorted := meter.SortByTime(inRange)
	result := make([]meter.Reading, 0, len(sorted)+2)

	var start *meter.Reading
	if before != nil {
		right := after
		if len(sorted) > 0 {
			right = &sorted[0]
		}
		if right != nil && right.Timestamp.After(w.From) {
			v := meter.Interpolate(w.From, *before, *right)
			start = &v
			result = append(result, v)
		}
	}

	result = append(result, sorted...)

	if after != nil {
		var left *meter.Reading
		switch {
		case len(sorted) > 0:
			left = &sorted[len(sorted)-1]
		case start != nil:
			left = start
		default:
			left = before
		}
		if left != nil && left.Timestamp.Before(w.To) {
			result = append(result, meter.Interpolate(w.To, *left, *after))
		}
	}

	return result
}
