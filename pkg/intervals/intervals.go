// Package intervals reconstructs consumption intervals from consecutive meter readings.
package intervals

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/flowunits"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/meter"
)

// Confidence tells whether the hours delta is large enough to trust the flow rate.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceLow  Confidence = "LOW"
)

// Flows derived from less than one hour of run time are flagged low confidence.
var minConfidentHours = decimal.New(1, 0)

// Interval is the consumption between two chronologically adjacent readings.
type Interval struct {
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	DeltaVolume decimal.Decimal `json:"delta_volume_m3"`
	DeltaHours  decimal.Decimal `json:"delta_hours_h"`
	// Nil when no run time elapsed.
	Flow       *flowunits.Flow `json:"flow"`
	Confidence Confidence      `json:"confidence"`
}

// FlowM3h returns the interval flow in m3/h, if any.
func (i Interval) FlowM3h() (float64, bool) {
	if i.Flow == nil {
		return 0, false
	}
	return i.Flow.M3PerHour, true
}

// Calculate sorts readings by time and builds one interval per consecutive
// pair. Fewer than two readings yield no intervals.
func Calculate(readings []meter.Reading) []Interval {
	if len(readings) < 2 {
		return []Interval{}
	}

	sorted := meter.SortByTime(readings)
	result := make([]Interval, 0, len(sorted)-1)

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		result = append(result, between(prev, curr))
	}
	return result
}

func between(prev, curr meter.Reading) Interval {
	deltaVolume := meter.Delta(prev.Volume.Value, curr.Volume.Value, curr.Volume.Event)
	deltaHours := meter.Delta(prev.Hours.Value, curr.Hours.Value, curr.Hours.Event)

	iv := Interval{
		Start:       prev.Timestamp,
		End:         curr.Timestamp,
		DeltaVolume: deltaVolume,
		DeltaHours:  deltaHours,
		Confidence:  ConfidenceHigh,
	}

	if deltaHours.IsPositive() && !deltaVolume.IsNegative() {
		flow := flowunits.NewFlow(deltaVolume.InexactFloat64() / deltaHours.InexactFloat64())
		iv.Flow = &flow
	}
	if deltaHours.LessThan(minConfidentHours) {
		iv.Confidence = ConfidenceLow
	}
	return iv
}

// FlowCOV is the coefficient of variation (%) of the per-interval flow rates,
// over intervals that have a flow. It uses the arithmetic mean and population
// variance. ok is false with fewer than two samples or a zero mean.
func FlowCOV(ivs []Interval) (cov float64, ok bool) {
	var flows []float64
	for _, iv := range ivs {
		if q, has := iv.FlowM3h(); has {
			flows = append(flows, q)
		}
	}
	if len(flows) < 2 {
		return 0, false
	}

	var sum float64
	for _, q := range flows {
		sum += q
	}
	mean := sum / float64(len(flows))
	if mean == 0 {
		return 0, false
	}

	var variance float64
	for _, q := range flows {
		variance += (q - mean) * (q - mean)
	}
	variance /= float64(len(flows))

	return math.Sqrt(variance) / mean * 100, true
}
