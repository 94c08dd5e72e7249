// Package alerts derives a reference flow from recent intervals and raises
// rule based alerts against it.
package alerts

import (
	"fmt"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/intervals"
)

type Type string

const (
	TypeFlowDrop          Type = "flow_drop"
	TypeHighVariability   Type = "high_variability"
	TypeDataInconsistency Type = "data_inconsistency"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Alert struct {
	Type     Type     `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

const (
	DefaultFlowDropThresholdPct = 10.0
	DefaultCOVThresholdPct      = 15.0
)

// Thresholds configures the detector.
type Thresholds struct {
	FlowDropPct float64
	COVPct      float64
	Enabled     bool
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FlowDropPct: DefaultFlowDropThresholdPct,
		COVPct:      DefaultCOVThresholdPct,
		Enabled:     true,
	}
}

// Detect evaluates ivs (chronological) against baseline. A nil baseline skips
// the flow drop rule.
func Detect(ivs []intervals.Interval, baseline *float64, th Thresholds) []Alert {
	result := []Alert{}
	if !th.Enabled {
		return result
	}

	if alert, ok := detectFlowDrop(ivs, baseline, th.FlowDropPct); ok {
		result = append(result, alert)
	}

	if cov, ok := intervals.FlowCOV(ivs); ok && cov > th.COVPct {
		result = append(result, Alert{
			Type:     TypeHighVariability,
			Message:  fmt.Sprintf("High flow variability: COV = %.1f%% > %g%%", cov, th.COVPct),
			Severity: SeverityMedium,
		})
	}

	return append(result, detectInconsistencies(ivs)...)
}

// detectFlowDrop reports the first pair of consecutive intervals whose flow is
// below the threshold. At most one alert is raised per call.
func detectFlowDrop(ivs []intervals.Interval, baseline *float64, dropPct float64) (Alert, bool) {
	if baseline == nil || len(ivs) < 2 {
		return Alert{}, false
	}

	limit := *baseline * (1 - dropPct/100)
	consecutive := 0
	for _, iv := range ivs {
		q, ok := iv.FlowM3h()
		if !ok || q >= limit {
			consecutive = 0
			continue
		}
		consecutive++
		if consecutive >= 2 {
			return Alert{
				Type: TypeFlowDrop,
				Message: fmt.Sprintf("Flow drop detected: %.2f m³/h is more than %g%% below baseline (%.2f m³/h)",
					q, dropPct, *baseline),
				Severity: SeverityHigh,
			}, true
		}
	}
	return Alert{}, false
}

func detectInconsistencies(ivs []intervals.Interval) []Alert {
	var found []Alert
	for _, iv := range ivs {
		span := fmt.Sprintf("%s to %s", iv.Start.Format("2006-01-02 15:04"), iv.End.Format("2006-01-02 15:04"))

		if iv.DeltaHours.IsZero() && iv.DeltaVolume.IsPositive() {
			found = append(found, Alert{
				Type:     TypeDataInconsistency,
				Message:  "Data inconsistency: zero elapsed hours with positive volume (" + span + "). Check the readings.",
				Severity: SeverityHigh,
			})
		}
		if iv.DeltaVolume.IsNegative() {
			found = append(found, Alert{
				Type:     TypeDataInconsistency,
				Message:  "Data inconsistency: volume regressed (" + span + "). Check for a typo or an unrecorded meter exchange.",
				Severity: SeverityHigh,
			})
		}
	}
	return found
}
