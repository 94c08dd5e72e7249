package dashboard

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/alerts"
)

// Tenant setting keys as stored by the settings collaborator.
const (
	KeyBaselineDays         = "baseline_days"
	KeyBaselineMinIntervals = "baseline_min_intervals"
	KeyFlowDropThreshold    = "alert_flow_drop_threshold"
	KeyCOVThreshold         = "alert_cov_threshold"
	KeyAlertsEnabled        = "alert_enabled"
	KeyBillingCycleDay      = "billing_cycle_day"
)

const DefaultBillingCycleDay = 1

// Settings is the typed form of a tenant's flat settings map.
type Settings struct {
	BaselineDays         int
	BaselineMinIntervals int
	FlowDropThresholdPct float64
	COVThresholdPct      float64
	AlertsEnabled        bool
	BillingCycleDay      int
}

func DefaultSettings() Settings {
	return Settings{
		BaselineDays:         alerts.DefaultBaselineDays,
		BaselineMinIntervals: alerts.DefaultBaselineMinIntervals,
		FlowDropThresholdPct: alerts.DefaultFlowDropThresholdPct,
		COVThresholdPct:      alerts.DefaultCOVThresholdPct,
		AlertsEnabled:        true,
		BillingCycleDay:      DefaultBillingCycleDay,
	}
}

// ParseSettings applies raw over the defaults. Missing, malformed or out of
// range values keep their default. Alerts are only disabled by "false".
func ParseSettings(raw map[string]string) Settings {
	s := DefaultSettings()

	if v, ok := positiveInt(raw[KeyBaselineDays]); ok {
		s.BaselineDays = v
	}
	if v, ok := positiveInt(raw[KeyBaselineMinIntervals]); ok {
		s.BaselineMinIntervals = v
	}
	if v, ok := positiveFloat(raw[KeyFlowDropThreshold]); ok {
		s.FlowDropThresholdPct = v
	}
	if v, ok := positiveFloat(raw[KeyCOVThreshold]); ok {
		s.COVThresholdPct = v
	}
	if strings.EqualFold(strings.TrimSpace(raw[KeyAlertsEnabled]), "false") {
		s.AlertsEnabled = false
	}
	if v, ok := positiveInt(raw[KeyBillingCycleDay]); ok && v <= 31 {
		s.BillingCycleDay = v
	}
	return s
}

func (s Settings) Thresholds() alerts.Thresholds {
	return alerts.Thresholds{
		FlowDropPct: s.FlowDropThresholdPct,
		COVPct:      s.COVThresholdPct,
		Enabled:     s.AlertsEnabled,
	}
}

func (s Settings) BaselineOptions(asOf time.Time) alerts.BaselineOptions {
	return alerts.BaselineOptions{
		Days:         s.BaselineDays,
		MinIntervals: s.BaselineMinIntervals,
		AsOf:         asOf,
	}
}

func positiveInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func positiveFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
