package alerts

import (
	"time"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/intervals"
)

const (
	DefaultBaselineDays         = 7
	DefaultBaselineMinIntervals = 5
)

// BaselineOptions controls the trailing window used for the baseline.
// Zero values select the defaults; AsOf defaults to now. Callers computing a
// historical window must pass the window end as AsOf.
type BaselineOptions struct {
	Days         int
	MinIntervals int
	AsOf         time.Time
}

// Baseline is the mean flow (m3/h) of high confidence intervals starting within
// the trailing window. Nil when fewer than MinIntervals qualify.
func Baseline(ivs []intervals.Interval, opts BaselineOptions) *float64 {
	if opts.Days <= 0 {
		opts.Days = DefaultBaselineDays
	}
	if opts.MinIntervals <= 0 {
		opts.MinIntervals = DefaultBaselineMinIntervals
	}
	if opts.AsOf.IsZero() {
		opts.AsOf = time.Now()
	}
	cutoff := opts.AsOf.AddDate(0, 0, -opts.Days)

	var sum float64
	var count int
	for _, iv := range ivs {
		q, ok := iv.FlowM3h()
		if !ok || iv.Confidence != intervals.ConfidenceHigh || iv.Start.Before(cutoff) {
			continue
		}
		sum += q
		count++
	}

	if count < opts.MinIntervals {
		return nil
	}
	baseline := sum / float64(count)
	return &baseline
}
