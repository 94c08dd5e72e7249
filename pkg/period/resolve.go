// Package period resolves dashboard reporting windows: rolling presets,
// explicit ranges and billing cycles anchored to a closing day of the month.
package period

import (
	"fmt"
	"time"
)

type Preset string

const (
	PresetDay          Preset = "1d"
	PresetWeek         Preset = "7d"
	PresetMonth        Preset = "30d"
	PresetCustom       Preset = "custom"
	PresetBillingCycle Preset = "cycle"
)

// Filter is the caller's window request. An empty Preset means the current
// billing cycle.
type Filter struct {
	Preset Preset
	From   time.Time
	To     time.Time
}

// Resolve turns a filter into a concrete window as seen at now.
func Resolve(f Filter, now time.Time, cycleDay int, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	switch f.Preset {
	case PresetDay:
		return Window{From: now.Add(-24 * time.Hour), To: now}, nil
	case PresetWeek:
		return Window{From: now.Add(-7 * 24 * time.Hour), To: now}, nil
	case PresetMonth:
		return Window{From: now.Add(-30 * 24 * time.Hour), To: now}, nil
	case PresetCustom:
		w := Window{From: f.From, To: f.To}
		if err := w.Validate(); err != nil {
			return Window{}, err
		}
		return w, nil
	case "", PresetBillingCycle:
		return BillingCycle(now, cycleDay, loc), nil
	default:
		return Window{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidWindow, f.Preset)
	}
}

// BillingCycle returns the cycle containing now. The closing day is the last
// day of a cycle: with cycleDay 7, on the 3rd the cycle runs from the 8th of
// the previous month to the 7th; on the 8th it runs to the 7th of next month.
func BillingCycle(now time.Time, cycleDay int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	cycleDay = clampCycleDay(cycleDay)
	now = now.In(loc)

	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	if now.Day() > closingDay(month, cycleDay) {
		month = month.AddDate(0, 1, 0)
	}
	return cycleEndingIn(month, cycleDay)
}

// ShiftCycle moves a billing cycle window n cycles forward (negative: back).
func ShiftCycle(w Window, n int, cycleDay int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	to := w.To.In(loc)
	month := time.Date(to.Year(), to.Month()+time.Month(n), 1, 0, 0, 0, 0, loc)
	return cycleEndingIn(month, clampCycleDay(cycleDay))
}

// cycleEndingIn returns the cycle closing in the month starting at first. It
// starts the day after the previous month's closing day.
func cycleEndingIn(first time.Time, cycleDay int) Window {
	prev := first.AddDate(0, -1, 0)
	from := time.Date(prev.Year(), prev.Month(), closingDay(prev, cycleDay)+1, 0, 0, 0, 0, first.Location())
	end := time.Date(first.Year(), first.Month(), closingDay(first, cycleDay), 0, 0, 0, 0, first.Location())
	return Window{From: from, To: EndOfDay(end, first.Location())}
}

// closingDay clamps cycleDay to the last day of the month starting at first.
func closingDay(first time.Time, cycleDay int) int {
	lastDay := first.AddDate(0, 1, -1).Day()
	if cycleDay > lastDay {
		return lastDay
	}
	return cycleDay
}

func clampCycleDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > 31 {
		return 31
	}
	return day
}
