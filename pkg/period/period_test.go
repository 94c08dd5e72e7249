package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{From: day(2025, 1, 1), To: day(2025, 1, 1)}.Validate())
	assert.ErrorIs(t, Window{From: day(2025, 1, 2), To: day(2025, 1, 1)}.Validate(), ErrInvalidWindow)
	assert.ErrorIs(t, Window{To: day(2025, 1, 1)}.Validate(), ErrInvalidWindow)
}

func TestBillingCycle(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		cycleDay int
		from     time.Time
		to       time.Time
	}{
		{
			name:     "before closing day",
			now:      time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
			cycleDay: 7,
			from:     day(2025, 5, 8),
			to:       time.Date(2025, 6, 7, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "on closing day",
			now:      time.Date(2025, 6, 7, 22, 0, 0, 0, time.UTC),
			cycleDay: 7,
			from:     day(2025, 5, 8),
			to:       time.Date(2025, 6, 7, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "after closing day",
			now:      time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
			cycleDay: 7,
			from:     day(2025, 6, 8),
			to:       time.Date(2025, 7, 7, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "year boundary",
			now:      time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
			cycleDay: 15,
			from:     day(2025, 12, 16),
			to:       time.Date(2026, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "out of range day clamps to 1",
			now:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			cycleDay: 0,
			from:     day(2025, 6, 2),
			to:       time.Date(2025, 7, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "closing day 31 early in march",
			now:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			cycleDay: 31,
			from:     day(2026, 3, 1),
			to:       time.Date(2026, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "closing day 31 clamps to end of february",
			now:      time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
			cycleDay: 31,
			from:     day(2026, 2, 1),
			to:       time.Date(2026, 2, 28, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "closing day 30 on clamped february closing day",
			now:      time.Date(2026, 2, 28, 22, 0, 0, 0, time.UTC),
			cycleDay: 30,
			from:     day(2026, 1, 31),
			to:       time.Date(2026, 2, 28, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "closing day 29 in leap february",
			now:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			cycleDay: 29,
			from:     day(2024, 3, 1),
			to:       time.Date(2024, 3, 29, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := BillingCycle(tt.now, tt.cycleDay, time.UTC)
			assert.True(t, tt.from.Equal(w.From), "from: got %s", w.From)
			assert.True(t, tt.to.Equal(w.To), "to: got %s", w.To)
			assert.True(t, w.Contains(tt.now))
		})
	}
}

func TestShiftCycle(t *testing.T) {
	w := BillingCycle(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), 7, time.UTC)

	prev := ShiftCycle(w, -1, 7, time.UTC)
	assert.True(t, day(2025, 4, 8).Equal(prev.From), "got %s", prev.From)
	assert.Equal(t, time.May, prev.To.Month())
	assert.Equal(t, 7, prev.To.Day())

	next := ShiftCycle(w, 1, 7, time.UTC)
	assert.True(t, day(2025, 6, 8).Equal(next.From), "got %s", next.From)
	assert.Equal(t, time.July, next.To.Month())
}

func TestShiftCycleTilesWithoutGaps(t *testing.T) {
	for _, cycleDay := range []int{1, 15, 28, 29, 30, 31} {
		w := BillingCycle(time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC), cycleDay, time.UTC)
		for i := 0; i < 14; i++ {
			next := ShiftCycle(w, 1, cycleDay, time.UTC)
			assert.True(t, w.To.Add(time.Millisecond).Equal(next.From),
				"day %d: %s does not follow %s", cycleDay, next.From, w.To)
			assert.True(t, next.From.Before(next.To))

			back := ShiftCycle(next, -1, cycleDay, time.UTC)
			assert.True(t, w.From.Equal(back.From), "day %d: got %s", cycleDay, back.From)
			assert.True(t, w.To.Equal(back.To), "day %d: got %s", cycleDay, back.To)
			w = next
		}
	}
}

func TestShiftCycleKeepsClosingDayAfterShortMonth(t *testing.T) {
	feb := BillingCycle(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), 31, time.UTC)
	mar := ShiftCycle(feb, 1, 31, time.UTC)
	assert.True(t, day(2026, 3, 1).Equal(mar.From), "got %s", mar.From)
	assert.Equal(t, 31, mar.To.Day())

	jan := ShiftCycle(feb, -1, 31, time.UTC)
	assert.True(t, day(2026, 1, 1).Equal(jan.From), "got %s", jan.From)
	assert.Equal(t, 31, jan.To.Day())
}

func TestResolve(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	w, err := Resolve(Filter{Preset: PresetWeek}, now, 1, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 7*24.0, w.Hours())
	assert.True(t, now.Equal(w.To))

	w, err = Resolve(Filter{Preset: PresetDay}, now, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 24.0, w.Hours())

	w, err = Resolve(Filter{}, now, 7, time.UTC)
	require.NoError(t, err)
	assert.True(t, day(2025, 6, 8).Equal(w.From))

	custom := Filter{Preset: PresetCustom, From: day(2025, 1, 1), To: day(2025, 2, 1)}
	w, err = Resolve(custom, now, 1, time.UTC)
	require.NoError(t, err)
	assert.True(t, custom.From.Equal(w.From))
	assert.True(t, custom.To.Equal(w.To))

	_, err = Resolve(Filter{Preset: PresetCustom, From: day(2025, 2, 1), To: day(2025, 1, 1)}, now, 1, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Resolve(Filter{Preset: "90d"}, now, 1, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2025, 6, 10, 15, 4, 5, 0, time.UTC)
	assert.True(t, day(2025, 6, 10).Equal(StartOfDay(ts, time.UTC)))
	assert.Equal(t, 23, EndOfDay(ts, time.UTC).Hour())
	assert.Equal(t, 999*time.Millisecond, time.Duration(EndOfDay(ts, time.UTC).Nanosecond()))
}
