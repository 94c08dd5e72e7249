package meter

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interpolate synthesizes a virtual reading at target, which must lie between
// before and after. Both meters are interpolated linearly and tagged regular,
// since no event is assumed to happen inside the gap.
func Interpolate(target time.Time, before, after Reading) Reading {
	fraction := decimal.Zero
	if span := after.Timestamp.Sub(before.Timestamp); span != 0 {
		fraction = decimal.NewFromInt(int64(target.Sub(before.Timestamp))).
			Div(decimal.NewFromInt(int64(span)))
	}

	return Reading{
		Virtual:   true,
		Timestamp: target,
		Volume:    NewRegister(lerp(before.Volume.Value, after.Volume.Value, fraction), Regular{}),
		Hours:     NewRegister(lerp(before.Hours.Value, after.Hours.Value, fraction), Regular{}),
		Notes:     VirtualNote,
	}
}

func lerp(from, to, fraction decimal.Decimal) decimal.Decimal {
	return from.Add(to.Sub(from).Mul(fraction))
}
