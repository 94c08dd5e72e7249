package meter

import "github.com/shopspring/decimal"

// Delta returns the consumption between two consecutive displays of the same
// meter. event belongs to the later reading. The result is never negative.
func Delta(previous, current decimal.Decimal, event Event) decimal.Decimal {
	switch ev := event.(type) {
	case Rollover:
		if !previous.IsPositive() {
			return nonNegative(current.Sub(previous))
		}
		return nonNegative(current.Add(RolloverCapacity(previous)).Sub(previous))

	case Exchange:
		finalOld := previous
		if ev.FinalOld != nil {
			finalOld = *ev.FinalOld
		}
		initialNew := current
		if ev.InitialNew != nil {
			initialNew = *ev.InitialNew
		}
		// Consumption on the outgoing meter plus consumption on the incoming one.
		return nonNegative(finalOld.Sub(previous).Add(current.Sub(initialNew)))

	default:
		return nonNegative(current.Sub(previous))
	}
}

// RolloverCapacity infers the display capacity from the order of magnitude of
// the last value before the wrap: the smallest power of ten strictly greater
// than previous (998 -> 1000, 1000 -> 10000, 0.8 -> 1). previous must be positive.
func RolloverCapacity(previous decimal.Decimal) decimal.Decimal {
	var exp int32
	if previous.GreaterThanOrEqual(decimal.New(1, 0)) {
		for decimal.New(1, exp).LessThanOrEqual(previous) {
			exp++
		}
		return decimal.New(1, exp)
	}
	for decimal.New(1, exp-1).GreaterThan(previous) {
		exp--
	}
	return decimal.New(1, exp)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
