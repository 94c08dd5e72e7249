package meter

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Status is the stored/serialized tag of a meter event.
type Status string

const (
	StatusRegular  Status = "regular"
	StatusRollover Status = "rollover"
	StatusExchange Status = "exchange"
)

var ErrUnknownStatus = errors.New("unknown meter status")

// Event describes the hardware event that produced a reading relative to the
// previous one. Implemented only by Regular, Rollover and Exchange.
type Event interface {
	Status() Status
	sealed()
}

// Regular is a normal cumulative reading.
type Regular struct{}

// Rollover means the display wrapped back to near zero after exceeding its digit capacity.
type Rollover struct{}

// Exchange means the physical meter was swapped between the two readings.
// FinalOld is the outgoing meter's last display, InitialNew the incoming meter's first.
// A nil field falls back to the previous / current reading value.
type Exchange struct {
	FinalOld   *decimal.Decimal
	InitialNew *decimal.Decimal
}

func (Regular) Status() Status  { return StatusRegular }
func (Rollover) Status() Status { return StatusRollover }
func (Exchange) Status() Status { return StatusExchange }

func (Regular) sealed()  {}
func (Rollover) sealed() {}
func (Exchange) sealed() {}

// ParseEvent builds an Event from its stored form. An empty status is regular.
// Exchange values are ignored for any other status.
func ParseEvent(status string, finalOld, initialNew *decimal.Decimal) (Event, error) {
	switch Status(status) {
	case "", StatusRegular:
		return Regular{}, nil
	case StatusRollover:
		return Rollover{}, nil
	case StatusExchange:
		return Exchange{FinalOld: finalOld, InitialNew: initialNew}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
}

// EventFields flattens an Event into its stored form.
func EventFields(e Event) (status Status, finalOld, initialNew *decimal.Decimal) {
	switch ev := e.(type) {
	case Rollover:
		return StatusRollover, nil, nil
	case Exchange:
		return StatusExchange, ev.FinalOld, ev.InitialNew
	default:
		return StatusRegular, nil, nil
	}
}
