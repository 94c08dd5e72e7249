package meter

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimals displayed by the physical meters.
const Precision = 3

// Errors returned by reading stores.
var (
	ErrDuplicateReading = errors.New("a reading already exists at this timestamp")
	ErrVirtualReading   = errors.New("virtual readings cannot be stored")
)

// VirtualNote marks readings synthesized at a window boundary.
const VirtualNote = "Virtual reading (pro-rata)"

// Register is one meter display together with the event that produced it.
type Register struct {
	Value decimal.Decimal
	Event Event
}

// Reading is a point-in-time observation of the volume (m3) and hours meters.
// Virtual readings are synthesized for a single computation and never stored;
// they carry no ID.
type Reading struct {
	ID        int64     `json:"id,omitempty"`
	Virtual   bool      `json:"virtual"`
	Timestamp time.Time `json:"timestamp"`
	Volume    Register  `json:"volume"`
	Hours     Register  `json:"hours"`
	Notes     string    `json:"notes,omitempty"`
}

// NewRegister rounds value to meter precision.
func NewRegister(value decimal.Decimal, event Event) Register {
	if event == nil {
		event = Regular{}
	}
	return Register{Value: value.Round(Precision), Event: event}
}

// SortByTime returns a copy of readings in ascending timestamp order.
func SortByTime(readings []Reading) []Reading {
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

type registerJSON struct {
	Value      decimal.Decimal  `json:"value"`
	Status     Status           `json:"status"`
	FinalOld   *decimal.Decimal `json:"final_old,omitempty"`
	InitialNew *decimal.Decimal `json:"initial_new,omitempty"`
}

func (r Register) MarshalJSON() ([]byte, error) {
	status, finalOld, initialNew := EventFields(r.Event)
	return json.Marshal(registerJSON{
		Value:      r.Value,
		Status:     status,
		FinalOld:   finalOld,
		InitialNew: initialNew,
	})
}

func (r *Register) UnmarshalJSON(data []byte) error {
	var raw registerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	event, err := ParseEvent(string(raw.Status), raw.FinalOld, raw.InitialNew)
	if err != nil {
		return err
	}
	r.Value = raw.Value
	r.Event = event
	return nil
}
