package models

import (
	"fmt"
	"time"
)

// AvailabilityQuery is a value type: equal queries must yield equal answers.
type AvailabilityQuery struct {
	BarberID        int64
	Start           time.Time
	DurationMinutes int
}

// Key identifies the query in logs. Equal queries share a key.
func (q AvailabilityQuery) Key() string {
	return fmt.Sprintf("%d|%s|%d", q.BarberID, q.Start.UTC().Format(time.RFC3339), q.DurationMinutes)
}

func (q AvailabilityQuery) End() time.Time {
	return q.Start.Add(time.Duration(q.DurationMinutes) * time.Minute)
}

// Outcome of a single probe. OutcomeUnknown means the check itself failed.
type Outcome int

const (
	OutcomeAvailable Outcome = iota
	OutcomeBusy
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAvailable:
		return "available"
	case OutcomeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// AvailabilityStatus is the UI-facing availability triple. Available is nil when
// there is no opinion (neutral) or the check failed.
type AvailabilityStatus struct {
	Checking  bool   `json:"checking"`
	Available *bool  `json:"available"`
	Message   string `json:"message"`
}

func NeutralStatus() AvailabilityStatus {
	return AvailabilityStatus{}
}

func CheckingStatus() AvailabilityStatus {
	return AvailabilityStatus{Checking: true, Message: MsgChecking}
}

// StatusFor converts a probe outcome into the terminal UI state.
func StatusFor(o Outcome) AvailabilityStatus {
	switch o {
	case OutcomeAvailable:
		v := true
		return AvailabilityStatus{Available: &v, Message: MsgAvailable}
	case OutcomeBusy:
		v := false
		return AvailabilityStatus{Available: &v, Message: MsgBusy}
	default:
		return AvailabilityStatus{Message: MsgUnableToCheck}
	}
}
