package models

import (
	"strings"
	"time"
)

// BookingDraft is the in-progress booking form. Date and Time hold raw user input;
// the instant is derived from them on demand.
type BookingDraft struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	BarberID      int64  `json:"barber_id"` // 0 means no selection
	ServiceName   string `json:"service_name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Notes         string `json:"notes,omitempty"`
}

// Missing lists the identity fields still required before submission.
func (d BookingDraft) Missing() []string {
	var missing []string
	if strings.TrimSpace(d.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(d.CustomerPhone) == "" {
		missing = append(missing, "customer_phone")
	}
	if d.BarberID == 0 {
		missing = append(missing, "barber_id")
	}
	if strings.TrimSpace(d.ServiceName) == "" {
		missing = append(missing, "service_name")
	}
	return missing
}

// ClearSchedule drops date, time and notes while keeping identity fields for a repeat booking.
func (d *BookingDraft) ClearSchedule() {
	d.Date = ""
	d.Time = ""
	d.Notes = ""
}

// Request builds the create payload. Blank notes are left out of the wire body.
func (d BookingDraft) Request(start time.Time, durationMinutes int) ReservationRequest {
	return ReservationRequest{
		CustomerName:    strings.TrimSpace(d.CustomerName),
		CustomerPhone:   strings.TrimSpace(d.CustomerPhone),
		BarberID:        d.BarberID,
		ServiceName:     d.ServiceName,
		StartTime:       start.UTC(),
		DurationMinutes: durationMinutes,
		Notes:           strings.TrimSpace(d.Notes),
	}
}
