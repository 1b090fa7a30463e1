package models

// SubmissionPhase tracks one submission attempt.
type SubmissionPhase string

const (
	PhaseIdle       SubmissionPhase = "idle"
	PhaseValidating SubmissionPhase = "validating"
	PhaseVerifying  SubmissionPhase = "verifying"
	PhaseCommitting SubmissionPhase = "committing"
	PhaseSucceeded  SubmissionPhase = "succeeded"
	PhaseRejected   SubmissionPhase = "rejected"
	PhaseFailed     SubmissionPhase = "failed"
)

// InFlight reports whether a submission is between Idle and a terminal phase.
func (p SubmissionPhase) InFlight() bool {
	return p == PhaseValidating || p == PhaseVerifying || p == PhaseCommitting
}

type Submission struct {
	Phase       SubmissionPhase `json:"phase"`
	Message     string          `json:"message,omitempty"`
	Reservation *Reservation    `json:"reservation,omitempty"`
}

// Session is the booking form aggregate: draft, catalog, derived lists and status.
type Session struct {
	Draft           BookingDraft       `json:"draft"`
	Barbers         []Barber           `json:"barbers"`
	VisibleBarbers  []Barber           `json:"visible_barbers"`
	Services        []Service          `json:"services"`
	Reservations    []Reservation      `json:"reservations"`
	DurationMinutes int                `json:"duration_minutes"`
	Availability    AvailabilityStatus `json:"availability"`
	Submission      Submission         `json:"submission"`
}

// Clone returns a deep copy safe to hand out of the coordinator.
func (s Session) Clone() Session {
	out := s
	out.Barbers = append([]Barber(nil), s.Barbers...)
	out.VisibleBarbers = append([]Barber(nil), s.VisibleBarbers...)
	out.Services = append([]Service(nil), s.Services...)
	out.Reservations = append([]Reservation(nil), s.Reservations...)
	if s.Availability.Available != nil {
		v := *s.Availability.Available
		out.Availability.Available = &v
	}
	if s.Submission.Reservation != nil {
		r := *s.Submission.Reservation
		out.Submission.Reservation = &r
	}
	return out
}
