package models

const (
	StatusBooked    = "booked"
	StatusCanceled  = "canceled"
	StatusCompleted = "completed"
)

const (
	// DefaultDurationMinutes is used when the selected service cannot be resolved.
	DefaultDurationMinutes = 30

	// DefaultSessionTTL is how long a stored draft outlives its last edit.
	DefaultSessionTTL = 24 * 60 * 60 // 24 hours in seconds

	// CatalogCacheTTL bounds how stale cached barbers and services may be.
	CatalogCacheTTL = 5 * 60 // 5 minutes in seconds

	// WorkerQueueSize buffers background queues (sheets sync, notifications).
	WorkerQueueSize = 128

	// Form requests allowed per client per window.
	RateLimitRequests      = 120
	RateLimitWindowSeconds = 60
)

// User-facing messages produced by the booking form.
const (
	MsgSelectDateTime     = "select a date and time"
	MsgMissingFields      = "fill in name, phone, barber and service"
	MsgChecking           = "checking availability..."
	MsgAvailable          = "the selected barber is available"
	MsgBusy               = "the selected barber is busy at this time"
	MsgUnableToCheck      = "unable to check availability"
	MsgSlotTaken          = "this time slot was just taken, please choose another"
	MsgUnableToVerify     = "unable to verify availability"
	MsgReservationFailed  = "unable to create reservation"
	MsgReservationCreated = "reservation created"
	MsgCancelFailed       = "unable to cancel reservation"
)
