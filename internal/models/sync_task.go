package models

import "time"

// Sync task lifecycle. Pending and retry tasks are due for processing.
const (
	SyncPending   = "pending"
	SyncRetry     = "retry"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

// SyncTask is one queued spreadsheet update for a reservation.
type SyncTask struct {
	ID            int64      `json:"id"`
	TaskType      string     `json:"task_type"`
	ReservationID int64      `json:"reservation_id"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	LastError     *string    `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
	NextRetryAt   *time.Time `json:"next_retry_at"`
}

// Terminal reports whether the task will not be picked up again.
func (t SyncTask) Terminal() bool {
	return t.Status == SyncCompleted || t.Status == SyncFailed
}
