package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barberbook/internal/models"
)

const syncTaskColumns = `id, task_type, reservation_id, payload, status, retry_count, last_error,
        created_at, processed_at, next_retry_at`

// CreateSyncTask stores a sheet sync job and fills in its id and creation time.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncPending
	}
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
        INSERT INTO sync_queue (task_type, reservation_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.ReservationID, task.Payload, task.Status, task.RetryCount, task.LastError,
		now, utcPtr(task.NextRetryAt))
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns due pending and retry tasks in insertion order.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+syncTaskColumns+` FROM sync_queue
        WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY id LIMIT ?`,
		models.SyncPending, models.SyncRetry, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	defer rows.Close()
	return scanSyncTasks(rows)
}

// GetFailedSyncTasks returns tasks that ran out of retries, newest first.
func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+syncTaskColumns+` FROM sync_queue
        WHERE status = ? ORDER BY id DESC`, models.SyncFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	defer rows.Close()
	return scanSyncTasks(rows)
}

// UpdateSyncTaskStatus records an attempt. A retry bumps retry_count and
// schedules the next attempt; a terminal status stamps processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	var processedAt *time.Time
	bump := 0
	switch status {
	case models.SyncRetry:
		bump = 1
	case models.SyncCompleted, models.SyncFailed:
		now := time.Now().UTC()
		processedAt = &now
	}

	_, err := db.ExecContext(ctx, `
        UPDATE sync_queue
        SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + ?,
            processed_at = COALESCE(?, processed_at)
        WHERE id = ?`,
		status, lastError, utcPtr(nextRetryAt), bump, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update sync task %d: %w", id, err)
	}
	return nil
}

func scanSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		var payload sql.NullString
		if err := rows.Scan(&t.ID, &t.TaskType, &t.ReservationID, &payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		t.Payload = payload.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// utcPtr keeps stored timestamps in one zone so they compare as text.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
