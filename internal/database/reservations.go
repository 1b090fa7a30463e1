package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/timezone"
)

const reservationColumns = `id, customer_name, customer_phone, barber_id, service_name,
        start_time, end_time, status, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (models.Reservation, error) {
	var r models.Reservation
	var start, end, created, updated string
	err := row.Scan(&r.ID, &r.CustomerName, &r.CustomerPhone, &r.BarberID, &r.ServiceName,
		&start, &end, &r.Status, &r.Notes, &created, &updated)
	if err != nil {
		return r, err
	}
	if r.StartTime, err = timezone.Parse(start); err != nil {
		return r, fmt.Errorf("reservation %d start_time: %w", r.ID, err)
	}
	if r.EndTime, err = timezone.Parse(end); err != nil {
		return r, fmt.Errorf("reservation %d end_time: %w", r.ID, err)
	}
	r.CreatedAt, _ = timezone.Parse(created)
	r.UpdatedAt, _ = timezone.Parse(updated)
	return r, nil
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	reservations := []models.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// ListReservations returns every reservation, oldest start first.
func (db *DB) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations ORDER BY start_time, id`)
}

// ListReservationsBetween returns reservations starting in [from, to).
func (db *DB) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
        WHERE start_time >= ? AND start_time < ?
        ORDER BY start_time, id`,
		timezone.Format(from), timezone.Format(to))
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Reject(domain.ErrNotFound, fmt.Sprintf("reservation %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return &r, nil
}

// CheckAvailable reports whether the barber has no booked reservation
// overlapping [q.Start, q.Start+duration).
func (db *DB) CheckAvailable(ctx context.Context, q models.AvailabilityQuery) (bool, error) {
	if q.DurationMinutes <= 0 {
		return false, domain.Reject(domain.ErrInvalidRequest, "duration must be positive")
	}
	if err := activeBarber(ctx, db, q.BarberID); err != nil {
		return false, err
	}
	end := q.Start.Add(time.Duration(q.DurationMinutes) * time.Minute)
	conflict, err := findOverlap(ctx, db, q.BarberID, q.Start, end)
	if err != nil {
		return false, err
	}
	return conflict == nil, nil
}

func findOverlap(ctx context.Context, q queryer, barberID int64, start, end time.Time) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, `
        SELECT `+reservationColumns+` FROM reservations
        WHERE barber_id = ? AND status = ? AND start_time < ? AND end_time > ?
        ORDER BY start_time LIMIT 1`,
		barberID, models.StatusBooked, timezone.Format(end), timezone.Format(start))
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check overlap: %w", err)
	}
	return &r, nil
}

func validateRequest(req models.ReservationRequest) error {
	switch {
	case strings.TrimSpace(req.CustomerName) == "":
		return domain.Reject(domain.ErrInvalidRequest, "customer name is required")
	case strings.TrimSpace(req.CustomerPhone) == "":
		return domain.Reject(domain.ErrInvalidRequest, "customer phone is required")
	case req.BarberID == 0:
		return domain.Reject(domain.ErrInvalidRequest, "barber is required")
	case strings.TrimSpace(req.ServiceName) == "":
		return domain.Reject(domain.ErrInvalidRequest, "service is required")
	case req.StartTime.IsZero():
		return domain.Reject(domain.ErrInvalidRequest, "start time is required")
	case req.DurationMinutes < 0:
		return domain.Reject(domain.ErrInvalidRequest, "duration must be positive")
	}
	return nil
}

// CreateReservation checks for overlap and inserts in one write transaction.
// A zero duration falls back to the service's catalog duration.
func (db *DB) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := activeBarber(ctx, tx, req.BarberID); err != nil {
		return nil, err
	}
	svc, err := activeService(ctx, tx, req.ServiceName)
	if err != nil {
		return nil, err
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = svc.DurationMinutes
	}

	start := req.StartTime.In(timezone.Canonical)
	end := req.EndTime().In(timezone.Canonical)
	conflict, err := findOverlap(ctx, tx, req.BarberID, start, end)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, domain.Reject(domain.ErrConflict, fmt.Sprintf(
			"barber %d is already booked from %s to %s",
			req.BarberID, conflict.StartTime.Format("15:04"), conflict.EndTime.Format("15:04")))
	}

	now := time.Now().In(timezone.Canonical).Truncate(time.Second)
	res, err := tx.ExecContext(ctx, `
        INSERT INTO reservations (customer_name, customer_phone, barber_id, service_name,
            start_time, end_time, status, notes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(req.CustomerName), strings.TrimSpace(req.CustomerPhone), req.BarberID, req.ServiceName,
		timezone.Format(start), timezone.Format(end), models.StatusBooked, strings.TrimSpace(req.Notes),
		timezone.Format(now), timezone.Format(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	db.logger.Info().
		Int64("reservation_id", id).
		Int64("barber_id", req.BarberID).
		Time("start", start).
		Msg("Reservation created")

	return &models.Reservation{
		ID:            id,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		BarberID:      req.BarberID,
		ServiceName:   req.ServiceName,
		StartTime:     start.Truncate(time.Second),
		EndTime:       end.Truncate(time.Second),
		Status:        models.StatusBooked,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CancelReservation moves a booked reservation to canceled.
func (db *DB) CancelReservation(ctx context.Context, id int64) error {
	return db.transition(ctx, id, models.StatusCanceled)
}

// CompleteReservation moves a booked reservation to completed.
func (db *DB) CompleteReservation(ctx context.Context, id int64) error {
	return db.transition(ctx, id, models.StatusCompleted)
}

func (db *DB) transition(ctx context.Context, id int64, to string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, timezone.Format(time.Now()), id, models.StatusBooked)
	if err != nil {
		return fmt.Errorf("failed to update reservation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		db.logger.Info().Int64("reservation_id", id).Str("status", to).Msg("Reservation status changed")
		return nil
	}

	current, err := db.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	return domain.Reject(domain.ErrInvalidTransition,
		fmt.Sprintf("reservation %d is %s, only booked reservations can be %s", id, current.Status, to))
}
