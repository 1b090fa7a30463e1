package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/timezone"
)

// SeedCatalog upserts barbers and services. Services keep the order they are given in.
func (db *DB) SeedCatalog(ctx context.Context, barbers []models.Barber, services []models.Service) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := timezone.Format(time.Now())
	for _, b := range barbers {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO barbers (id, name, sort_order, is_active, created_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order, is_active = excluded.is_active`,
			b.ID, b.Name, b.SortOrder, b.IsActive, now)
		if err != nil {
			return fmt.Errorf("failed to upsert barber %d: %w", b.ID, err)
		}
	}
	for i, s := range services {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO services (name, price, duration_minutes, sort_order, is_active)
            VALUES (?, ?, ?, ?, 1)
            ON CONFLICT(name) DO UPDATE SET price = excluded.price, duration_minutes = excluded.duration_minutes,
                sort_order = excluded.sort_order, is_active = 1`,
			s.Name, s.Price, s.DurationMinutes, i)
		if err != nil {
			return fmt.Errorf("failed to upsert service %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	db.logger.Info().Int("barbers", len(barbers)).Int("services", len(services)).Msg("Catalog seeded")
	return nil
}

// ListBarbers returns active barbers in display order.
func (db *DB) ListBarbers(ctx context.Context) ([]models.Barber, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, name, sort_order, is_active, created_at
        FROM barbers WHERE is_active = 1
        ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list barbers: %w", err)
	}
	defer rows.Close()

	barbers := []models.Barber{}
	for rows.Next() {
		var b models.Barber
		var created string
		if err := rows.Scan(&b.ID, &b.Name, &b.SortOrder, &b.IsActive, &created); err != nil {
			return nil, fmt.Errorf("failed to scan barber: %w", err)
		}
		b.CreatedAt, _ = timezone.Parse(created)
		barbers = append(barbers, b)
	}
	return barbers, rows.Err()
}

// ListServices returns active services in catalog order.
func (db *DB) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT name, price, duration_minutes
        FROM services WHERE is_active = 1
        ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.Name, &s.Price, &s.DurationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func activeBarber(ctx context.Context, q queryer, id int64) error {
	var active bool
	err := q.QueryRowContext(ctx, `SELECT is_active FROM barbers WHERE id = ?`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return domain.Reject(domain.ErrNotFound, fmt.Sprintf("barber %d not found", id))
	}
	if err != nil {
		return fmt.Errorf("failed to load barber %d: %w", id, err)
	}
	return nil
}

func activeService(ctx context.Context, q queryer, name string) (models.Service, error) {
	s := models.Service{Name: name}
	var active bool
	err := q.QueryRowContext(ctx, `SELECT price, duration_minutes, is_active FROM services WHERE name = ?`, name).
		Scan(&s.Price, &s.DurationMinutes, &active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return s, domain.Reject(domain.ErrNotFound, fmt.Sprintf("service %q not found", name))
	}
	if err != nil {
		return s, fmt.Errorf("failed to load service %q: %w", name, err)
	}
	return s, nil
}
