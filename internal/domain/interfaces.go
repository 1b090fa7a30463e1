package domain

import (
	"context"
	"time"

	"barberbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Ledger is the authoritative reservation store the booking form depends on.
type Ledger interface {
	ListBarbers(ctx context.Context) ([]models.Barber, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	ListReservations(ctx context.Context) ([]models.Reservation, error)
	CheckAvailable(ctx context.Context, q models.AvailabilityQuery) (bool, error)
	CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id int64) error
}

// LedgerStore is the server-side view of the ledger, including back-office operations.
type LedgerStore interface {
	Ledger
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CompleteReservation(ctx context.Context, id int64) error
	ListReservationsBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// DraftStore persists booking form drafts by session id. A missing draft is (nil, nil).
type DraftStore interface {
	GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, sessionID string, draft models.BookingDraft) error
	ClearDraft(ctx context.Context, sessionID string) error
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type SessionStore interface {
	DraftStore
	RateLimiter
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TelegramSender is the subset of the bot API used for outbound messages.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SheetsWriter mirrors reservations into an external spreadsheet.
type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error
}
