// Package notify tells shop managers about reservation changes over Telegram.
package notify

import (
	"context"
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/logging"
	"barberbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BarberLister resolves barber names for messages.
type BarberLister interface {
	ListBarbers(ctx context.Context) ([]models.Barber, error)
}

type notice struct {
	eventType string
	payload   events.ReservationEventPayload
}

// TelegramNotifier sends one message per manager chat for each reservation event.
// Events are queued so publishers never wait on Telegram.
type TelegramNotifier struct {
	sender  domain.TelegramSender
	chatIDs []int64
	barbers BarberLister
	logger  *zerolog.Logger
	queue   chan notice
}

func NewTelegramNotifier(sender domain.TelegramSender, chatIDs []int64, barbers BarberLister, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:  sender,
		chatIDs: chatIDs,
		barbers: barbers,
		logger:  logging.Component(logger, "notify"),
		queue:   make(chan notice, models.WorkerQueueSize),
	}
}

// Subscribe registers the notifier for created and canceled reservations.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	for _, typ := range []string{events.EventReservationCreated, events.EventReservationCanceled} {
		bus.Subscribe(typ, n.enqueue)
	}
}

func (n *TelegramNotifier) enqueue(e *events.Event) error {
	var p events.ReservationEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	select {
	case n.queue <- notice{eventType: e.Type, payload: p}:
		return nil
	default:
		n.logger.Warn().Int64("reservation_id", p.ReservationID).Msg("notification queue full, dropping")
		return nil
	}
}

// Start delivers queued notices until ctx is done.
func (n *TelegramNotifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-n.queue:
			n.deliver(ctx, item)
		}
	}
}

func (n *TelegramNotifier) deliver(ctx context.Context, item notice) {
	text := n.format(ctx, item)
	for _, chatID := range n.chatIDs {
		if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Int64("reservation_id", item.payload.ReservationID).
				Msg("failed to notify manager")
		}
	}
}

func (n *TelegramNotifier) format(ctx context.Context, item notice) string {
	p := item.payload
	title := "New reservation"
	if item.eventType == events.EventReservationCanceled {
		title = "Reservation canceled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d\n", title, p.ReservationID)
	fmt.Fprintf(&b, "Barber: %s\n", n.barberName(ctx, p.BarberID))
	fmt.Fprintf(&b, "Service: %s\n", p.ServiceName)
	fmt.Fprintf(&b, "When: %s - %s UTC\n", p.StartTime.Format("2006-01-02 15:04"), p.EndTime.Format("15:04"))
	fmt.Fprintf(&b, "Customer: %s, %s", p.CustomerName, p.CustomerPhone)
	if p.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", p.Notes)
	}
	return b.String()
}

func (n *TelegramNotifier) barberName(ctx context.Context, id int64) string {
	if n.barbers != nil {
		if barbers, err := n.barbers.ListBarbers(ctx); err == nil {
			for _, b := range barbers {
				if b.ID == id {
					return b.Name
				}
			}
		}
	}
	return fmt.Sprintf("#%d", id)
}
