package events

import (
	"encoding/json"
	"sync"
	"time"

	"barberbook/internal/models"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationCanceled  = "reservation_canceled"
	EventReservationCompleted = "reservation_completed"
	EventSlotTaken            = "slot_taken"
)

// ReservationEventPayload describes the minimal reservation snapshot for event consumers.
type ReservationEventPayload struct {
	ReservationID int64     `json:"reservation_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	BarberID      int64     `json:"barber_id"`
	ServiceName   string    `json:"service_name"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Notes         string    `json:"notes,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// NewReservationPayload snapshots r for publishing.
func NewReservationPayload(r models.Reservation, source string) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID: r.ID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		BarberID:      r.BarberID,
		ServiceName:   r.ServiceName,
		Status:        r.Status,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Notes:         r.Notes,
		Source:        source,
	}
}

// SlotTakenPayload describes a submission that lost the race for a slot.
type SlotTakenPayload struct {
	BarberID        int64     `json:"barber_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Stage           string    `json:"stage"` // verify or commit
}

// Decode unmarshals the event payload into out.
func (e *Event) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a hook that observes handler failures.
func (b *EventBus) OnError(hook func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = hook
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
