package service

import (
	"context"
	"fmt"
	"sync"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/timezone"

	"github.com/rs/zerolog"
)

// Logical keys for supersession. A newer pass on a key invalidates older ones.
const (
	keySelection    = "selection"
	keyFilter       = "filter"
	keyReservations = "reservations"
)

// Edit is a batch of form field changes. Nil fields are left untouched.
type Edit struct {
	CustomerName  *string `json:"customer_name,omitempty"`
	CustomerPhone *string `json:"customer_phone,omitempty"`
	BarberID      *int64  `json:"barber_id,omitempty"`
	ServiceName   *string `json:"service_name,omitempty"`
	Date          *string `json:"date,omitempty"`
	Time          *string `json:"time,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// Coordinator owns one booking form session. Every mutation of the session goes
// through it; ledger calls run outside the lock.
type Coordinator struct {
	ledger domain.Ledger
	prober *Prober
	filter *ResourceFilter
	events domain.EventPublisher
	logger *zerolog.Logger

	fallbackMinutes int

	mu      sync.Mutex
	session models.Session
	gens    map[string]uint64
	cancels map[string]context.CancelFunc
}

func NewCoordinator(ledger domain.Ledger, events domain.EventPublisher, logger *zerolog.Logger) *Coordinator {
	prober := NewProber(ledger, logger)
	return &Coordinator{
		ledger:  ledger,
		prober:  prober,
		filter:  NewResourceFilter(prober),
		events:  events,
		logger:  logger,
		gens:    make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),

		fallbackMinutes: models.DefaultDurationMinutes,
		session:         models.Session{DurationMinutes: models.DefaultDurationMinutes},
	}
}

// SetFallbackDuration sets the duration used when the selected service is unknown.
func (c *Coordinator) SetFallbackDuration(minutes int) {
	if minutes <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbackMinutes = minutes
	c.session.DurationMinutes = c.durationFor(c.session.Draft.ServiceName)
}

// durationFor resolves the service duration. Callers must hold c.mu.
func (c *Coordinator) durationFor(serviceName string) int {
	return models.DurationFor(c.session.Services, serviceName, c.fallbackMinutes)
}

// Snapshot returns a copy of the current session.
func (c *Coordinator) Snapshot() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Restore replaces the draft, typically before LoadCatalog when a session is rebuilt.
func (c *Coordinator) Restore(draft models.BookingDraft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Draft = draft
}

// LoadCatalog fetches barbers, services and reservations, seeds a default
// service and runs a filter pass against whatever instant the draft holds.
func (c *Coordinator) LoadCatalog(ctx context.Context) (models.Session, error) {
	barbers, err := c.ledger.ListBarbers(ctx)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("list barbers: %w", err)
	}
	services, err := c.ledger.ListServices(ctx)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("list services: %w", err)
	}

	c.mu.Lock()
	c.session.Barbers = barbers
	c.session.VisibleBarbers = append([]models.Barber(nil), barbers...)
	c.session.Services = services
	if c.session.Draft.ServiceName == "" && len(services) > 0 {
		c.session.Draft.ServiceName = services[0].Name
	}
	c.mu.Unlock()

	if err := c.RefreshReservations(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("initial reservations load failed")
	}

	c.derive(ctx, true)
	return c.Snapshot(), nil
}

// Update applies a batch of edits and runs at most one re-derivation pass.
// Service, date or time changes re-filter the catalog; a barber change alone
// only re-probes the selected barber.
func (c *Coordinator) Update(ctx context.Context, e Edit) models.Session {
	c.mu.Lock()
	d := &c.session.Draft
	full := false
	selection := false
	if e.CustomerName != nil {
		d.CustomerName = *e.CustomerName
	}
	if e.CustomerPhone != nil {
		d.CustomerPhone = *e.CustomerPhone
	}
	if e.Notes != nil {
		d.Notes = *e.Notes
	}
	if e.BarberID != nil && *e.BarberID != d.BarberID {
		d.BarberID = *e.BarberID
		selection = true
	}
	if e.ServiceName != nil && *e.ServiceName != d.ServiceName {
		d.ServiceName = *e.ServiceName
		full = true
	}
	if e.Date != nil && *e.Date != d.Date {
		d.Date = *e.Date
		full = true
	}
	if e.Time != nil && *e.Time != d.Time {
		d.Time = *e.Time
		full = true
	}
	c.mu.Unlock()

	if full || selection {
		c.derive(ctx, full)
	}
	return c.Snapshot()
}

// SelectBarber changes the selection and re-probes it.
func (c *Coordinator) SelectBarber(ctx context.Context, barberID int64) models.Session {
	return c.Update(ctx, Edit{BarberID: &barberID})
}

// derive runs one re-derivation pass. With full set it also recomputes the
// duration and the visible barber list; otherwise only the selected barber is probed.
func (c *Coordinator) derive(ctx context.Context, full bool) {
	// A pass ends on supersession only. A caller going away must not turn into
	// fail-open results stored in the session.
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	draft := c.session.Draft
	if full {
		c.session.DurationMinutes = c.durationFor(draft.ServiceName)
	}
	duration := c.session.DurationMinutes
	barbers := append([]models.Barber(nil), c.session.Barbers...)

	selGen, selCtx := c.supersede(ctx, keySelection)
	var filterGen uint64
	filterCtx := ctx
	if full {
		filterGen, filterCtx = c.supersede(ctx, keyFilter)
	}

	start, ok := timezone.Normalize(draft.Date, draft.Time)
	if !ok {
		c.session.Availability = models.NeutralStatus()
		if full {
			c.session.VisibleBarbers = barbers
			c.session.Draft.BarberID = Reconcile(c.session.Draft.BarberID, barbers)
			c.release(keyFilter, filterGen)
		}
		c.release(keySelection, selGen)
		c.mu.Unlock()
		return
	}
	if draft.BarberID != 0 {
		c.session.Availability = models.CheckingStatus()
	} else {
		c.session.Availability = models.NeutralStatus()
	}
	c.mu.Unlock()

	var (
		wg       sync.WaitGroup
		selected = models.OutcomeUnknown
		visible  []models.Barber
		outcomes map[int64]models.Outcome
	)
	if draft.BarberID != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := models.AvailabilityQuery{BarberID: draft.BarberID, Start: start, DurationMinutes: duration}
			selected, _ = c.prober.Probe(selCtx, q, ModeSelection)
		}()
	}
	if full {
		wg.Add(1)
		go func() {
			defer wg.Done()
			visible, outcomes = c.filter.Filter(filterCtx, barbers, start, duration)
		}()
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if full {
		if c.gens[keyFilter] != filterGen {
			c.logger.Debug().Uint64("gen", filterGen).Msg("dropping superseded filter pass")
			c.release(keySelection, selGen)
			return
		}
		c.session.VisibleBarbers = visible
		c.release(keyFilter, filterGen)

		current := c.session.Draft.BarberID
		next := Reconcile(current, visible)
		if next != current {
			c.session.Draft.BarberID = next
			// The reassigned barber's status is already known from the fan-out.
			c.invalidate(keySelection)
			if next == 0 {
				c.session.Availability = models.NeutralStatus()
			} else {
				c.session.Availability = models.StatusFor(outcomes[next])
			}
			return
		}
	}

	if c.gens[keySelection] != selGen {
		return
	}
	c.release(keySelection, selGen)
	if draft.BarberID == 0 {
		c.session.Availability = models.NeutralStatus()
		return
	}
	c.session.Availability = models.StatusFor(selected)
}

// supersede starts a new generation for key and cancels the in-flight one.
// Callers must hold c.mu.
func (c *Coordinator) supersede(ctx context.Context, key string) (uint64, context.Context) {
	gen := c.invalidate(key)
	passCtx, cancel := context.WithCancel(ctx)
	c.cancels[key] = cancel
	return gen, passCtx
}

// invalidate bumps the generation for key so pending results are dropped.
// Callers must hold c.mu.
func (c *Coordinator) invalidate(key string) uint64 {
	if cancel, ok := c.cancels[key]; ok {
		cancel()
		delete(c.cancels, key)
	}
	c.gens[key]++
	return c.gens[key]
}

// release frees the pass context if gen is still the latest for key.
// Callers must hold c.mu.
func (c *Coordinator) release(key string, gen uint64) {
	if c.gens[key] != gen {
		return
	}
	if cancel, ok := c.cancels[key]; ok {
		cancel()
		delete(c.cancels, key)
	}
}

// RefreshReservations reloads the reservation list from the ledger. A refresh
// that completes after a newer one has been issued is discarded.
func (c *Coordinator) RefreshReservations(ctx context.Context) error {
	c.mu.Lock()
	c.gens[keyReservations]++
	gen := c.gens[keyReservations]
	c.mu.Unlock()

	reservations, err := c.ledger.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[keyReservations] == gen {
		c.session.Reservations = reservations
	}
	return nil
}

func (c *Coordinator) publish(eventType string, payload interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(eventType, payload); err != nil {
		c.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
