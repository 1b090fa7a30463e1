package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/repository"
	"barberbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory ledger: one barber busy set, reservations kept in order.
type fakeLedger struct {
	mu           sync.Mutex
	barbers      []models.Barber
	services     []models.Service
	busy         map[int64]bool
	reservations []models.Reservation
	catalogErr   error
	cancelErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		barbers: []models.Barber{
			{ID: 1, Name: "Barber A", IsActive: true},
			{ID: 2, Name: "Barber B", IsActive: true},
		},
		services: []models.Service{{Name: "Haircut", Price: 25, DurationMinutes: 30}},
		busy:     map[int64]bool{},
	}
}

func (f *fakeLedger) ListBarbers(context.Context) ([]models.Barber, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.barbers, nil
}

func (f *fakeLedger) ListServices(context.Context) ([]models.Service, error) {
	return f.services, nil
}

func (f *fakeLedger) ListReservations(context.Context) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Reservation(nil), f.reservations...), nil
}

func (f *fakeLedger) CheckAvailable(_ context.Context, q models.AvailabilityQuery) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.busy[q.BarberID], nil
}

func (f *fakeLedger) CreateReservation(_ context.Context, req models.ReservationRequest) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := models.Reservation{
		ID:            int64(len(f.reservations) + 1),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		BarberID:      req.BarberID,
		ServiceName:   req.ServiceName,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime(),
		Status:        models.StatusBooked,
		Notes:         req.Notes,
	}
	f.reservations = append(f.reservations, r)
	return &r, nil
}

func (f *fakeLedger) CancelReservation(_ context.Context, id int64) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reservations {
		if f.reservations[i].ID == id {
			if f.reservations[i].Status != models.StatusBooked {
				return domain.Reject(domain.ErrInvalidTransition, "reservation is not booked")
			}
			f.reservations[i].Status = models.StatusCanceled
			return nil
		}
	}
	return domain.Reject(domain.ErrNotFound, "reservation not found")
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func str(s string) *string { return &s }

func newTestManager(ledger domain.Ledger, store domain.DraftStore) *Manager {
	return NewManager(ledger, store, nil, time.Hour, models.DefaultDurationMinutes, testLogger())
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	store := repository.NewMemoryDraftStore(time.Hour)
	m := newTestManager(ledger, store)

	id, s, err := m.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, s.VisibleBarbers, 2)
	assert.Equal(t, 1, m.Len())

	ledger.busy[1] = true
	s, err = m.Update(ctx, id, service.Edit{
		CustomerName:  str("Ann"),
		CustomerPhone: str("+100"),
		Date:          str("2024-06-01"),
		Time:          str("10:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Draft.BarberID)

	stored, err := store.GetDraft(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, s.Draft, *stored)

	s, err = m.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSucceeded, s.Submission.Phase)
	require.Len(t, s.Reservations, 1)

	stored, _ = store.GetDraft(ctx, id)
	assert.Empty(t, stored.Date, "cleared schedule is persisted")
	assert.Equal(t, "Ann", stored.CustomerName)

	s, err = m.Cancel(ctx, id, s.Reservations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, s.Reservations[0].Status)

	_, err = m.Cancel(ctx, id, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.Close(ctx, id))
	_, err = m.Snapshot(ctx, id)
	assert.ErrorIs(t, err, domain.ErrUnknownSession)
}

func TestManagerRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	store := repository.NewMemoryDraftStore(time.Hour)

	first := newTestManager(ledger, store)
	id, _, err := first.Create(ctx)
	require.NoError(t, err)
	_, err = first.Update(ctx, id, service.Edit{CustomerName: str("Ann"), Date: str("2024-06-01"), Time: str("10:00")})
	require.NoError(t, err)

	// A fresh process only has the stored draft.
	second := newTestManager(ledger, store)
	s, err := second.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann", s.Draft.CustomerName)
	assert.Equal(t, "10:00", s.Draft.Time)
	assert.Len(t, s.Barbers, 2)
	assert.Equal(t, models.MsgAvailable, s.Availability.Message)
	assert.Equal(t, 1, second.Len())
}

func TestManagerUnknownSession(t *testing.T) {
	m := newTestManager(newFakeLedger(), repository.NewMemoryDraftStore(time.Hour))
	_, err := m.Update(context.Background(), "missing", service.Edit{})
	assert.ErrorIs(t, err, domain.ErrUnknownSession)
}

func TestManagerCreateCatalogError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.catalogErr = errors.New("ledger down")
	m := newTestManager(ledger, repository.NewMemoryDraftStore(time.Hour))

	_, _, err := m.Create(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestManagerSweep(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryDraftStore(24 * time.Hour)
	m := newTestManager(newFakeLedger(), store)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	id, _, err := m.Create(ctx)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 0, m.Sweep())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Len())

	// The draft outlives the in-memory session.
	_, err = m.Snapshot(ctx, id)
	assert.NoError(t, err)
}
