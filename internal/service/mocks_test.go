package service

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) ListBarbers(ctx context.Context) ([]models.Barber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Barber), args.Error(1)
}

func (m *mockLedger) ListServices(ctx context.Context) ([]models.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Service), args.Error(1)
}

func (m *mockLedger) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockLedger) CheckAvailable(ctx context.Context, q models.AvailabilityQuery) (bool, error) {
	args := m.Called(ctx, q)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockLedger) CancelReservation(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func forBarber(id int64) interface{} {
	return mock.MatchedBy(func(q models.AvailabilityQuery) bool { return q.BarberID == id })
}

// stubLedger is a hand-driven ledger for timing-sensitive tests.
type stubLedger struct {
	barbers  []models.Barber
	services []models.Service
	check    func(ctx context.Context, q models.AvailabilityQuery) (bool, error)

	mu           sync.Mutex
	reservations []models.Reservation
	creates      atomic.Int32
}

func (s *stubLedger) ListBarbers(context.Context) ([]models.Barber, error) {
	return s.barbers, nil
}

func (s *stubLedger) ListServices(context.Context) ([]models.Service, error) {
	return s.services, nil
}

func (s *stubLedger) ListReservations(context.Context) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Reservation(nil), s.reservations...), nil
}

func (s *stubLedger) CheckAvailable(ctx context.Context, q models.AvailabilityQuery) (bool, error) {
	return s.check(ctx, q)
}

func (s *stubLedger) CreateReservation(_ context.Context, req models.ReservationRequest) (*models.Reservation, error) {
	s.creates.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := models.Reservation{
		ID:          int64(len(s.reservations) + 1),
		BarberID:    req.BarberID,
		ServiceName: req.ServiceName,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime(),
		Status:      models.StatusBooked,
	}
	s.reservations = append(s.reservations, r)
	return &r, nil
}

func (s *stubLedger) CancelReservation(context.Context, int64) error {
	return nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

var (
	barberA = models.Barber{ID: 1, Name: "Barber A", IsActive: true}
	barberB = models.Barber{ID: 2, Name: "Barber B", IsActive: true}
	haircut = models.Service{Name: "Haircut", Price: 25, DurationMinutes: 30}
	shave   = models.Service{Name: "Shave", Price: 15, DurationMinutes: 45}
)

func at(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2024-06-01 "+clock)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func strPtr(s string) *string { return &s }

func idPtr(id int64) *int64 { return &id }
