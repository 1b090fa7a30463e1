package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientCatalogCache(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "extra", r.Header.Get("x-api-extra"))
		switch r.URL.Path {
		case "/api/v1/barbers":
			writeJSON(w, http.StatusOK, map[string]any{"barbers": []models.Barber{{ID: 1, Name: "Barber A"}}})
		case "/api/v1/services":
			writeJSON(w, http.StatusOK, map[string]any{"services": []models.Service{{Name: "Haircut", DurationMinutes: 30}}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := NewClient(ts.URL+"/", "key", "extra", time.Second)
	client.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	barbers, err := client.ListBarbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Barber{{ID: 1, Name: "Barber A"}}, barbers)

	barbers, err = client.ListBarbers(ctx)
	require.NoError(t, err)
	assert.Len(t, barbers, 1)
	assert.Equal(t, int32(1), calls.Load(), "second read must come from cache")

	services, err := client.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, services[0].DurationMinutes)
	assert.Equal(t, int32(2), calls.Load())

	client.InvalidateCatalog(ctx)
	_, err = client.ListBarbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientCheckAvailable(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "/api/v1/availability", r.URL.Path)
		assert.Equal(t, "2024-06-01T10:00:00Z", q.Get("start"))
		assert.Equal(t, "30", q.Get("duration"))
		writeJSON(w, http.StatusOK, map[string]bool{"available": q.Get("barber_id") == "1"})
	}))
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, "", "", 0)
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	ok, err := client.CheckAvailable(context.Background(), models.AvailabilityQuery{BarberID: 1, Start: start, DurationMinutes: 30})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.CheckAvailable(context.Background(), models.AvailabilityQuery{BarberID: 2, Start: start, DurationMinutes: 30})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientReservations(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/reservations":
			var req models.ReservationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.BarberID == 2 {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "barber 2 is already booked at 10:00"})
				return
			}
			writeJSON(w, http.StatusCreated, models.Reservation{
				ID: 5, CustomerName: req.CustomerName, BarberID: req.BarberID, ServiceName: req.ServiceName,
				StartTime: req.StartTime, EndTime: req.EndTime(), Status: models.StatusBooked,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/reservations/5/cancel":
			writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusCanceled})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/reservations/6/cancel":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "reservation 6 is already canceled"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/reservations":
			writeJSON(w, http.StatusOK, map[string]any{"reservations": []models.Reservation{{ID: 5, Status: models.StatusBooked}}})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, "", "", time.Second)
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		res, err := client.CreateReservation(ctx, models.ReservationRequest{
			CustomerName: "Ann", BarberID: 1, ServiceName: "Haircut", StartTime: start, DurationMinutes: 30,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.ID)
		assert.True(t, res.EndTime.Equal(start.Add(30*time.Minute)))
	})

	t.Run("CreateConflict", func(t *testing.T) {
		_, err := client.CreateReservation(ctx, models.ReservationRequest{BarberID: 2, StartTime: start, DurationMinutes: 30})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrConflict))
		reason, ok := domain.Reason(err)
		assert.True(t, ok)
		assert.Equal(t, "barber 2 is already booked at 10:00", reason)
	})

	t.Run("Cancel", func(t *testing.T) {
		require.NoError(t, client.CancelReservation(ctx, 5))

		err := client.CancelReservation(ctx, 6)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	})

	t.Run("List", func(t *testing.T) {
		list, err := client.ListReservations(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("PlainTextError", func(t *testing.T) {
		err := client.CancelReservation(ctx, 99)
		assert.True(t, errors.Is(err, ErrUpstream))
		assert.Contains(t, err.Error(), "boom")
		_, ok := domain.Reason(err)
		assert.False(t, ok)
	})
}

func TestClientTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(url, "", "", time.Second)
	_, err := client.CheckAvailable(context.Background(), models.AvailabilityQuery{BarberID: 1, DurationMinutes: 30})
	assert.Error(t, err)
	_, ok := domain.Reason(err)
	assert.False(t, ok)
}

func TestClientRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"reservations": []models.Reservation{}})
	}))
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, "", "", time.Second)
	client.UseRateLimit(0.001, 1)

	_, err := client.ListReservations(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.ListReservations(ctx)
	assert.Error(t, err, "second call must wait past the deadline")
}
