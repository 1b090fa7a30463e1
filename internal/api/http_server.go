package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/export"
	"barberbook/internal/logging"
	"barberbook/internal/metrics"
	"barberbook/internal/models"
	"barberbook/internal/timezone"

	"github.com/rs/zerolog"
)

const (
	eventSource   = "api"
	exportMaxDays = 92
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HTTPServer exposes the ledger over the JSON contract the booking form's gateway speaks.
type HTTPServer struct {
	cfg    config.APIConfig
	store  domain.LedgerStore
	events domain.EventPublisher
	logger *zerolog.Logger
	server *http.Server
	auth   *HTTPAuth
}

func NewHTTPServer(cfg config.APIConfig, store domain.LedgerStore, publisher domain.EventPublisher, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:    cfg,
		store:  store,
		events: publisher,
		logger: logging.Component(logger, "ledger_api"),
		auth:   NewHTTPAuth(cfg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/v1/barbers", srv.handleBarbers)
	mux.HandleFunc("GET /api/v1/services", srv.handleServices)
	mux.HandleFunc("GET /api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("GET /api/v1/reservations", srv.handleListReservations)
	mux.HandleFunc("POST /api/v1/reservations", srv.handleCreateReservation)
	mux.HandleFunc("GET /api/v1/reservations/export", srv.handleExport)
	mux.HandleFunc("GET /api/v1/reservations/{id}", srv.handleGetReservation)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/v1/reservations/{id}/complete", srv.handleComplete)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           logging.HTTPMiddleware(logger)(srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("ledger API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleBarbers(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_barbers")
	barbers, err := s.store.ListBarbers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"barbers": barbers})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_services")
	services, err := s.store.ListServices(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_availability")
	query := r.URL.Query()

	barberID, err := strconv.ParseInt(strings.TrimSpace(query.Get("barber_id")), 10, 64)
	if err != nil || barberID <= 0 {
		writeError(w, http.StatusBadRequest, "barber_id is required")
		return
	}
	start, err := timezone.Parse(query.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected RFC 3339")
		return
	}
	duration, err := strconv.Atoi(strings.TrimSpace(query.Get("duration")))
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
		return
	}

	q := models.AvailabilityQuery{BarberID: barberID, Start: start, DurationMinutes: duration}
	available, err := s.store.CheckAvailable(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"barber_id":        barberID,
		"start":            timezone.Format(start),
		"duration_minutes": duration,
		"available":        available,
	})
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_reservations")
	query := r.URL.Query()

	var (
		reservations []models.Reservation
		err          error
	)
	if query.Get("from") == "" && query.Get("to") == "" {
		reservations, err = s.store.ListReservations(r.Context())
	} else {
		from, to, perr := parseRange(query.Get("from"), query.Get("to"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		reservations, err = s.store.ListReservationsBetween(r.Context(), from, to)
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_reservation_get")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.store.GetReservation(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_reservation_create")

	var req models.ReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.store.CreateReservation(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info().Err(err).Int64("barber_id", req.BarberID).Time("start", req.StartTime).Msg("reservation rejected")
		}
		s.writeStoreError(w, err)
		return
	}

	s.publish(events.EventReservationCreated, *res)
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_reservation_cancel")
	s.transition(w, r, s.store.CancelReservation, events.EventReservationCanceled)
}

func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_reservation_complete")
	s.transition(w, r, s.store.CompleteReservation, events.EventReservationCompleted)
}

func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) error, eventType string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := apply(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	res, err := s.store.GetReservation(r.Context(), id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("reservation_id", id).Msg("reload after status change failed")
		writeJSON(w, http.StatusOK, map[string]any{"id": id})
		return
	}
	s.publish(eventType, *res)
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger_export")
	query := r.URL.Query()

	from, to, err := parseDays(query.Get("from"), query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservations, err := s.store.ListReservationsBetween(r.Context(), from, to)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	barbers, err := s.store.ListBarbers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	// render fully before writing headers so a failure still gets a JSON error
	var buf bytes.Buffer
	if err := export.Write(&buf, reservations, barbers, from, to); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	name := fmt.Sprintf("reservations_%s_to_%s.xlsx", from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) publish(eventType string, res models.Reservation) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, events.NewReservationPayload(res, eventSource)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

// writeStoreError maps ledger sentinels onto the status codes the gateway client decodes.
func (s *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("ledger store error")
		writeError(w, status, "internal error")
		return
	}
	msg, ok := domain.Reason(err)
	if !ok {
		msg = err.Error()
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return 0, false
	}
	return id, true
}

// parseRange reads an RFC 3339 [from, to) window; either bound may be omitted.
func parseRange(rawFrom, rawTo string) (time.Time, time.Time, error) {
	from := time.Unix(0, 0).UTC()
	to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	var err error
	if rawFrom != "" {
		if from, err = timezone.Parse(rawFrom); err != nil {
			return from, to, errors.New("invalid from; expected RFC 3339")
		}
	}
	if rawTo != "" {
		if to, err = timezone.Parse(rawTo); err != nil {
			return from, to, errors.New("invalid to; expected RFC 3339")
		}
	}
	if !to.After(from) {
		return from, to, errors.New("to must be after from")
	}
	return from, to, nil
}

// parseDays reads an inclusive YYYY-MM-DD range and returns it as [from, to+1d).
// Missing bounds default to the coming week.
func parseDays(rawFrom, rawTo string) (time.Time, time.Time, error) {
	now := time.Now().In(timezone.Canonical)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, timezone.Canonical)
	var err error
	if rawFrom != "" {
		if from, err = time.ParseInLocation("2006-01-02", rawFrom, timezone.Canonical); err != nil {
			return from, from, errors.New("invalid from; expected YYYY-MM-DD")
		}
	}
	last := from.AddDate(0, 0, 6)
	if rawTo != "" {
		if last, err = time.ParseInLocation("2006-01-02", rawTo, timezone.Canonical); err != nil {
			return from, from, errors.New("invalid to; expected YYYY-MM-DD")
		}
	}
	if last.Before(from) {
		return from, from, errors.New("to must not be before from")
	}
	if last.Sub(from) > exportMaxDays*24*time.Hour {
		return from, from, fmt.Errorf("range is limited to %d days", exportMaxDays)
	}
	return from, last.AddDate(0, 0, 1), nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
