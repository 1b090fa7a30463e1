package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/domain"
	"barberbook/internal/logging"
	"barberbook/internal/metrics"
	"barberbook/internal/models"
	"barberbook/internal/service"

	"github.com/rs/zerolog"
)

// Server exposes booking form sessions over HTTP.
type Server struct {
	cfg     config.FormConfig
	manager *Manager
	limiter domain.RateLimiter
	logger  *zerolog.Logger
	server  *http.Server
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Session   models.Session `json:"session"`
}

func NewServer(cfg config.FormConfig, manager *Manager, limiter domain.RateLimiter, logger *zerolog.Logger) *Server {
	srv := &Server{cfg: cfg, manager: manager, limiter: limiter, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("POST /api/v1/sessions", srv.handleCreate)
	mux.HandleFunc("GET /api/v1/sessions/{id}", srv.handleGet)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", srv.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", srv.handleClose)
	mux.HandleFunc("POST /api/v1/sessions/{id}/submit", srv.handleSubmit)
	mux.HandleFunc("POST /api/v1/sessions/{id}/refresh", srv.handleRefresh)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reservations/{rid}/cancel", srv.handleCancel)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           logging.HTTPMiddleware(logger)(srv.rateLimit(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("booking form API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	window := time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.cfg.RateLimitRequests <= 0 || window <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		allowed, err := s.limiter.CheckRateLimit(r.Context(), clientIP(r), s.cfg.RateLimitRequests, window)
		if err != nil {
			s.logger.Warn().Err(err).Msg("rate limit check failed")
		}
		if err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.manager.Len()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_create")
	id, sess, err := s.manager.Create(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("create session failed")
		writeError(w, http.StatusBadGateway, "unable to load catalog")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Session: sess})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_get")
	id := r.PathValue("id")
	sess, err := s.manager.Snapshot(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: sess})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_update")
	var edit service.Edit
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&edit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := r.PathValue("id")
	sess, err := s.manager.Update(r.Context(), id, edit)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: sess})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_close")
	if err := s.manager.Close(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Warn().Err(err).Msg("clear draft failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_submit")
	id := r.PathValue("id")
	sess, err := s.manager.Submit(r.Context(), id)
	if errors.Is(err, domain.ErrSubmissionInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: sess})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_refresh")
	id := r.PathValue("id")
	sess, err := s.manager.Refresh(r.Context(), id)
	if errors.Is(err, domain.ErrUnknownSession) {
		s.writeSessionError(w, err)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("refresh failed")
		writeError(w, http.StatusBadGateway, "unable to load reservations")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: sess})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_cancel")
	id := r.PathValue("id")
	rid, err := strconv.ParseInt(r.PathValue("rid"), 10, 64)
	if err != nil || rid <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	sess, err := s.manager.Cancel(r.Context(), id, rid)
	switch {
	case errors.Is(err, domain.ErrUnknownSession):
		s.writeSessionError(w, err)
		return
	case err != nil:
		msg, ok := domain.Reason(err)
		if !ok {
			msg = models.MsgCancelFailed
		}
		writeError(w, cancelStatus(err), msg)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: sess})
}

func cancelStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnknownSession) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Msg("session lookup failed")
	writeError(w, http.StatusBadGateway, "session unavailable")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, _ := strings.Cut(fwd, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
