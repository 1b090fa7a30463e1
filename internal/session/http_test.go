package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/models"
	"barberbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ledger *fakeLedger, cfg config.FormConfig) http.Handler {
	t.Helper()
	store := repository.NewMemoryDraftStore(time.Hour)
	m := newTestManager(ledger, store)
	return NewServer(cfg, m, store, testLogger()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, sessionResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp sessionResponse
	if rec.Code < 300 && rec.Body.Len() > 0 {
		require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp))
	}
	return rec, resp
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestFormAPIBookingFlow(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestServer(t, ledger, config.FormConfig{})

	rec, created := do(t, h, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := created.SessionID
	require.NotEmpty(t, id)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, resp := do(t, h, http.MethodPatch, "/api/v1/sessions/"+id,
		`{"customer_name":"Ann","customer_phone":"+100","date":"2024-06-01","time":"10:00","notes":"short"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MsgAvailable, resp.Session.Availability.Message)
	assert.Equal(t, 30, resp.Session.DurationMinutes)

	rec, resp = do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PhaseSucceeded, resp.Session.Submission.Phase)
	require.Len(t, resp.Session.Reservations, 1)
	assert.Equal(t, "short", resp.Session.Reservations[0].Notes)
	assert.Empty(t, resp.Session.Draft.Time)

	rid := resp.Session.Reservations[0].ID
	rec, resp = do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/reservations/1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rid, resp.Session.Reservations[0].ID)
	assert.Equal(t, models.StatusCanceled, resp.Session.Reservations[0].Status)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/reservations/1/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "reservation is not booked", errorBody(t, rec))

	rec, resp = do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Session.Reservations, 1)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormAPISubmitRejected(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestServer(t, ledger, config.FormConfig{})

	_, created := do(t, h, http.MethodPost, "/api/v1/sessions", "")
	id := created.SessionID

	rec, resp := do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PhaseRejected, resp.Session.Submission.Phase)
	assert.Equal(t, models.MsgSelectDateTime, resp.Session.Submission.Message)
}

func TestFormAPIBadRequests(t *testing.T) {
	h := newTestServer(t, newFakeLedger(), config.FormConfig{})
	_, created := do(t, h, http.MethodPost, "/api/v1/sessions", "")
	id := created.SessionID

	rec, _ := do(t, h, http.MethodPatch, "/api/v1/sessions/"+id, `{"colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/reservations/abc/cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFormAPICatalogUnavailable(t *testing.T) {
	ledger := newFakeLedger()
	ledger.catalogErr = assert.AnError
	h := newTestServer(t, ledger, config.FormConfig{})

	rec, _ := do(t, h, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFormAPIRateLimit(t *testing.T) {
	h := newTestServer(t, newFakeLedger(), config.FormConfig{RateLimitRequests: 2, RateLimitWindowSeconds: 60})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req))
}
