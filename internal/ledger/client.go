package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/metrics"
	"barberbook/internal/models"
	"barberbook/internal/timezone"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	cacheKeyBarbers  = "ledger:barbers"
	cacheKeyServices = "ledger:services"
)

var _ domain.Ledger = (*Client)(nil)

// Client is an HTTP client for the ledger API.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with baseURL, API key and extra header.
func NewClient(baseURL, apiKey, apiExtra string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for catalog reads.
// Availability and reservations are always fetched fresh.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit throttles outbound calls; rps <= 0 disables throttling.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 5
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

func (c *Client) ListBarbers(ctx context.Context) (barbers []models.Barber, err error) {
	defer observe("list_barbers", time.Now(), &err)

	var wrap struct {
		Barbers []models.Barber `json:"barbers"`
	}
	if c.readCache(ctx, cacheKeyBarbers, &wrap) {
		return wrap.Barbers, nil
	}
	if err := c.doGet(ctx, "/api/v1/barbers", &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKeyBarbers, wrap)
	return wrap.Barbers, nil
}

func (c *Client) ListServices(ctx context.Context) (services []models.Service, err error) {
	defer observe("list_services", time.Now(), &err)

	var wrap struct {
		Services []models.Service `json:"services"`
	}
	if c.readCache(ctx, cacheKeyServices, &wrap) {
		return wrap.Services, nil
	}
	if err := c.doGet(ctx, "/api/v1/services", &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKeyServices, wrap)
	return wrap.Services, nil
}

func (c *Client) ListReservations(ctx context.Context) (reservations []models.Reservation, err error) {
	defer observe("list_reservations", time.Now(), &err)

	var wrap struct {
		Reservations []models.Reservation `json:"reservations"`
	}
	if err := c.doGet(ctx, "/api/v1/reservations", &wrap); err != nil {
		return nil, err
	}
	return wrap.Reservations, nil
}

// CheckAvailable asks the ledger whether the barber is free for the query interval.
func (c *Client) CheckAvailable(ctx context.Context, q models.AvailabilityQuery) (available bool, err error) {
	defer observe("check_available", time.Now(), &err)

	params := url.Values{}
	params.Set("barber_id", strconv.FormatInt(q.BarberID, 10))
	params.Set("start", timezone.Format(q.Start))
	params.Set("duration", strconv.Itoa(q.DurationMinutes))

	var resp struct {
		Available bool `json:"available"`
	}
	if err := c.doGet(ctx, "/api/v1/availability?"+params.Encode(), &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}

func (c *Client) CreateReservation(ctx context.Context, req models.ReservationRequest) (created *models.Reservation, err error) {
	defer observe("create_reservation", time.Now(), &err)

	var out models.Reservation
	if err := c.doPost(ctx, "/api/v1/reservations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelReservation(ctx context.Context, id int64) (err error) {
	defer observe("cancel_reservation", time.Now(), &err)

	return c.doPost(ctx, fmt.Sprintf("/api/v1/reservations/%d/cancel", id), nil, nil)
}

// InvalidateCatalog drops cached catalog entries.
func (c *Client) InvalidateCatalog(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKeyBarbers, cacheKeyServices).Err()
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("ledger rate limit: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}

// decodeError turns a business rejection into a RejectedError carrying the server's reason.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	kind := kindForStatus(resp.StatusCode)
	switch {
	case body.Error == "":
		return fmt.Errorf("http %d: %w", resp.StatusCode, kind)
	case errors.Is(kind, ErrUpstream):
		// not a customer-facing reason
		return fmt.Errorf("http %d: %s: %w", resp.StatusCode, body.Error, kind)
	default:
		return domain.Reject(kind, body.Error)
	}
}

// ErrUpstream marks ledger failures that are not a business rejection.
var ErrUpstream = errors.New("ledger unavailable")

func kindForStatus(code int) error {
	switch code {
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest:
		return domain.ErrInvalidRequest
	case http.StatusUnprocessableEntity:
		return domain.ErrInvalidTransition
	default:
		return ErrUpstream
	}
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveLedger(op, start, *err)
}
