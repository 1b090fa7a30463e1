package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barberbook/internal/backoffice"
	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/ledger"
	"barberbook/internal/logging"
	"barberbook/internal/metrics"
	"barberbook/internal/repository"
	"barberbook/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const janitorInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	ledgerClient, embedded, err := initLedger(ctx, cfg, redisClient, &logger)
	if err != nil {
		return err
	}
	if embedded != nil {
		defer embedded.Close()
	}

	bus := events.NewEventBus()
	bus.OnError(func(e *events.Event, err error) {
		logger.Error().Err(err).Str("event", e.Type).Msg("event handler failed")
	})
	subscribeFormEvents(bus, &logger)
	// With the ledger in process, the form's events are the only reservation events.
	if embedded != nil {
		backoffice.Start(ctx, cfg, embedded, redisClient, bus, &logger)
	}

	store := initDraftStore(cfg, redisClient, &logger)
	manager := session.NewManager(
		ledgerClient,
		store,
		bus,
		time.Duration(cfg.Form.SessionTTLSeconds)*time.Second,
		cfg.Form.DefaultDurationMinutes,
		logging.Component(&logger, "sessions"),
	)
	manager.StartJanitor(ctx, janitorInterval)

	startMetrics(ctx, cfg, &logger)

	server := session.NewServer(cfg.Form, manager, store, logging.Component(&logger, "form-http"))
	return serve(ctx, server, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "form-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLedger returns the HTTP gateway when a base URL is configured and the
// local SQLite ledger otherwise. The database is returned only in the second case.
func initLedger(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.Ledger, *database.DB, error) {
	if cfg.Ledger.BaseURL != "" {
		client := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.APIExtra, time.Duration(cfg.Ledger.TimeoutSeconds)*time.Second)
		client.UseRateLimit(cfg.Ledger.RPS, cfg.Ledger.Burst)
		if redisClient != nil {
			client.UseRedisCache(redisClient, time.Duration(cfg.Ledger.CacheTTLSeconds)*time.Second)
			// the catalog may have been reseeded while the form was down
			client.InvalidateCatalog(ctx)
		}
		logger.Info().Str("base_url", cfg.Ledger.BaseURL).Msg("using remote ledger")
		return client, nil, nil
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, nil, err
	}
	if len(cfg.Catalog.Barbers) > 0 || len(cfg.Catalog.Services) > 0 {
		if err := db.SeedCatalog(ctx, cfg.Catalog.Barbers, cfg.Catalog.Services); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	logger.Info().Str("db_path", cfg.Database.Path).Msg("using embedded ledger")
	return db, db, nil
}

func initDraftStore(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SessionStore {
	ttl := time.Duration(cfg.Form.SessionTTLSeconds) * time.Second
	memory := repository.NewMemoryDraftStore(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverDraftStore(repository.NewRedisDraftStore(redisClient, ttl), memory, logging.Component(logger, "draft-store"))
}

func subscribeFormEvents(bus *events.EventBus, logger *zerolog.Logger) {
	eventLog := logging.Component(logger, "form-events")
	bus.Subscribe(events.EventSlotTaken, func(e *events.Event) error {
		var p events.SlotTakenPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		eventLog.Info().Int64("barber_id", p.BarberID).Str("stage", p.Stage).Msg("slot taken during submission")
		return nil
	})
	for _, eventType := range []string{events.EventReservationCreated, events.EventReservationCanceled} {
		bus.Subscribe(eventType, func(e *events.Event) error {
			var p events.ReservationEventPayload
			if err := e.Decode(&p); err != nil {
				return err
			}
			eventLog.Info().Str("event", e.Type).Int64("reservation_id", p.ReservationID).Int64("barber_id", p.BarberID).Msg("reservation event")
			return nil
		})
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, server *session.Server, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.Form.Port).Msg("booking form server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("form server stopped")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info().Msg("booking form server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
