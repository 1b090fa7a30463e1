// Package backoffice wires the side effects that follow reservation events:
// the Google Sheets mirror, Telegram notices and database backups.
package backoffice

import (
	"context"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/events"
	"barberbook/internal/google"
	"barberbook/internal/logging"
	"barberbook/internal/notify"
	"barberbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Services holds whatever Start managed to bring up. Nil fields are disabled.
type Services struct {
	Sheets   *worker.SheetsWorker
	Notifier *notify.TelegramNotifier
	Backup   *database.BackupService
}

// Start subscribes the configured side effects to bus and runs them until ctx is done.
// A side effect that fails to initialize is logged and skipped.
func Start(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, bus *events.EventBus, logger *zerolog.Logger) *Services {
	initLog := logging.Component(logger, "backoffice")
	s := &Services{}

	if sheetsService := initGoogleSheets(ctx, cfg, initLog); sheetsService != nil {
		s.Sheets = worker.NewSheetsWorker(db, sheetsService, redisClient, RetryPolicy(cfg.SheetsWorker), logger)
		s.Sheets.Subscribe(bus)
		go s.Sheets.Start(ctx)
	}

	if s.Notifier = initNotifier(cfg, db, initLog); s.Notifier != nil {
		s.Notifier.Subscribe(bus)
		go s.Notifier.Start(ctx)
	}

	if cfg.Backup.Enabled {
		s.Backup = database.NewBackupService(db, cfg.Backup, logger)
		go s.Backup.Start(ctx)
	}
	return s
}

// RetryPolicy maps the sheets worker settings. Zero values fall back to the worker defaults.
func RetryPolicy(cfg config.SheetsWorkerConfig) worker.RetryPolicy {
	return worker.RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  time.Duration(cfg.InitialDelaySeconds) * time.Second,
		MaxDelay:      time.Duration(cfg.MaxDelaySeconds) * time.Second,
		BackoffFactor: cfg.BackoffFactor,
	}
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ReservationsSpreadsheetID == "" {
		logger.Info().Msg("google sheets not configured, mirror disabled")
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.ReservationsSpreadsheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header write failed")
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets row cache warmup failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initNotifier(cfg *config.Config, db *database.DB, logger *zerolog.Logger) *notify.TelegramNotifier {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ManagerChatIDs) == 0 {
		return nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications disabled")
		return nil
	}
	botAPI.Debug = cfg.Telegram.Debug

	logger.Info().Str("bot", botAPI.Self.UserName).Int("chats", len(cfg.Telegram.ManagerChatIDs)).Msg("telegram notifications enabled")
	return notify.NewTelegramNotifier(botAPI, cfg.Telegram.ManagerChatIDs, db, logger)
}
