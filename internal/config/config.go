package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"barberbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Form         FormConfig         `yaml:"form"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Google       GoogleConfig       `yaml:"google"`
	SheetsWorker SheetsWorkerConfig `yaml:"sheets_worker"`
	Catalog      CatalogConfig      `yaml:"catalog"`
}

// APIConfig configures the ledger HTTP server.
type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LedgerConfig configures the gateway client used by the booking form.
// An empty BaseURL means the form embeds the SQLite ledger directly.
type LedgerConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	APIExtra        string  `yaml:"api_extra"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	RPS             float64 `yaml:"rps"`
	Burst           int     `yaml:"burst"`
}

type FormConfig struct {
	Port                   int `yaml:"port"`
	SessionTTLSeconds      int `yaml:"session_ttl_seconds"`
	DefaultDurationMinutes int `yaml:"default_duration_minutes"`
	RateLimitRequests      int `yaml:"rate_limit_requests"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	ManagerChatIDs []int64 `yaml:"manager_chat_ids"`
	Debug          bool    `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	ReservationsSpreadsheetID string `yaml:"reservations_spreadsheet_id"`
	SheetName                 string `yaml:"sheet_name"`
}

type SheetsWorkerConfig struct {
	MaxRetries          int     `yaml:"max_retries"`
	InitialDelaySeconds int     `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int     `yaml:"max_delay_seconds"`
	BackoffFactor       float64 `yaml:"backoff_factor"`
}

type CatalogConfig struct {
	Barbers  []models.Barber  `yaml:"barbers"`
	Services []models.Service `yaml:"services"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; only a malformed file is an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Form.DefaultDurationMinutes <= 0 {
		return errors.New("form.default_duration_minutes must be positive")
	}
	if c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token placeholder must be replaced or removed")
	}

	if err := ValidateBarbers(c.Catalog.Barbers); err != nil {
		return err
	}
	return ValidateServices(c.Catalog.Services)
}

func ValidateBarbers(barbers []models.Barber) error {
	ids := make(map[int64]bool)
	for _, b := range barbers {
		if b.ID == 0 {
			return fmt.Errorf("barber '%s' has invalid ID 0", b.Name)
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate barber ID found: %d", b.ID)
		}
		ids[b.ID] = true
	}
	return nil
}

// ValidateServices enforces unique, non-blank names since the name is the lookup key.
func ValidateServices(services []models.Service) error {
	names := make(map[string]bool)
	for _, s := range services {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return errors.New("service with empty name")
		}
		if names[name] {
			return fmt.Errorf("duplicate service name found: %s", name)
		}
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service '%s' has non-positive duration", name)
		}
		names[name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Form.Port == 0 {
		c.Form.Port = 8090
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if c.API.Enabled && !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/ledger.db"
	}

	if c.Ledger.TimeoutSeconds == 0 {
		c.Ledger.TimeoutSeconds = 10
	}
	if c.Ledger.CacheTTLSeconds == 0 {
		c.Ledger.CacheTTLSeconds = models.CatalogCacheTTL
	}

	if c.Form.SessionTTLSeconds == 0 {
		c.Form.SessionTTLSeconds = models.DefaultSessionTTL
	}
	if c.Form.DefaultDurationMinutes == 0 {
		c.Form.DefaultDurationMinutes = models.DefaultDurationMinutes
	}
	if c.Form.RateLimitRequests == 0 {
		c.Form.RateLimitRequests = models.RateLimitRequests
	}
	if c.Form.RateLimitWindowSeconds == 0 {
		c.Form.RateLimitWindowSeconds = models.RateLimitWindowSeconds
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Reservations"
	}
}
