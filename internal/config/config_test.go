package config

import (
	"os"
	"path/filepath"
	"testing"

	"barberbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "barberbook"
ledger:
  base_url: "${TEST_LEDGER_URL}"
catalog:
  barbers:
    - id: 1
      name: "Barber A"
    - id: 2
      name: "Barber B"
  services:
    - name: "Haircut"
      price: 25
      duration_minutes: 45
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))
	t.Setenv("TEST_LEDGER_URL", "http://ledger.local")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://ledger.local", cfg.Ledger.BaseURL)
	require.Len(t, cfg.Catalog.Barbers, 2)
	assert.True(t, cfg.Catalog.Barbers[0].IsActive, "barbers without is_active are active")
	require.Len(t, cfg.Catalog.Services, 1)
	assert.Equal(t, 45, cfg.Catalog.Services[0].DurationMinutes)
	assert.Equal(t, models.DefaultDurationMinutes, cfg.Form.DefaultDurationMinutes)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Catalog: CatalogConfig{
				Barbers:  []models.Barber{{ID: 1, Name: "A"}},
				Services: []models.Service{{Name: "Haircut", DurationMinutes: 30}},
			},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "placeholder token", mutate: func(c *Config) { c.Telegram.BotToken = "YOUR_BOT_TOKEN_HERE" }, wantErr: true},
		{name: "negative duration", mutate: func(c *Config) { c.Form.DefaultDurationMinutes = -5 }, wantErr: true},
		{
			name: "duplicate barber id",
			mutate: func(c *Config) {
				c.Catalog.Barbers = append(c.Catalog.Barbers, models.Barber{ID: 1, Name: "B"})
			},
			wantErr: true,
		},
		{
			name: "duplicate service name",
			mutate: func(c *Config) {
				c.Catalog.Services = append(c.Catalog.Services, models.Service{Name: "Haircut", DurationMinutes: 15})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{API: APIConfig{Enabled: true}}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8090, cfg.Form.Port)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.True(t, cfg.API.HTTP.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "x-api-extra", cfg.API.Auth.HeaderExtra)
	assert.Equal(t, models.DefaultSessionTTL, cfg.Form.SessionTTLSeconds)
	assert.Equal(t, models.RateLimitRequests, cfg.Form.RateLimitRequests)
	assert.Equal(t, models.RateLimitWindowSeconds, cfg.Form.RateLimitWindowSeconds)
	assert.Equal(t, models.CatalogCacheTTL, cfg.Ledger.CacheTTLSeconds)
	assert.Equal(t, 10, cfg.Ledger.TimeoutSeconds)
	assert.Equal(t, "Reservations", cfg.Google.SheetName)
}

func TestValidateServices(t *testing.T) {
	tests := []struct {
		name     string
		services []models.Service
		wantErr  bool
	}{
		{"Valid", []models.Service{{Name: "Haircut", DurationMinutes: 30}, {Name: "Beard", DurationMinutes: 15}}, false},
		{"BlankName", []models.Service{{Name: " ", DurationMinutes: 30}}, true},
		{"ZeroDuration", []models.Service{{Name: "Haircut"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServices(tt.services)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServices() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
