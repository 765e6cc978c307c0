package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, ":3000", cfg.HTTP.Addr())
	assert.Equal(t, time.Minute, cfg.Sweeper.ExpiryInterval)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.PaymentWindow)
	assert.Equal(t, 6*time.Hour, cfg.Sweeper.RetentionInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Sweeper.OrderRetention)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.SessionIdle)
	assert.Equal(t, "flexyframe.db", cfg.Database.Path)
	assert.NotEmpty(t, cfg.Payment.WebhookAllow)
	assert.False(t, cfg.Payment.Configured())
	assert.False(t, cfg.Delivery.CarrierConfigured())
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, err := Load("")
	require.Error(t, err)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "from-yaml"
  admin_id: 11
shop:
  site_url: "https://yaml.example/"
  bot_username: "@flexyframe_bot"
http:
  port: 8080
sweeper:
  payment_window: 20m
payment:
  shop_id: "shop"
  secret_key: "secret"
`)
	t.Setenv("ADMIN_CHAT_ID", "42")
	t.Setenv("SITE_URL", "https://env.example")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, "https://env.example", cfg.Shop.SiteURL)
	assert.Equal(t, "https://env.example", cfg.HTTP.CORSOrigin)
	assert.Equal(t, "flexyframe_bot", cfg.Shop.BotUsername)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 20*time.Minute, cfg.Sweeper.PaymentWindow)
	assert.True(t, cfg.Payment.Configured())
	assert.Equal(t, "https://env.example/index.html", cfg.Payment.ReturnURL)
}

func TestSessionIdleMustBeShorterThanRetention(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "t"
sweeper:
  session_idle: 720h
  order_retention: 24h
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestCarrierConfigured(t *testing.T) {
	assert.True(t, DeliveryConfig{ClientNumber: "1001", ClientKey: "k"}.CarrierConfigured())
	assert.False(t, DeliveryConfig{ClientNumber: "1001"}.CarrierConfigured())
}
