package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: " t ", RunMode: "Polling"},
		Logging:   LoggingConfig{Dir: "logs"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback", ""}},
	}
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "t", cfg.Telegram.Token)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, DefaultLogFile, cfg.Logging.File)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{RunMode: "webhook"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{"edited_message"}},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")
	assert.Contains(t, err.Error(), "webhook.url")
	assert.Contains(t, err.Error(), "edited_message")
}

func TestDecodeMissingFileUsesEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	var cfg Config
	require.NoError(t, Decode("does-not-exist.yaml", &cfg))
	assert.Equal(t, "from-env", cfg.Telegram.Token)
}
