package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	// AdminID is the operator chat. It receives order notices and may run admin-only commands.
	AdminID int64  `yaml:"admin_id" envconfig:"ADMIN_CHAT_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Offline builds the bot without calling getMe; CLI tasks use it.
	Offline bool `yaml:"offline" envconfig:"TELEGRAM_OFFLINE"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder string `yaml:"keys_order"`
	// DebugSample keeps "n/d" of the per-update debug lines, or one in "d".
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	// Trace disables debug sampling.
	Trace bool   `yaml:"trace" envconfig:"LOG_TRACE"`
	Dir   string `yaml:"dir" envconfig:"LOG_DIR"`
	// File is created inside Dir; defaults to artbot.log.
	File string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// DefaultLogFile is the log file name used when only logging.dir is set.
const DefaultLogFile = "artbot.log"

// Values of telegram.run_mode. "polling" is accepted as an alias of longpoll.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig throttles each user to one update per IntervalMS. Update
// kinds named in ExcludeUpdates (callback, message, inline_query) pass.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Decode reads a YAML file into dst and overlays environment variables.
// A missing file is fine: env-only deployments have none.
func Decode(path string, dst any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize trims and defaults the core settings and reports every invalid
// one at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Logging.Dir != "" && cfg.Logging.File == "" {
		cfg.Logging.File = DefaultLogFile
	}
	return errors.Join(
		cfg.normalizeTelegram(),
		cfg.normalizeRateLimit(),
	)
}

func (cfg *Config) normalizeTelegram() error {
	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if mode == "" || mode == "polling" {
		mode = RunModeLongpoll
	}
	cfg.Telegram.RunMode = mode

	var errs []error
	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	switch mode {
	case RunModeWebhook:
		wh := cfg.Webhook
		if strings.TrimSpace(wh.URL) == "" || strings.TrimSpace(wh.Listen) == "" || wh.Port <= 0 {
			errs = append(errs, errors.New("webhook.url, webhook.listen and webhook.port are required in webhook mode"))
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("telegram.run_mode %q: want %s or %s", mode, RunModeWebhook, RunModeLongpoll))
	}
	return errors.Join(errs...)
}

func (cfg *Config) normalizeRateLimit() error {
	kinds := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch kind {
		case "":
			continue
		case UpdateCallback, UpdateMessage, UpdateInlineQuery:
			kinds = append(kinds, kind)
		default:
			return fmt.Errorf("rate_limit.exclude_updates: unknown update kind %q", v)
		}
	}
	cfg.RateLimit.ExcludeUpdates = kinds
	return nil
}
