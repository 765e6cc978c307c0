// Package config loads the storefront configuration: the reusable core
// sections plus database, shop, payment, HTTP, sweeper and delivery.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/flexyframe/artbot/core/config"
	coredatabase "github.com/flexyframe/artbot/core/database"
	"github.com/flexyframe/artbot/internal/payment"
)

// ShopConfig describes the storefront itself.
type ShopConfig struct {
	SiteURL     string `yaml:"site_url" envconfig:"SITE_URL"`
	BotUsername string `yaml:"bot_username" envconfig:"BOT_USERNAME"`
	// CatalogFile overrides the built-in catalog when set.
	CatalogFile string `yaml:"catalog_file" envconfig:"CATALOG_FILE"`
	ImagesDir   string `yaml:"images_dir" envconfig:"IMAGES_DIR"`
	// ManualInstructions are shown when the customer pays without the gateway.
	ManualInstructions string `yaml:"manual_instructions" envconfig:"MANUAL_PAYMENT_INSTRUCTIONS"`
}

// HTTPConfig configures the JSON API and payment webhook listener.
type HTTPConfig struct {
	Host           string        `yaml:"host" envconfig:"HTTP_HOST"`
	Port           int           `yaml:"port" envconfig:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"HTTP_REQUEST_TIMEOUT"`
	CORSOrigin     string        `yaml:"cors_origin" envconfig:"CORS_ORIGIN"`
}

// Addr is the listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SweeperConfig tunes the maintenance jobs.
type SweeperConfig struct {
	ExpiryInterval    time.Duration `yaml:"expiry_interval" envconfig:"SWEEP_EXPIRY_INTERVAL"`
	PaymentWindow     time.Duration `yaml:"payment_window" envconfig:"PAYMENT_WINDOW"`
	RetentionInterval time.Duration `yaml:"retention_interval" envconfig:"SWEEP_RETENTION_INTERVAL"`
	OrderRetention    time.Duration `yaml:"order_retention" envconfig:"ORDER_RETENTION"`
	SessionIdle       time.Duration `yaml:"session_idle" envconfig:"SESSION_IDLE"`
	BatchSize         int           `yaml:"batch_size" envconfig:"SWEEP_BATCH_SIZE"`
}

// DeliveryConfig holds carrier credentials. Without them the delivery flow
// accepts free-form addresses.
type DeliveryConfig struct {
	ClientNumber string `yaml:"client_number" envconfig:"DPD_CLIENT_NUMBER"`
	ClientKey    string `yaml:"client_key" envconfig:"DPD_CLIENT_KEY"`
}

// CarrierConfigured reports whether carrier credentials are present.
func (d DeliveryConfig) CarrierConfigured() bool {
	return strings.TrimSpace(d.ClientNumber) != "" && strings.TrimSpace(d.ClientKey) != ""
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Shop     ShopConfig          `yaml:"shop"`
	Payment  payment.Config      `yaml:"payment"`
	HTTP     HTTPConfig          `yaml:"http"`
	Sweeper  SweeperConfig       `yaml:"sweeper"`
	Delivery DeliveryConfig      `yaml:"delivery"`
}

const (
	defaultPort              = 3000
	defaultSiteURL           = "http://localhost:3000"
	defaultRequestTimeout    = 15 * time.Second
	defaultExpiryInterval    = time.Minute
	defaultPaymentWindow     = 15 * time.Minute
	defaultRetentionInterval = 6 * time.Hour
	defaultOrderRetention    = 30 * 24 * time.Hour
	defaultSessionIdle       = 24 * time.Hour
	defaultBatchSize         = 100
	defaultInstructions      = "Реквизиты для оплаты пришлёт оператор. Напишите нам, если они не пришли в течение 10 минут."
)

// Load reads path (optional) and the environment, then validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CoreConfig exposes the embedded core sections.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Normalize validates the core sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	c.Database = c.Database.WithDefaults()

	c.Shop.SiteURL = strings.TrimRight(strings.TrimSpace(c.Shop.SiteURL), "/")
	if c.Shop.SiteURL == "" {
		c.Shop.SiteURL = defaultSiteURL
	}
	c.Shop.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.Shop.BotUsername), "@")
	if strings.TrimSpace(c.Shop.ManualInstructions) == "" {
		c.Shop.ManualInstructions = defaultInstructions
	}

	c.Payment = c.Payment.WithDefaults(c.Shop.SiteURL)

	if c.HTTP.Port == 0 {
		c.HTTP.Port = defaultPort
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = defaultRequestTimeout
	}
	if c.HTTP.CORSOrigin == "" {
		c.HTTP.CORSOrigin = c.Shop.SiteURL
	}

	s := &c.Sweeper
	if s.ExpiryInterval <= 0 {
		s.ExpiryInterval = defaultExpiryInterval
	}
	if s.PaymentWindow <= 0 {
		s.PaymentWindow = defaultPaymentWindow
	}
	if s.RetentionInterval <= 0 {
		s.RetentionInterval = defaultRetentionInterval
	}
	if s.OrderRetention <= 0 {
		s.OrderRetention = defaultOrderRetention
	}
	if s.SessionIdle <= 0 {
		s.SessionIdle = defaultSessionIdle
	}
	if s.BatchSize <= 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.SessionIdle >= s.OrderRetention {
		return fmt.Errorf("sweeper.session_idle (%s) must be shorter than sweeper.order_retention (%s)", s.SessionIdle, s.OrderRetention)
	}
	return nil
}
