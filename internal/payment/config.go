package payment

import (
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.yookassa.ru/v3"
	defaultTimeout = 10 * time.Second
)

// DefaultWebhookCIDRs are the networks YooKassa sends notifications from.
var DefaultWebhookCIDRs = []string{
	"185.71.76.0/27",
	"185.71.77.0/27",
	"77.75.153.0/25",
	"77.75.156.11/32",
	"77.75.156.35/32",
	"77.75.154.128/25",
	"2a02:5180::/32",
}

// Config holds gateway credentials and client tuning.
type Config struct {
	ShopID    string `yaml:"shop_id" envconfig:"YOOKASSA_SHOP_ID"`
	SecretKey string `yaml:"secret_key" envconfig:"YOOKASSA_SECRET_KEY"`
	APIBase   string `yaml:"api_base" envconfig:"YOOKASSA_API_BASE"`
	// ReturnURL is where the payer lands after paying. Defaults to <site>/index.html.
	ReturnURL      string        `yaml:"return_url" envconfig:"YOOKASSA_RETURN_URL"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"YOOKASSA_TIMEOUT"`
	WebhookAllow   []string      `yaml:"webhook_allow" envconfig:"YOOKASSA_WEBHOOK_ALLOW"`
	TrustForwarded bool          `yaml:"trust_forwarded" envconfig:"YOOKASSA_TRUST_FORWARDED"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker around gateway calls.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenFor     time.Duration `yaml:"open_for"`
	Interval    time.Duration `yaml:"interval"`
}

// Configured reports whether credentials look real.
func (c Config) Configured() bool {
	shop := strings.TrimSpace(c.ShopID)
	return shop != "" && shop != "your_shop_id" && strings.TrimSpace(c.SecretKey) != ""
}

// WithDefaults fills zero fields; siteURL seeds ReturnURL.
func (c Config) WithDefaults(siteURL string) Config {
	if c.APIBase == "" {
		c.APIBase = defaultAPIBase
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	if c.ReturnURL == "" && siteURL != "" {
		c.ReturnURL = strings.TrimRight(siteURL, "/") + "/index.html"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if len(c.WebhookAllow) == 0 {
		c.WebhookAllow = append([]string(nil), DefaultWebhookCIDRs...)
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.Breaker.OpenFor <= 0 {
		c.Breaker.OpenFor = 30 * time.Second
	}
	if c.Breaker.Interval <= 0 {
		c.Breaker.Interval = time.Minute
	}
	return c
}
