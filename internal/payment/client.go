package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/core/telegram/netutil"
)

const maxDescriptionRunes = 128

// Client talks to the YooKassa REST API.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	newKey  func() string
}

// NewClient builds a gateway client. An unconfigured client answers every
// call with ErrNotConfigured.
func NewClient(cfg Config, siteURL string, httpClient *http.Client) *Client {
	cfg = cfg.WithDefaults(siteURL)
	if httpClient == nil {
		httpClient = netutil.NewHTTPClient(netutil.ClientOptions{Timeout: cfg.Timeout})
	}
	maxFailures := cfg.Breaker.MaxFailures
	settings := gobreaker.Settings{
		Name:        "yookassa",
		MaxRequests: 1,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var remote *RemoteError
			if errors.As(err, &remote) {
				return !remote.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.PAY.Warn("breaker state changed",
				slog.String("event", "breaker.state"),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		newKey:  uuid.NewString,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Configured()
}

type amountJSON struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createRequest struct {
	Amount       amountJSON `json:"amount"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url,omitempty"`
	} `json:"confirmation"`
	Capture     bool              `json:"capture"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type paymentJSON struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Amount       amountJSON `json:"amount"`
	Confirmation struct {
		URL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Metadata map[string]string `json:"metadata"`
}

type errorJSON struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreateIntent creates a redirect-confirmed, auto-captured payment in RUB.
func (c *Client) CreateIntent(ctx context.Context, in IntentRequest) (Intent, error) {
	if !c.Configured() {
		return Intent{}, ErrNotConfigured
	}
	if in.Amount <= 0 {
		return Intent{}, fmt.Errorf("payment create: non-positive amount %d", in.Amount)
	}

	var body createRequest
	body.Amount = amountJSON{Value: FormatAmount(in.Amount), Currency: "RUB"}
	body.Confirmation.Type = "redirect"
	body.Confirmation.ReturnURL = c.cfg.ReturnURL
	body.Capture = true
	body.Description = truncateRunes(in.Description, maxDescriptionRunes)
	if body.Description == "" {
		body.Description = fmt.Sprintf("Заказ #%d", in.OrderNumber)
	}
	body.Metadata = map[string]string{
		"order_id":     strconv.FormatInt(in.OrderID, 10),
		"order_number": strconv.FormatInt(in.OrderNumber, 10),
	}

	raw, err := c.do(ctx, "create", http.MethodPost, "/payments", body)
	if err != nil {
		return Intent{}, err
	}
	var p paymentJSON
	if err := json.Unmarshal(raw, &p); err != nil {
		return Intent{}, fmt.Errorf("payment create: decode response: %w", err)
	}
	if p.ID == "" {
		return Intent{}, fmt.Errorf("payment create: empty payment id")
	}
	amount, _ := decimal.NewFromString(p.Amount.Value)
	return Intent{
		ID:          p.ID,
		State:       ParseRemoteState(p.Status),
		RedirectURL: p.Confirmation.URL,
		Amount:      amount,
	}, nil
}

// CheckStatus fetches the authoritative state of an intent.
func (c *Client) CheckStatus(ctx context.Context, intentID string) (RemoteState, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	raw, err := c.do(ctx, "status", http.MethodGet, "/payments/"+intentID, nil)
	if err != nil {
		return "", err
	}
	var p paymentJSON
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("payment status: decode response: %w", err)
	}
	return ParseRemoteState(p.Status), nil
}

// CancelIntent cancels an intent that has not been captured.
func (c *Client) CancelIntent(ctx context.Context, intentID string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	_, err := c.do(ctx, "cancel", http.MethodPost, "/payments/"+intentID+"/cancel", struct{}{})
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	start := time.Now()
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, op, method, path, payload)
	})
	took := logger.RoundMS(time.Since(start))
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("payment %s: %w", op, ErrCircuitOpen)
	}
	if err != nil {
		logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "gateway."+op,
			slog.String("status", "failed"),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	logger.LogEvent(ctx, logger.PAY, slog.LevelDebug, "gateway."+op,
		slog.String("status", "ok"),
		slog.Duration("duration", took),
	)
	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("payment %s: encode request: %w", op, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment %s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotence-Key", c.newKey())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payment %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := &RemoteError{Op: op, StatusCode: resp.StatusCode}
		var ej errorJSON
		if json.Unmarshal(raw, &ej) == nil {
			remote.Code = ej.Code
			remote.Message = ej.Description
		}
		return nil, remote
	}
	return raw, nil
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
