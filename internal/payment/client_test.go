package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(base string) Config {
	return Config{
		ShopID:    "12345",
		SecretKey: "test_secret",
		APIBase:   base,
		Breaker:   BreakerConfig{MaxFailures: 2, OpenFor: time.Minute},
	}
}

func TestCreateIntent(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "12345", user)
		assert.Equal(t, "test_secret", pass)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))

		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"pay-1","status":"pending","amount":{"value":"4200.00","currency":"RUB"},
			"confirmation":{"type":"redirect","confirmation_url":"https://yoomoney.ru/checkout/pay-1"}}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), "https://shop.example/", srv.Client())
	intent, err := c.CreateIntent(context.Background(), IntentRequest{OrderID: 7, OrderNumber: 3, Amount: 4200, Description: "Заказ #3 - Закат"})
	require.NoError(t, err)

	assert.Equal(t, "pay-1", intent.ID)
	assert.Equal(t, StatePending, intent.State)
	assert.Equal(t, "https://yoomoney.ru/checkout/pay-1", intent.RedirectURL)
	assert.Equal(t, "4200", intent.Amount.String())

	amount := captured["amount"].(map[string]any)
	assert.Equal(t, "4200.00", amount["value"])
	assert.Equal(t, "RUB", amount["currency"])
	assert.Equal(t, true, captured["capture"])
	confirmation := captured["confirmation"].(map[string]any)
	assert.Equal(t, "https://shop.example/index.html", confirmation["return_url"])
	metadata := captured["metadata"].(map[string]any)
	assert.Equal(t, "7", metadata["order_id"])
}

func TestCheckStatusAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay-9":
			_, _ = io.WriteString(w, `{"id":"pay-9","status":"succeeded"}`)
		case "/payments/pay-9/cancel":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = io.WriteString(w, `{"id":"pay-9","status":"canceled"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), "", srv.Client())
	st, err := c.CheckStatus(context.Background(), "pay-9")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, st)
	require.NoError(t, c.CancelIntent(context.Background(), "pay-9"))
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Config{ShopID: "your_shop_id", SecretKey: "x"}, "", nil)
	assert.False(t, c.Configured())

	_, err := c.CreateIntent(context.Background(), IntentRequest{OrderID: 1, Amount: 10})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CheckStatus(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRemoteErrorsAndBreaker(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
		_, _ = io.WriteString(w, `{"type":"error","code":"invalid_request","description":"bad amount"}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), "", srv.Client())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.CheckStatus(ctx, "p")
		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
		assert.Equal(t, "invalid_request", remote.Code)
	}

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 2; i++ {
		_, err := c.CheckStatus(ctx, "p")
		require.Error(t, err)
	}
	before := calls.Load()
	_, err := c.CheckStatus(ctx, "p")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, calls.Load(), "open breaker must not reach the gateway")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "4200.00", FormatAmount(4200))
	assert.Equal(t, "1.00", FormatAmount(1))
}
