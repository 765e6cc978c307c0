// Package payment bridges orders to the YooKassa payment gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RemoteState is the gateway's view of a payment intent.
type RemoteState string

const (
	StatePending           RemoteState = "pending"
	StateWaitingForCapture RemoteState = "waiting_for_capture"
	StateSucceeded         RemoteState = "succeeded"
	StateCanceled          RemoteState = "canceled"
	StateExpired           RemoteState = "expired"
)

var (
	// ErrNotConfigured means no gateway credentials are set; callers fall back to manual payment.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrCircuitOpen means recent gateway failures tripped the breaker.
	ErrCircuitOpen = errors.New("payment gateway temporarily unavailable")
)

// RemoteError is a non-2xx gateway response.
type RemoteError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("payment %s: gateway status %d", e.Op, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Temporary reports whether retrying later may succeed.
func (e *RemoteError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IntentRequest describes a payment to create.
type IntentRequest struct {
	OrderID     int64
	OrderNumber int64
	// Amount is in whole roubles.
	Amount      int64
	Description string
}

// Intent is a created payment intent.
type Intent struct {
	ID          string
	State       RemoteState
	RedirectURL string
	Amount      decimal.Decimal
}

// Gateway is the contract the order service depends on.
type Gateway interface {
	// Configured reports whether credentials are present.
	Configured() bool
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	CheckStatus(ctx context.Context, intentID string) (RemoteState, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// FormatAmount renders whole roubles the way the gateway expects ("4200.00").
func FormatAmount(rub int64) string {
	return decimal.NewFromInt(rub).StringFixed(2)
}

// ParseRemoteState normalises a gateway status value.
func ParseRemoteState(raw string) RemoteState {
	return RemoteState(strings.ToLower(strings.TrimSpace(raw)))
}
