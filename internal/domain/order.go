package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusNew        Status = "new"
	StatusPaid       Status = "paid"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrCannotCancel      = errors.New("order cannot be cancelled")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNumberAllocation  = errors.New("order number allocation failed")
)

var statusLabels = map[Status]string{
	StatusNew:        "🆕 Ожидает оплаты",
	StatusPaid:       "✅ Оплачен",
	StatusInProgress: "🎨 В работе",
	StatusCompleted:  "🏁 Выполнен",
	StatusCancelled:  "❌ Отменён",
	StatusExpired:    "⏰ Истёк",
}

// transitionSources lists, per target status, the statuses an order may move from.
// A payment confirmed by the gateway wins over a local timeout or cancellation.
var transitionSources = map[Status][]Status{
	StatusPaid:       {StatusNew, StatusExpired, StatusCancelled},
	StatusCancelled:  {StatusNew},
	StatusExpired:    {StatusNew},
	StatusInProgress: {StatusPaid},
	StatusCompleted:  {StatusPaid, StatusInProgress},
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	st := Status(raw)
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return st, nil
}

// Label returns the human-readable status with its emoji.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Sources returns the statuses from which an order may reach s.
func (s Status) Sources() []Status {
	return append([]Status(nil), transitionSources[s]...)
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, src := range transitionSources[to] {
		if src == from {
			return true
		}
	}
	return false
}

// Item is the catalog snapshot captured by an order at creation time.
type Item struct {
	ID    int64
	Title string
	Price int64
}

// Order is one purchase attempt by one user for one catalog item.
type Order struct {
	ID             int64
	Number         int64
	UserID         int64
	UserName       string
	PaintingID     int64
	PaintingTitle  string
	Price          int64
	Status         Status
	PaymentID      string
	Token          string
	UserMessageID  int
	AdminMessageID int
	CreatedAt      time.Time
}

// DisplayNumber is the number shown to humans. Rows created before the
// allocator existed have no number and fall back to the storage id.
func (o Order) DisplayNumber() int64 {
	if o.Number > 0 {
		return o.Number
	}
	return o.ID
}

// HasMessages reports whether any chat message still references the order.
func (o Order) HasMessages() bool {
	return o.UserMessageID != 0 || o.AdminMessageID != 0
}

// PastDeadline reports whether an unpaid order has outlived the payment window.
func (o Order) PastDeadline(now time.Time, window time.Duration) bool {
	return o.Status == StatusNew && now.Sub(o.CreatedAt) > window
}
