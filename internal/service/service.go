// Package service implements the order lifecycle: creation, payment,
// cancellation, gateway reconciliation and expiry.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/notify"
	"github.com/flexyframe/artbot/internal/payment"
	"github.com/flexyframe/artbot/internal/repository"
)

var (
	// ErrUnknownPainting means the catalog has no item with the requested id.
	ErrUnknownPainting = errors.New("unknown painting")
	// ErrNotOwner means the order belongs to another user.
	ErrNotOwner = errors.New("order belongs to another user")
	// ErrNotPending means the order is no longer awaiting payment.
	ErrNotPending = errors.New("order is not awaiting payment")
)

// Store is the persistence the service needs.
type Store interface {
	CreateOrder(ctx context.Context, in repository.NewOrder) (domain.Order, error)
	FindByID(ctx context.Context, id int64) (domain.Order, error)
	FindByToken(ctx context.Context, token string) (domain.Order, error)
	FindByNumber(ctx context.Context, number int64) (domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error)
	FindByUser(ctx context.Context, userID int64, limit int) ([]domain.Order, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)
	ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error)
	Transition(ctx context.Context, id int64, to domain.Status) (bool, error)
	ConfirmPayment(ctx context.Context, id int64) (domain.Ticket, bool, error)
	Cancel(ctx context.Context, id, userID int64) error
	SetPaymentID(ctx context.Context, id int64, paymentID string) error
	GetAddress(ctx context.Context, userID int64) (domain.DeliveryAddress, error)
}

// Notifier receives order events; it must not block.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Catalog resolves paintings.
type Catalog interface {
	ByID(id int64) (catalog.Painting, bool)
}

// Options tunes Orders.
type Options struct {
	// PaymentWindow is how long a new order waits for payment.
	PaymentWindow time.Duration
	// SweepBatch bounds the orders handled by one expiry pass.
	SweepBatch int
	Now        func() time.Time
}

// Orders coordinates storage, the payment gateway and notifications.
type Orders struct {
	store    Store
	gateway  payment.Gateway
	notifier Notifier
	catalog  Catalog

	window time.Duration
	batch  int
	now    func() time.Time

	captures *seenSet
}

// New builds the order service.
func New(store Store, gateway payment.Gateway, notifier Notifier, cat Catalog, opts Options) *Orders {
	if opts.PaymentWindow <= 0 {
		opts.PaymentWindow = 15 * time.Minute
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orders{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		catalog:  cat,
		window:   opts.PaymentWindow,
		batch:    opts.SweepBatch,
		now:      opts.Now,
		captures: newSeenSet(1024),
	}
}

// GatewayConfigured reports whether online payment is available.
func (s *Orders) GatewayConfigured() bool {
	return s.gateway != nil && s.gateway.Configured()
}

// Get returns an order by storage id.
func (s *Orders) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.store.FindByID(ctx, id)
}

// GetByToken returns an order by its deep-link token.
func (s *Orders) GetByToken(ctx context.Context, token string) (domain.Order, error) {
	return s.store.FindByToken(ctx, token)
}

// UserOrders returns a user's latest orders.
func (s *Orders) UserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	return s.store.FindByUser(ctx, userID, limit)
}

// Recent returns the latest orders of all users.
func (s *Orders) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.store.ListRecent(ctx, limit)
}

func (s *Orders) notify(ctx context.Context, kind notify.Kind, o domain.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notify.Event{Kind: kind, Order: o})
}

// seenSet remembers a bounded number of keys; it is reset when full.
type seenSet struct {
	mu    sync.Mutex
	limit int
	keys  map[string]struct{}
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{limit: limit, keys: make(map[string]struct{})}
}

// Add reports whether key was new.
func (s *seenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	if len(s.keys) >= s.limit {
		s.keys = make(map[string]struct{})
	}
	s.keys[key] = struct{}{}
	return true
}
