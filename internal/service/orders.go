package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/notify"
	"github.com/flexyframe/artbot/internal/payment"
	"github.com/flexyframe/artbot/internal/repository"
)

// PlaceRequest asks for a new order.
type PlaceRequest struct {
	UserID     int64
	UserName   string
	PaintingID int64
	// Token is optional; a deep link may carry one.
	Token string
}

// Checkout is the result of placing an order.
type Checkout struct {
	Order       domain.Order
	RedirectURL string
	// Manual is true when the customer must pay by the manual instructions.
	Manual bool
	// Resumed is true when the token already belonged to the customer's own
	// order and that order was returned instead of a new one.
	Resumed bool
}

// Place creates an order for a catalog painting and starts payment. The
// catalog price is authoritative. A gateway failure never prevents the order
// from being recorded; the checkout falls back to manual payment.
func (s *Orders) Place(ctx context.Context, req PlaceRequest) (Checkout, error) {
	painting, ok := s.catalog.ByID(req.PaintingID)
	if !ok {
		return Checkout{}, fmt.Errorf("%w: %d", ErrUnknownPainting, req.PaintingID)
	}
	o, err := s.store.CreateOrder(ctx, repository.NewOrder{
		UserID:   req.UserID,
		UserName: req.UserName,
		Item:     painting.Item(),
		Token:    req.Token,
	})
	if errors.Is(err, repository.ErrDuplicateToken) {
		return s.resumeByToken(ctx, req)
	}
	if err != nil {
		logger.LogEvent(ctx, logger.ORD, slog.LevelError, "order.create",
			slog.String("status", "failed"),
			slog.Int64("user_id", req.UserID),
			slog.String("err", err.Error()),
		)
		return Checkout{}, fmt.Errorf("create order: %w", err)
	}
	ctx = logger.WithOrderID(ctx, o.ID)
	logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.create",
		slog.String("status", "ok"),
		slog.Int64("order_number", o.Number),
		slog.Int64("user_id", o.UserID),
		slog.Int64("price", o.Price),
	)

	co := s.startPayment(ctx, o)
	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Event{Kind: notify.OrderCreated, Order: co.Order, RedirectURL: co.RedirectURL})
	}
	return co, nil
}

// resumeByToken handles a token that was taken between the caller's lookup and
// the insert. The owner gets the existing order; anyone else gets a fresh
// order with a generated token.
func (s *Orders) resumeByToken(ctx context.Context, req PlaceRequest) (Checkout, error) {
	o, err := s.store.FindByToken(ctx, req.Token)
	if err != nil {
		return Checkout{}, fmt.Errorf("resume by token: %w", err)
	}
	if o.UserID != req.UserID {
		req.Token = ""
		return s.Place(ctx, req)
	}
	logger.LogEvent(logger.WithOrderID(ctx, o.ID), logger.ORD, slog.LevelInfo, "order.create",
		slog.String("status", "noop"),
		slog.String("cause", "token_exists"),
	)
	return Checkout{Order: o, Manual: o.PaymentID == "", Resumed: true}, nil
}

func (s *Orders) startPayment(ctx context.Context, o domain.Order) Checkout {
	co := Checkout{Order: o, Manual: true}
	if !s.GatewayConfigured() {
		return co
	}
	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		OrderID:     o.ID,
		OrderNumber: o.DisplayNumber(),
		Amount:      o.Price,
		Description: fmt.Sprintf("Заказ #%d - %s", o.DisplayNumber(), o.PaintingTitle),
	})
	if err != nil {
		logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "payment.create",
			slog.String("status", "failed"),
			slog.String("cause", "manual_fallback"),
			slog.String("err", err.Error()),
		)
		return co
	}
	ctx = logger.WithPaymentID(ctx, intent.ID)
	if err := s.store.SetPaymentID(ctx, o.ID, intent.ID); err != nil {
		// Without the stored intent id the webhook still resolves the order via metadata.
		logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "payment.link",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
	} else {
		co.Order.PaymentID = intent.ID
	}
	logger.LogEvent(ctx, logger.PAY, slog.LevelInfo, "payment.create",
		slog.String("status", "ok"),
	)
	co.RedirectURL = intent.RedirectURL
	co.Manual = intent.RedirectURL == ""
	return co
}

// Cancel cancels a user's unpaid order and best-effort cancels its intent.
func (s *Orders) Cancel(ctx context.Context, id, userID int64) (domain.Order, error) {
	ctx = logger.WithOrderID(ctx, id)
	if err := s.store.Cancel(ctx, id, userID); err != nil {
		logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.cancel",
			slog.String("status", "rejected"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return domain.Order{}, err
	}
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("reload cancelled order: %w", err)
	}
	logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.cancel",
		slog.String("status", "ok"),
		slog.String("from_status", string(domain.StatusNew)),
		slog.String("to_status", string(o.Status)),
	)
	s.cancelIntent(ctx, o)
	s.notify(ctx, notify.CancelledByUser, o)
	return o, nil
}

func (s *Orders) cancelIntent(ctx context.Context, o domain.Order) {
	if o.PaymentID == "" || !s.GatewayConfigured() {
		return
	}
	if err := s.gateway.CancelIntent(ctx, o.PaymentID); err != nil {
		logger.LogEvent(logger.WithPaymentID(ctx, o.PaymentID), logger.PAY, slog.LevelWarn, "payment.cancel",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
	}
}

// ClaimPaid records the customer's "I paid" and asks the operator to confirm.
func (s *Orders) ClaimPaid(ctx context.Context, id, userID int64) (domain.Order, error) {
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, ErrNotOwner
	}
	if o.Status != domain.StatusNew {
		return o, ErrNotPending
	}
	s.notify(logger.WithOrderID(ctx, id), notify.PaymentClaimed, o)
	return o, nil
}

// ConfirmPaid moves the order to paid, opens one support ticket and notifies
// both sides. A repeated call is a no-op and reports changed=false.
func (s *Orders) ConfirmPaid(ctx context.Context, id int64) (bool, error) {
	ctx = logger.WithOrderID(ctx, id)
	ticket, changed, err := s.store.ConfirmPayment(ctx, id)
	if err != nil {
		logger.LogEvent(ctx, logger.ORD, slog.LevelError, "order.paid",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
		return false, err
	}
	if !changed {
		if _, err := s.store.FindByID(ctx, id); err != nil {
			return false, err
		}
		logger.LogEvent(ctx, logger.ORD, slog.LevelDebug, "order.paid", slog.String("status", "noop"))
		return false, nil
	}

	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return true, fmt.Errorf("reload paid order: %w", err)
	}
	logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.paid",
		slog.String("status", "ok"),
		slog.String("to_status", string(o.Status)),
		slog.Int64("ticket_id", ticket.ID),
	)
	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Event{
			Kind:    notify.Paid,
			Order:   o,
			Ticket:  ticket,
			Address: s.addressSummary(ctx, o.UserID),
		})
	}
	return true, nil
}

func (s *Orders) addressSummary(ctx context.Context, userID int64) string {
	addr, err := s.store.GetAddress(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrAddressNotFound) {
			logger.LogEvent(ctx, logger.ORD, slog.LevelWarn, "address.load",
				slog.String("status", "failed"),
				slog.String("err", err.Error()),
			)
		}
		return ""
	}
	return addr.Summary()
}

// Advance moves an order, addressed by its display number, along
// paid -> in_progress -> completed.
func (s *Orders) Advance(ctx context.Context, number int64, to domain.Status) (domain.Order, bool, error) {
	if to != domain.StatusInProgress && to != domain.StatusCompleted {
		return domain.Order{}, false, fmt.Errorf("%w: advance to %s", domain.ErrInvalidTransition, to)
	}
	o, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return domain.Order{}, false, err
	}
	ctx = logger.WithOrderID(ctx, o.ID)
	from := o.Status
	changed, err := s.store.Transition(ctx, o.ID, to)
	if err != nil {
		return o, false, err
	}
	if !changed {
		return o, false, nil
	}
	o.Status = to
	logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.advance",
		slog.String("status", "ok"),
		slog.String("from_status", string(from)),
		slog.String("to_status", string(to)),
	)
	s.notify(ctx, notify.StatusChanged, o)
	return o, true, nil
}

// ChangeStatus applies an operator-requested status by display number. Each
// target runs through the same path as its automatic counterpart: paid opens a
// ticket and notifies both sides, cancelled and expired notify and release the
// order messages. Moves the lifecycle forbids fail with ErrInvalidTransition.
func (s *Orders) ChangeStatus(ctx context.Context, number int64, to domain.Status) (domain.Order, bool, error) {
	o, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return domain.Order{}, false, err
	}
	ctx = logger.WithOrderID(ctx, o.ID)
	if o.Status == to {
		return o, false, nil
	}
	if !domain.CanTransition(o.Status, to) {
		logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.set_status",
			slog.String("status", "rejected"),
			slog.String("from_status", string(o.Status)),
			slog.String("to_status", string(to)),
		)
		return o, false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, to)
	}

	var changed bool
	switch to {
	case domain.StatusPaid:
		changed, err = s.ConfirmPaid(ctx, o.ID)
	case domain.StatusCancelled:
		if changed, err = s.transitionAndNotify(ctx, o, to, notify.Cancelled); changed {
			s.cancelIntent(ctx, o)
		}
	case domain.StatusExpired:
		changed, err = s.transitionAndNotify(ctx, o, to, notify.Expired)
	default:
		_, changed, err = s.Advance(ctx, number, to)
	}
	if err != nil {
		return o, false, err
	}
	if !changed {
		return o, false, nil
	}
	fresh, err := s.store.FindByID(ctx, o.ID)
	if err != nil {
		o.Status = to
		return o, true, nil
	}
	return fresh, true, nil
}
