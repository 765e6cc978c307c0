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
)

// EventOutcome describes what a gateway event did.
type EventOutcome struct {
	OrderID int64
	Changed bool
	// Ignored is true for events that reference no known order or carry an unhandled state.
	Ignored bool
}

// ApplyGatewayEvent maps a webhook event onto the order. Duplicates are
// detected through no-op transitions, so redelivery is safe.
func (s *Orders) ApplyGatewayEvent(ctx context.Context, ev payment.Event) (EventOutcome, error) {
	ctx = logger.WithPaymentID(ctx, ev.PaymentID)
	o, err := s.resolveEventOrder(ctx, ev)
	if errors.Is(err, domain.ErrOrderNotFound) {
		logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "webhook.apply",
			slog.String("status", "skip"),
			slog.String("gateway_event", ev.Type),
			slog.String("cause", "order_not_found"),
		)
		return EventOutcome{Ignored: true}, nil
	}
	if err != nil {
		return EventOutcome{}, err
	}
	ctx = logger.WithOrderID(ctx, o.ID)
	out := EventOutcome{OrderID: o.ID}

	if ev.PaymentID != "" && o.PaymentID == "" {
		if err := s.store.SetPaymentID(ctx, o.ID, ev.PaymentID); err != nil {
			logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "payment.link",
				slog.String("status", "failed"),
				slog.String("err", err.Error()),
			)
		}
	}

	switch ev.State {
	case payment.StateSucceeded:
		out.Changed, err = s.ConfirmPaid(ctx, o.ID)
	case payment.StateCanceled:
		out.Changed, err = s.transitionAndNotify(ctx, o, domain.StatusCancelled, notify.Cancelled)
	case payment.StateExpired:
		out.Changed, err = s.transitionAndNotify(ctx, o, domain.StatusExpired, notify.Expired)
	case payment.StateWaitingForCapture:
		if s.captures.Add(fmt.Sprintf("%d:%s", o.ID, ev.PaymentID)) {
			s.notify(ctx, notify.AwaitingCapture, o)
		}
	default:
		out.Ignored = true
	}
	if err != nil {
		return out, err
	}
	logger.LogEvent(ctx, logger.PAY, slog.LevelInfo, "webhook.apply",
		slog.String("status", outcomeStatus(out)),
		slog.String("gateway_event", ev.Type),
		slog.String("remote_state", string(ev.State)),
	)
	return out, nil
}

func outcomeStatus(out EventOutcome) string {
	switch {
	case out.Ignored:
		return "skip"
	case out.Changed:
		return "ok"
	}
	return "noop"
}

func (s *Orders) resolveEventOrder(ctx context.Context, ev payment.Event) (domain.Order, error) {
	if ev.OrderID > 0 {
		return s.store.FindByID(ctx, ev.OrderID)
	}
	return s.store.FindByPaymentID(ctx, ev.PaymentID)
}

// transitionAndNotify applies a guarded transition and notifies only when it changed the row.
func (s *Orders) transitionAndNotify(ctx context.Context, o domain.Order, to domain.Status, kind notify.Kind) (bool, error) {
	changed, err := s.store.Transition(ctx, o.ID, to)
	if err != nil {
		logger.LogEvent(ctx, logger.ORD, slog.LevelError, "order.transition",
			slog.String("status", "failed"),
			slog.String("to_status", string(to)),
			slog.String("err", err.Error()),
		)
		return false, err
	}
	if !changed {
		return false, nil
	}
	from := o.Status
	o.Status = to
	logger.LogEvent(ctx, logger.ORD, slog.LevelInfo, "order.transition",
		slog.String("status", "ok"),
		slog.String("from_status", string(from)),
		slog.String("to_status", string(to)),
	)
	s.notify(ctx, kind, o)
	return true, nil
}
