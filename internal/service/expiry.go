package service

import (
	"context"
	"log/slog"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/notify"
	"github.com/flexyframe/artbot/internal/payment"
)

// ExpiryReport counts what one expiry pass did.
type ExpiryReport struct {
	Scanned    int
	Expired    int
	Cancelled  int
	Reconciled int
	Skipped    int
	Failed     int
}

// SweepExpired expires new orders older than the payment window. Orders with
// a payment intent are checked against the gateway first; a payment the
// gateway reports as succeeded is confirmed instead of expired.
func (s *Orders) SweepExpired(ctx context.Context) (ExpiryReport, error) {
	cutoff := s.now().Add(-s.window)
	stale, err := s.store.ListUnpaidBefore(ctx, cutoff, s.batch)
	if err != nil {
		return ExpiryReport{}, err
	}
	rep := ExpiryReport{Scanned: len(stale)}
	for _, o := range stale {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		s.reconcileStale(logger.WithOrderID(ctx, o.ID), o, &rep)
	}
	return rep, nil
}

func (s *Orders) reconcileStale(ctx context.Context, o domain.Order, rep *ExpiryReport) {
	remote := s.remoteState(ctx, o)

	var (
		changed bool
		err     error
	)
	switch remote {
	case payment.StateSucceeded:
		changed, err = s.ConfirmPaid(ctx, o.ID)
		if changed {
			rep.Reconciled++
		}
	case payment.StateWaitingForCapture:
		rep.Skipped++
	case payment.StateCanceled:
		changed, err = s.transitionAndNotify(ctx, o, domain.StatusCancelled, notify.Cancelled)
		if changed {
			rep.Cancelled++
		}
	case payment.StateExpired:
		s.cancelIntent(ctx, o)
		changed, err = s.expire(ctx, o, rep)
	default:
		changed, err = s.expire(ctx, o, rep)
	}
	if err != nil {
		rep.Failed++
		logger.LogEvent(ctx, logger.SWEEP, slog.LevelError, "expiry.order",
			slog.String("status", "failed"),
			slog.String("remote_state", string(remote)),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.SWEEP, slog.LevelDebug, "expiry.order",
		slog.String("status", changeStatus(changed)),
		slog.String("remote_state", string(remote)),
	)
}

func (s *Orders) expire(ctx context.Context, o domain.Order, rep *ExpiryReport) (bool, error) {
	changed, err := s.transitionAndNotify(ctx, o, domain.StatusExpired, notify.Expired)
	if changed {
		rep.Expired++
	}
	return changed, err
}

// remoteState asks the gateway about the order's intent. Orders without an
// intent, an unconfigured gateway and query failures all yield "".
func (s *Orders) remoteState(ctx context.Context, o domain.Order) payment.RemoteState {
	if o.PaymentID == "" || !s.GatewayConfigured() {
		return ""
	}
	st, err := s.gateway.CheckStatus(ctx, o.PaymentID)
	if err != nil {
		logger.LogEvent(logger.WithPaymentID(ctx, o.PaymentID), logger.PAY, slog.LevelWarn, "payment.status",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
		return ""
	}
	return st
}

func changeStatus(changed bool) string {
	if changed {
		return "ok"
	}
	return "noop"
}
