// Package notify fans order events out to the customer and the operator chat.
// Every send is best-effort: failures are logged by the dispatcher and never
// reach the caller that triggered the event.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/core/telegram/sender"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/views"
)

// Kind enumerates order events worth telling someone about.
type Kind string

const (
	OrderCreated    Kind = "order_created"
	PaymentClaimed  Kind = "payment_claimed"
	Paid            Kind = "paid"
	AwaitingCapture Kind = "awaiting_capture"
	Cancelled       Kind = "cancelled"
	CancelledByUser Kind = "cancelled_by_user"
	Expired         Kind = "expired"
	StatusChanged   Kind = "status_changed"
)

// Event carries what the templates need.
type Event struct {
	Kind        Kind
	Order       domain.Order
	Ticket      domain.Ticket
	RedirectURL string
	// Address is the saved delivery summary for operator notices.
	Address string
}

// Sender delivers and deletes chat messages.
type Sender interface {
	Send(ctx context.Context, chatID int64, v views.View) (int, error)
	Delete(ctx context.Context, chatID int64, msgID int) error
}

// Queue runs jobs asynchronously with bounded retries.
type Queue interface {
	Enqueue(ctx context.Context, action, endpoint string, run func() error) error
}

// RefStore keeps message references on the order.
type RefStore interface {
	RecordMessageRefs(ctx context.Context, id int64, userMsgID, adminMsgID *int) error
	ClearMessageRefs(ctx context.Context, id int64) error
}

// Notifier renders and dispatches notifications.
type Notifier struct {
	sender      Sender
	queue       Queue
	refs        RefStore
	adminChatID int64

	dropped atomic.Uint64
}

// New builds a Notifier. A nil queue sends inline; adminChatID 0 disables operator messages.
func New(s Sender, q Queue, refs RefStore, adminChatID int64) *Notifier {
	return &Notifier{sender: s, queue: q, refs: refs, adminChatID: adminChatID}
}

// AdminConfigured reports whether operator messages are sent.
func (n *Notifier) AdminConfigured() bool {
	return n.adminChatID != 0
}

// Dropped is the number of sends discarded because the queue was full or closed.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// IsAdmin reports whether chatID is the operator chat.
func (n *Notifier) IsAdmin(chatID int64) bool {
	return n.adminChatID != 0 && chatID == n.adminChatID
}

// Notify renders ev and schedules the customer and operator messages.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if n == nil || n.sender == nil {
		return
	}
	// Sends outlive the request or update that triggered them.
	ctx = logger.WithOrderID(context.WithoutCancel(ctx), ev.Order.ID)
	o := ev.Order

	switch ev.Kind {
	case OrderCreated:
		n.send(ctx, ev.Kind, o.UserID, views.OrderCreated(o, ev.RedirectURL), refUser)
		n.admin(ctx, ev.Kind, views.AdminNewOrder(o, ev.RedirectURL != ""), refAdmin)
	case PaymentClaimed:
		n.send(ctx, ev.Kind, o.UserID, views.PaymentClaimReceived(o), nil)
		n.admin(ctx, ev.Kind, views.AdminPaymentClaim(o), nil)
	case Paid:
		n.dropStale(ctx, o)
		n.send(ctx, ev.Kind, o.UserID, views.Paid(o, ev.Ticket), nil)
		n.admin(ctx, ev.Kind, views.AdminPaid(o, ev.Ticket, ev.Address), nil)
	case AwaitingCapture:
		n.admin(ctx, ev.Kind, views.AdminAwaitingCapture(o), nil)
	case Cancelled, CancelledByUser:
		byUser := ev.Kind == CancelledByUser
		n.dropStale(ctx, o)
		n.send(ctx, ev.Kind, o.UserID, views.Cancelled(o, byUser), nil)
		n.admin(ctx, ev.Kind, views.AdminCancelled(o, byUser), nil)
	case Expired:
		n.dropStale(ctx, o)
		n.send(ctx, ev.Kind, o.UserID, views.Expired(o), nil)
		n.admin(ctx, ev.Kind, views.AdminExpired(o), nil)
	case StatusChanged:
		n.send(ctx, ev.Kind, o.UserID, views.StatusChanged(o), nil)
	default:
		logger.LogEvent(ctx, logger.NOTIFY, slog.LevelWarn, "notify.unknown",
			slog.String("kind", string(ev.Kind)))
	}
}

type refSetter func(ctx context.Context, n *Notifier, orderID int64, msgID int)

func refUser(ctx context.Context, n *Notifier, orderID int64, msgID int) {
	n.recordRef(ctx, orderID, &msgID, nil)
}

func refAdmin(ctx context.Context, n *Notifier, orderID int64, msgID int) {
	n.recordRef(ctx, orderID, nil, &msgID)
}

func (n *Notifier) recordRef(ctx context.Context, orderID int64, userMsgID, adminMsgID *int) {
	if n.refs == nil {
		return
	}
	if err := n.refs.RecordMessageRefs(ctx, orderID, userMsgID, adminMsgID); err != nil {
		logger.LogEvent(ctx, logger.NOTIFY, slog.LevelWarn, "notify.refs",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
	}
}

func (n *Notifier) admin(ctx context.Context, kind Kind, v views.View, ref refSetter) {
	if n.adminChatID == 0 {
		return
	}
	n.send(ctx, kind, n.adminChatID, v, ref)
}

func (n *Notifier) send(ctx context.Context, kind Kind, chatID int64, v views.View, ref refSetter) {
	orderID := logger.OrderIDFrom(ctx)
	n.enqueue(ctx, "notify."+string(kind), "sendMessage", func() error {
		msgID, err := n.sender.Send(ctx, chatID, v)
		if err != nil {
			return err
		}
		if ref != nil && msgID != 0 {
			ref(ctx, n, orderID, msgID)
		}
		return nil
	})
}

// dropStale deletes the previously sent order messages so stale pay buttons disappear.
func (n *Notifier) dropStale(ctx context.Context, o domain.Order) {
	if !o.HasMessages() {
		return
	}
	userMsg, adminMsg := o.UserMessageID, o.AdminMessageID
	n.enqueue(ctx, "notify.delete", "deleteMessage", func() error {
		var errs []error
		if userMsg != 0 {
			errs = append(errs, n.sender.Delete(ctx, o.UserID, userMsg))
		}
		if adminMsg != 0 && n.adminChatID != 0 {
			errs = append(errs, n.sender.Delete(ctx, n.adminChatID, adminMsg))
		}
		if n.refs != nil {
			if err := n.refs.ClearMessageRefs(ctx, o.ID); err != nil {
				logger.LogEvent(ctx, logger.NOTIFY, slog.LevelWarn, "notify.refs",
					slog.String("status", "failed"),
					slog.String("err", err.Error()),
				)
			}
		}
		if err := errors.Join(errs...); err != nil {
			logger.LogEvent(ctx, logger.NOTIFY, slog.LevelDebug, "notify.delete",
				slog.String("status", "skip"),
				slog.String("err", err.Error()),
			)
		}
		return nil
	})
}

func (n *Notifier) enqueue(ctx context.Context, action, endpoint string, run func() error) {
	if n.queue == nil {
		if err := run(); err != nil {
			logger.LogEvent(ctx, logger.NOTIFY, slog.LevelWarn, action,
				slog.String("status", "failed"),
				slog.String("err", err.Error()),
			)
		}
		return
	}
	err := n.queue.Enqueue(ctx, action, endpoint, run)
	if err == nil {
		return
	}
	// The caller may be a sweeper tick or an HTTP handler; it must not wait
	// on Telegram, so a send that does not fit is dropped.
	n.dropped.Add(1)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.LogEvent(ctx, logger.NOTIFY, slog.LevelWarn, "queue.drop",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.NOTIFY, slog.LevelWarn, action,
		slog.String("status", "failed"),
		slog.String("err", err.Error()),
	)
}
