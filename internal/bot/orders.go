package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/telegram/callbacks"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/internal/deeplink"
	"github.com/flexyframe/artbot/internal/service"
	"github.com/flexyframe/artbot/internal/views"
)

// handleOrderCreate places an order from a painting card. The order message
// itself is sent by the notifier.
func (b *Bot) handleOrderCreate(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Answer(c, "Кнопка устарела")
	}
	if _, ok := b.catalog.ByID(id); !ok {
		return callbacks.Answer(c, userText(service.ErrUnknownPainting))
	}
	if err := b.orderFromLink(c, deeplink.Link{Kind: deeplink.KindPainting, PaintingID: id}); err != nil {
		return err
	}
	if !callbacks.Answered(c) {
		return callbacks.Answer(c, "🧾 Заказ создан")
	}
	return nil
}

func (b *Bot) handleOrderPaid(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Answer(c, "Кнопка устарела")
	}
	if _, err := b.orders.ClaimPaid(tghelpers.BuildContext(c), id, c.Sender().ID); err != nil {
		return fail(c, "order.claim_paid", err)
	}
	return callbacks.Answer(c, "⏳ Проверяем оплату")
}

func (b *Bot) handleManualPay(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Answer(c, "Кнопка устарела")
	}
	o, err := b.orders.Get(tghelpers.BuildContext(c), id)
	if err != nil {
		return fail(c, "order.manual_pay", err)
	}
	if o.UserID != c.Sender().ID {
		return fail(c, "order.manual_pay", service.ErrNotOwner)
	}
	return reply(c, views.ManualPayment(o, b.opts.ManualInstructions))
}

func (b *Bot) handleOrderCancel(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Answer(c, "Кнопка устарела")
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := b.orders.Cancel(ctx, id, c.Sender().ID); err != nil {
		return fail(c, "order.cancel", err)
	}
	if sess := b.sessions.Get(ctx, c.Sender().ID); sess.Value("order_id") == strconv.FormatInt(id, 10) {
		b.sessions.Clear(ctx, c.Sender().ID)
	}
	return callbacks.Answer(c, "Заказ отменён")
}

// handleMyOrders serves both /orders and the "My orders" button.
func (b *Bot) handleMyOrders(c tele.Context) error {
	orders, err := b.orders.UserOrders(tghelpers.BuildContext(c), c.Sender().ID, userOrdersLimit)
	if err != nil {
		return fail(c, "orders.list", err)
	}
	return reply(c, views.OrderList(orders))
}
