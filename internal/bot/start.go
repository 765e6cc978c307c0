package bot

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/internal/deeplink"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/service"
	"github.com/flexyframe/artbot/internal/views"
)

func (b *Bot) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	b.rememberUser(ctx, c.Sender())

	param := ""
	if msg := c.Message(); msg != nil {
		param = strings.TrimSpace(msg.Payload)
	}
	if param == "" {
		b.sessions.Clear(ctx, c.Sender().ID)
		return reply(c, views.Welcome(c.Sender().FirstName, b.opts.SiteURL))
	}

	link, err := deeplink.Parse(param)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "deeplink.parse",
			slog.String("status", "rejected"),
			slog.String("payload", param),
		)
		return reply(c, views.PaintingNotFound())
	}
	return b.orderFromLink(c, link)
}

func (b *Bot) handleWebAppData(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.WebAppData == nil {
		return nil
	}
	b.rememberUser(tghelpers.BuildContext(c), c.Sender())
	link, err := deeplink.ParseWebAppData(msg.WebAppData.Data)
	if err != nil {
		logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelInfo, "webapp.parse",
			slog.String("status", "rejected"),
		)
		return reply(c, views.PaintingNotFound())
	}
	return b.orderFromLink(c, link)
}

// orderFromLink places an order for a decoded link. A token the sender
// already owns shows that order instead of creating a duplicate; a token
// owned by someone else is dropped.
func (b *Bot) orderFromLink(c tele.Context, link deeplink.Link) error {
	ctx := tghelpers.BuildContext(c)
	user := c.Sender()

	token := link.Token
	if token != "" {
		existing, err := b.orders.GetByToken(ctx, token)
		switch {
		case err == nil && existing.UserID == user.ID:
			return reply(c, views.OrderInfo(existing))
		case err == nil:
			token = ""
		case !errors.Is(err, domain.ErrOrderNotFound):
			return fail(c, "deeplink.resume", err)
		}
	}

	if _, ok := b.catalog.ByID(link.PaintingID); !ok {
		return reply(c, views.PaintingNotFound())
	}
	co, err := b.orders.Place(ctx, service.PlaceRequest{
		UserID:     user.ID,
		UserName:   senderName(user),
		PaintingID: link.PaintingID,
		Token:      token,
	})
	if err != nil {
		return fail(c, "order.place", err)
	}
	if co.Resumed {
		return reply(c, views.OrderInfo(co.Order))
	}
	b.sessions.Set(ctx, user.ID, StateOrderCreated, map[string]string{
		"order_id": strconv.FormatInt(co.Order.ID, 10),
		"source":   string(link.Kind),
	})
	return nil
}
