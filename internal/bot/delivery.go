package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/telegram/callbacks"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/core/telegram/state"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/views"
)

const maxAddressField = 200

// Delivery flow: city -> pickup or courier -> point or street -> saved.

func (b *Bot) handleDelivery(c tele.Context) error {
	b.sessions.Set(tghelpers.BuildContext(c), c.Sender().ID, StateDeliveryCity, nil)
	return reply(c, views.DeliveryCityPrompt())
}

func (b *Bot) handleDeliveryCity(c tele.Context) error {
	city, ok := addressField(c.Text())
	if !ok {
		return reply(c, views.DeliveryCityPrompt())
	}
	b.sessions.Set(tghelpers.BuildContext(c), c.Sender().ID, StateDeliveryKind, map[string]string{"city": city})
	return reply(c, views.DeliveryKindPrompt(city))
}

// handleDeliveryKindText repeats the choice when the user types instead of pressing a button.
func (b *Bot) handleDeliveryKindText(c tele.Context) error {
	sess := b.sessions.Get(tghelpers.BuildContext(c), c.Sender().ID)
	return reply(c, views.DeliveryKindPrompt(sess.Value("city")))
}

func (b *Bot) deliveryKindHandler(kind domain.DeliveryKind) tele.HandlerFunc {
	next, prompt := StateDeliveryPickup, views.DeliveryPickupPrompt()
	if kind == domain.DeliveryCourier {
		next, prompt = StateDeliveryAddress, views.DeliveryStreetPrompt()
	}
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		var moved bool
		b.sessions.Update(ctx, c.Sender().ID, func(s state.Session) (state.State, map[string]string) {
			if s.State != StateDeliveryKind {
				return s.State, s.Data
			}
			moved = true
			return next, map[string]string{"city": s.Value("city"), "kind": string(kind)}
		})
		if !moved {
			return callbacks.Answer(c, "Начните заново: /delivery")
		}
		_ = callbacks.Answer(c, "")
		return reply(c, prompt)
	}
}

func (b *Bot) handleDeliveryPoint(c tele.Context) error {
	return b.saveAddress(c, domain.DeliveryPickup)
}

func (b *Bot) handleDeliveryStreet(c tele.Context) error {
	return b.saveAddress(c, domain.DeliveryCourier)
}

func (b *Bot) saveAddress(c tele.Context, kind domain.DeliveryKind) error {
	ctx := tghelpers.BuildContext(c)
	value, ok := addressField(c.Text())
	if !ok {
		if kind == domain.DeliveryPickup {
			return reply(c, views.DeliveryPickupPrompt())
		}
		return reply(c, views.DeliveryStreetPrompt())
	}
	sess := b.sessions.Get(ctx, c.Sender().ID)
	addr := domain.DeliveryAddress{Kind: kind, City: sess.Value("city")}
	if kind == domain.DeliveryPickup {
		addr.PickupPoint = value
	} else {
		addr.Street = value
	}
	if err := b.users.SaveAddress(ctx, c.Sender().ID, addr); err != nil {
		return fail(c, "delivery.save", err)
	}
	b.sessions.Clear(ctx, c.Sender().ID)
	return reply(c, views.DeliverySaved(addr))
}

func addressField(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || len([]rune(v)) > maxAddressField {
		return "", false
	}
	return v, true
}
