package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/telegram/callbacks"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/views"
)

var errUsage = errors.New("usage")

func (b *Bot) handleAdminOrders(c tele.Context) error {
	orders, err := b.orders.Recent(tghelpers.BuildContext(c), adminOrdersLimit)
	if err != nil {
		return fail(c, "admin.orders", err)
	}
	return reply(c, views.AdminOrderList(orders))
}

func (b *Bot) advanceHandler(to domain.Status) tele.HandlerFunc {
	return func(c tele.Context) error {
		number, err := orderNumberArg(c.Args())
		if err != nil {
			return reply(c, views.View{Text: fmt.Sprintf("Использование: /%s &lt;номер заказа&gt;", advanceCommand(to))})
		}
		o, changed, err := b.orders.Advance(tghelpers.BuildContext(c), number, to)
		if err != nil {
			return fail(c, "admin.advance", err)
		}
		return reply(c, views.AdminStatusSet(o, changed))
	}
}

func advanceCommand(to domain.Status) string {
	if to == domain.StatusCompleted {
		return "complete"
	}
	return "progress"
}

func (b *Bot) handleSetStatus(c tele.Context) error {
	args := c.Args()
	usage := views.View{Text: "Использование: /setstatus &lt;номер&gt; &lt;new|paid|in_progress|completed|cancelled|expired&gt;"}
	if len(args) != 2 {
		return reply(c, usage)
	}
	number, err := orderNumberArg(args[:1])
	if err != nil {
		return reply(c, usage)
	}
	st, err := domain.ParseStatus(strings.ToLower(args[1]))
	if err != nil {
		return reply(c, usage)
	}
	o, changed, err := b.orders.ChangeStatus(tghelpers.BuildContext(c), number, st)
	if err != nil {
		return fail(c, "admin.set_status", err)
	}
	return reply(c, views.AdminStatusSet(o, changed))
}

// handleSweep runs every maintenance job now. A job already running is
// joined rather than started twice.
func (b *Bot) handleSweep(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var lines []string
	for _, s := range b.opts.Sweepers {
		shared, err := s.RunNow(ctx)
		switch {
		case err != nil:
			lines = append(lines, fmt.Sprintf("❌ %s: ошибка", s.Name()))
		case shared:
			lines = append(lines, fmt.Sprintf("⏳ %s: уже выполнялся, дождались результата", s.Name()))
		default:
			lines = append(lines, fmt.Sprintf("✅ %s: выполнено", s.Name()))
		}
	}
	if len(lines) == 0 {
		return reply(c, views.View{Text: "Нет задач обслуживания."})
	}
	return reply(c, views.View{Text: strings.Join(lines, "\n")})
}

// handleAdminConfirm confirms a manual payment from the operator notice.
func (b *Bot) handleAdminConfirm(c tele.Context) error {
	if !b.isAdmin(c) {
		return callbacks.Answer(c, "⛔ Только для оператора")
	}
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Answer(c, "Кнопка устарела")
	}
	changed, err := b.orders.ConfirmPaid(tghelpers.BuildContext(c), id)
	if err != nil {
		return fail(c, "admin.confirm", err)
	}
	if !changed {
		return callbacks.Answer(c, "Оплата уже подтверждена")
	}
	return callbacks.Answer(c, "✅ Оплата подтверждена")
}

func orderNumberArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || n <= 0 {
		return 0, errUsage
	}
	return n, nil
}
