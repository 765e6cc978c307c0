// Package bot binds the storefront chat flows to the telegram registry:
// catalog browsing, ordering, manual payment, delivery address and the
// operator commands.
package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tg "github.com/flexyframe/artbot/core/telegram"
	"github.com/flexyframe/artbot/core/telegram/callbacks"
	"github.com/flexyframe/artbot/core/telegram/commands"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/core/telegram/middleware"
	"github.com/flexyframe/artbot/core/telegram/state"
	"github.com/flexyframe/artbot/core/telegram/ui"
	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/service"
	"github.com/flexyframe/artbot/internal/views"
)

// Orders is the order service as seen by chat handlers.
type Orders interface {
	Place(ctx context.Context, req service.PlaceRequest) (service.Checkout, error)
	Cancel(ctx context.Context, id, userID int64) (domain.Order, error)
	ClaimPaid(ctx context.Context, id, userID int64) (domain.Order, error)
	ConfirmPaid(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	GetByToken(ctx context.Context, token string) (domain.Order, error)
	UserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error)
	Recent(ctx context.Context, limit int) ([]domain.Order, error)
	Advance(ctx context.Context, number int64, to domain.Status) (domain.Order, bool, error)
	ChangeStatus(ctx context.Context, number int64, to domain.Status) (domain.Order, bool, error)
}

// Users stores customer profiles and delivery preferences.
type Users interface {
	UpsertUser(ctx context.Context, u domain.User) error
	SaveAddress(ctx context.Context, userID int64, addr domain.DeliveryAddress) error
}

// Catalog is the read side of the painting catalog.
type Catalog interface {
	All() []catalog.Painting
	ByID(id int64) (catalog.Painting, bool)
	Categories() []string
	ByCategory(category string) []catalog.Painting
	Search(query string) []catalog.Painting
}

// Sweeper is a maintenance job the operator may trigger.
type Sweeper interface {
	Name() string
	RunNow(ctx context.Context) (shared bool, err error)
}

// Options configure a Bot.
type Options struct {
	AdminID            int64
	SiteURL            string
	BotUsername        string
	ManualInstructions string
	ImagesDir          string
	Sweepers           []Sweeper
}

const (
	userOrdersLimit  = 10
	adminOrdersLimit = 20
	inlineLimit      = 20
)

// Session states of the storefront conversation.
const (
	StateBrowsing        state.State = "browsing_catalog"
	StateItemSelected    state.State = "item_selected"
	StateOrderCreated    state.State = "order_created"
	StateDeliveryCity    state.State = "delivery_city"
	StateDeliveryKind    state.State = "delivery_kind"
	StateDeliveryPickup  state.State = "delivery_pickup"
	StateDeliveryAddress state.State = "delivery_address"
)

// Bot holds the chat handlers and their collaborators.
type Bot struct {
	orders   Orders
	users    Users
	catalog  Catalog
	sessions state.Manager
	opts     Options
	admin    middleware.AdminOptions
}

// New builds the handlers.
func New(orders Orders, users Users, cat Catalog, sessions state.Manager, opts Options) *Bot {
	return &Bot{
		orders:   orders,
		users:    users,
		catalog:  cat,
		sessions: sessions,
		opts:     opts,
		admin:    middleware.AdminOptions{AdminID: opts.AdminID},
	}
}

// Register adds commands, callbacks and session handlers.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: b.handleStart, Description: "Начать"}},
		{"/catalog", commands.Command{Handler: b.handleCatalog, Description: "Каталог картин"}},
		{"/orders", commands.Command{Handler: b.handleMyOrders, Description: "Мои заказы"}},
		{"/delivery", commands.Command{Handler: b.handleDelivery, Description: "Адрес доставки"}},
		{"/help", commands.Command{Handler: b.handleHelp, Description: "Помощь"}},
		{"/cancel", commands.Command{Handler: b.handleCancelFlow, Hidden: true}},

		{"/admin_orders", commands.Command{Handler: b.handleAdminOrders, Description: "Последние заказы", AdminOnly: true}},
		{"/progress", commands.Command{Handler: b.advanceHandler(domain.StatusInProgress), Description: "Заказ в работе: /progress N", AdminOnly: true}},
		{"/complete", commands.Command{Handler: b.advanceHandler(domain.StatusCompleted), Description: "Заказ выполнен: /complete N", AdminOnly: true}},
		{"/setstatus", commands.Command{Handler: b.handleSetStatus, Description: "Сменить статус: /setstatus N статус", AdminOnly: true}},
		{"/sweep", commands.Command{Handler: b.handleSweep, Description: "Запустить обслуживание", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		views.CbCategory:        b.handleCategory,
		views.CbPainting:        b.handlePainting,
		views.CbOrderCreate:     b.handleOrderCreate,
		views.CbOrderPaid:       b.handleOrderPaid,
		views.CbManualPay:       b.handleManualPay,
		views.CbOrderCancel:     b.handleOrderCancel,
		views.CbMyOrders:        b.handleMyOrders,
		views.CbAdminConfirm:    b.handleAdminConfirm,
		views.CbDeliveryPickup:  b.deliveryKindHandler(domain.DeliveryPickup),
		views.CbDeliveryCourier: b.deliveryKindHandler(domain.DeliveryCourier),
		views.CbFlowCancel:      b.handleCancelFlow,
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.UnknownCallback())

	b.sessions.Handle(StateDeliveryCity, b.handleDeliveryCity)
	b.sessions.Handle(StateDeliveryKind, b.handleDeliveryKindText)
	b.sessions.Handle(StateDeliveryPickup, b.handleDeliveryPoint)
	b.sessions.Handle(StateDeliveryAddress, b.handleDeliveryStreet)
	return nil
}

// Routes returns the endpoints outside the command and callback registry.
func (b *Bot) Routes() []tg.Route {
	return []tg.Route{
		{Endpoint: tele.OnQuery, Handler: middleware.RecoverMiddleware(b.handleInlineQuery)},
		{Endpoint: tele.OnWebApp, Handler: middleware.RecoverMiddleware(b.handleWebAppData)},
	}
}

// RejectAdmin answers non-operators trying an operator command.
func (b *Bot) RejectAdmin(c tele.Context) error {
	return reply(c, views.View{Text: "⛔ Команда доступна только оператору."})
}

func (b *Bot) isAdmin(c tele.Context) bool {
	return b.admin.IsAdmin(c)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return reply(c, views.Help(b.isAdmin(c)))
}

var _ ui.Fallbacks = (*Bot)(nil)

// UnknownText answers text that matches no command or session step.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return reply(c, views.View{Text: "Не понял сообщение. Откройте /catalog или /help."})
	}
}

// UnknownDocument answers files; the shop accepts none.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return reply(c, views.View{Text: "Файлы не принимаются. Вопросы: " + views.SupportContact})
	}
}

// UnknownCallback answers buttons from outdated messages.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return callbacks.Answer(c, "Кнопка устарела")
	}
}

// RateLimited answers users who send updates too fast.
func (b *Bot) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Answer(c, "Не так быстро 🙂")
	}
	return nil
}

// handleCancelFlow leaves any multi-step flow.
func (b *Bot) handleCancelFlow(c tele.Context) error {
	if sess, ok := state.FromContext(c); ok && !sess.Active() {
		return show(c, views.View{Text: "Нечего отменять."})
	}
	b.sessions.Clear(tghelpers.BuildContext(c), c.Sender().ID)
	return show(c, views.View{Text: "Действие отменено."})
}

func reply(c tele.Context, v views.View) error {
	return tghelpers.SendHTML(c, v.Text, v.Markup)
}

func show(c tele.Context, v views.View) error {
	return tghelpers.EditOrSendHTML(c, v.Text, v.Markup)
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	return domain.User{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}.DisplayName()
}

// userText maps service errors to fixed texts; raw errors never reach users.
func userText(err error) string {
	switch {
	case errors.Is(err, service.ErrUnknownPainting):
		return "❌ Картина не найдена."
	case errors.Is(err, domain.ErrOrderNotFound):
		return "❌ Заказ не найден."
	case errors.Is(err, service.ErrNotOwner):
		return "❌ Это не ваш заказ."
	case errors.Is(err, service.ErrNotPending):
		return "ℹ️ Заказ уже не ожидает оплаты."
	case errors.Is(err, domain.ErrCannotCancel):
		return "ℹ️ Этот заказ уже нельзя отменить."
	case errors.Is(err, domain.ErrInvalidTransition):
		return "ℹ️ Такая смена статуса недопустима."
	}
	return "⚠️ Что-то пошло не так. Попробуйте позже."
}

// fail logs err and tells the user a fixed text, as a toast for callbacks.
func fail(c tele.Context, event string, err error) error {
	ctx := tghelpers.BuildContext(c)
	level := slog.LevelWarn
	if userText(err) == userText(nil) {
		level = slog.LevelError
	}
	logger.LogEvent(ctx, logger.TG, level, event,
		slog.String("status", "failed"),
		slog.String("err", err.Error()),
	)
	if c.Callback() != nil {
		return callbacks.Answer(c, userText(err))
	}
	return reply(c, views.View{Text: userText(err)})
}

func (b *Bot) rememberUser(ctx context.Context, u *tele.User) {
	if u == nil || b.users == nil {
		return
	}
	err := b.users.UpsertUser(ctx, domain.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "user.upsert",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
	}
}
