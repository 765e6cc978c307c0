// Package views renders chat texts and inline keyboards shared by the bot
// handlers and the notifier. All texts use ParseMode HTML.
package views

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/telegram/format"
	"github.com/flexyframe/artbot/core/telegram/keyboard"
	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/domain"
)

// Callback uniques.
const (
	CbPainting        = "painting"
	CbCategory        = "category"
	CbOrderCreate     = "order_create"
	CbOrderPaid       = "order_paid"
	CbManualPay       = "manual_pay"
	CbOrderCancel     = "order_cancel"
	CbMyOrders        = "my_orders"
	CbAdminConfirm    = "admin_confirm"
	CbDeliveryPickup  = "delivery_pickup"
	CbDeliveryCourier = "delivery_courier"
	CbFlowCancel      = "flow_cancel"
)

// SupportContact is shown in customer-facing texts.
const SupportContact = "@FlexyFrameSupport"

// View is a rendered message.
type View struct {
	Text   string
	Markup *tele.ReplyMarkup
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func orderTitle(o domain.Order) string {
	return fmt.Sprintf("Заказ #%d", o.DisplayNumber())
}

func myOrdersBtn() keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: "📋 Мои заказы", Unique: CbMyOrders}
}

// Welcome is the /start greeting.
func Welcome(name, siteURL string) View {
	text := fmt.Sprintf("👋 Привет, <b>%s</b>!\n\n"+
		"Это FlexyFrame: авторские картины в стиле стрит-арта.\n"+
		"Выберите картину в каталоге или откройте сайт.", format.HTML(name))
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = [][]tele.InlineButton{
		{*m.Data("🖼 Каталог", CbCategory).Inline()},
		{*m.URL("🌐 Открыть сайт", strings.TrimRight(siteURL, "/")+"/index.html").Inline()},
		{*m.Data("📋 Мои заказы", CbMyOrders).Inline()},
	}
	return View{Text: text, Markup: m}
}

// Categories lists catalog categories.
func Categories(cats []string) View {
	btns := make([]keyboard.InlineBtn, 0, len(cats))
	for _, c := range cats {
		btns = append(btns, keyboard.InlineBtn{Text: c, Unique: CbCategory, Data: c})
	}
	return View{Text: "🖼 <b>Каталог</b>\n\nВыберите серию:", Markup: keyboard.InlineButtonsNPerRow(btns, 2)}
}

// PaintingList lists paintings of a category.
func PaintingList(category string, ps []catalog.Painting) View {
	btns := make([]keyboard.InlineBtn, 0, len(ps))
	for _, p := range ps {
		btns = append(btns, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s · %s", p.Title, format.Rub(p.Price)),
			Unique: CbPainting,
			Data:   id(p.ID),
		})
	}
	return View{Text: fmt.Sprintf("🎨 <b>%s</b>", format.HTML(category)), Markup: keyboard.InlineButtons(btns)}
}

// PaintingCard describes a painting with an order button.
func PaintingCard(p catalog.Painting) View {
	var b strings.Builder
	fmt.Fprintf(&b, "🎨 <b>%s</b>\n", format.HTML(p.FullTitle))
	if p.FullTitle == "" {
		b.Reset()
		fmt.Fprintf(&b, "🎨 <b>%s</b>\n", format.HTML(p.Title))
	}
	if p.Badge != "" {
		fmt.Fprintf(&b, "🏷 %s\n", format.HTML(p.Badge))
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", format.HTML(p.Description))
	}
	fmt.Fprintf(&b, "\n💰 Цена: <b>%s</b>", format.Rub(p.Price))
	return View{
		Text: b.String(),
		Markup: keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "🛒 Заказать", Unique: CbOrderCreate, Data: id(p.ID)},
			{Text: "🔙 Каталог", Unique: CbCategory},
		}),
	}
}

// OrderCreated is the user-facing order message. With a redirect URL it offers
// gateway payment, otherwise the manual payment path.
func OrderCreated(o domain.Order, redirectURL string) View {
	text := fmt.Sprintf("🧾 <b>%s создан</b>\n\n"+
		"🎨 Картина: %s\n"+
		"💰 Сумма: <b>%s</b>\n"+
		"📊 Статус: %s\n\n"+
		"⏰ Оплатите заказ в течение 15 минут.",
		orderTitle(o), format.HTML(o.PaintingTitle), format.Rub(o.Price), o.Status.Label())

	m := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton
	if redirectURL != "" {
		rows = append(rows, []tele.InlineButton{*m.URL("💳 Оплатить через ЮКассу", redirectURL).Inline()})
	} else {
		rows = append(rows, []tele.InlineButton{*m.Data("📱 Оплатить вручную", CbManualPay, id(o.ID)).Inline()})
	}
	rows = append(rows,
		[]tele.InlineButton{*m.Data("✅ Оплатил(а)", CbOrderPaid, id(o.ID)).Inline()},
		[]tele.InlineButton{*m.Data("❌ Отменить", CbOrderCancel, id(o.ID)).Inline()},
		[]tele.InlineButton{*m.Data("📋 Мои заказы", CbMyOrders).Inline()},
	)
	m.InlineKeyboard = rows
	return View{Text: text, Markup: m}
}

// ManualPayment shows payment details for the manual path.
func ManualPayment(o domain.Order, instructions string) View {
	text := fmt.Sprintf("📱 <b>Оплата заказа #%d</b>\n\n"+
		"Сумма к оплате: <b>%s</b>\n\n%s\n\n"+
		"После оплаты нажмите «Оплатил(а)».",
		o.DisplayNumber(), format.Rub(o.Price), format.HTML(instructions))
	return View{Text: text, Markup: keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "✅ Оплатил(а)", Unique: CbOrderPaid, Data: id(o.ID)},
		myOrdersBtn(),
	})}
}

// AdminNewOrder tells the operator about a new order.
func AdminNewOrder(o domain.Order, gateway bool) View {
	via := "ручная оплата"
	if gateway {
		via = "ЮКасса"
	}
	return View{Text: fmt.Sprintf("🆕 <b>Новый %s</b>\n\n"+
		"👤 Пользователь: %s (ID %d)\n"+
		"🎨 Картина: %s\n"+
		"💰 Сумма: %s\n"+
		"💳 Оплата: %s",
		strings.ToLower(orderTitle(o)), userLabel(o), o.UserID, format.HTML(o.PaintingTitle), format.Rub(o.Price), via)}
}

// AdminPaymentClaim asks the operator to confirm a manual payment.
func AdminPaymentClaim(o domain.Order) View {
	return View{
		Text: fmt.Sprintf("💸 <b>%s: пользователь сообщил об оплате</b>\n\n"+
			"👤 %s (ID %d)\n🎨 %s\n💰 %s\n\nПроверьте поступление и подтвердите.",
			orderTitle(o), userLabel(o), o.UserID, format.HTML(o.PaintingTitle), format.Rub(o.Price)),
		Markup: keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "✅ Подтвердить оплату", Unique: CbAdminConfirm, Data: id(o.ID)},
		}),
	}
}

// PaymentClaimReceived acknowledges the user's "I paid".
func PaymentClaimReceived(o domain.Order) View {
	return View{Text: fmt.Sprintf("⏳ Спасибо! Мы проверим оплату заказа #%d и сообщим о результате.", o.DisplayNumber())}
}

// Paid is the user-facing payment confirmation.
func Paid(o domain.Order, ticket domain.Ticket) View {
	text := fmt.Sprintf("✅ <b>%s оплачен!</b>\n\n"+
		"Мы получили подтверждение и начали работу.\n"+
		"Срок выполнения: 2-4 дня.\n",
		orderTitle(o))
	if ticket.ID > 0 {
		text += fmt.Sprintf("🎫 Обращение: #%d\n", ticket.ID)
	}
	text += "\n📞 Следить за статусом можно в разделе «Мои заказы».\n💬 Вопросы: " + SupportContact
	return View{Text: text, Markup: keyboard.InlineButtons([]keyboard.InlineBtn{myOrdersBtn()})}
}

// AdminPaid tells the operator an order was paid.
func AdminPaid(o domain.Order, ticket domain.Ticket, address string) View {
	text := fmt.Sprintf("💰 <b>%s оплачен</b>\n\n"+
		"👤 Пользователь: %s (ID %d)\n"+
		"🎨 Картина: %s\n"+
		"💰 Сумма: %s",
		orderTitle(o), userLabel(o), o.UserID, format.HTML(o.PaintingTitle), format.Rub(o.Price))
	if ticket.ID > 0 {
		text += fmt.Sprintf("\n🎫 Обращение: #%d", ticket.ID)
	}
	if address != "" {
		text += "\n📦 " + format.HTML(address)
	} else {
		text += "\n📦 Адрес доставки не указан"
	}
	text += fmt.Sprintf("\n\n/progress %d · /complete %d", o.DisplayNumber(), o.DisplayNumber())
	return View{Text: text}
}

// AdminAwaitingCapture tells the operator a payment waits for capture.
func AdminAwaitingCapture(o domain.Order) View {
	return View{Text: fmt.Sprintf("⏸ <b>%s: платёж ожидает подтверждения</b> в личном кабинете ЮКассы.", orderTitle(o))}
}

// Cancelled is the user-facing cancellation notice.
func Cancelled(o domain.Order, byUser bool) View {
	reason := "Платёж был отменён."
	if byUser {
		reason = "Заказ отменён по вашему запросу."
	}
	return View{Text: fmt.Sprintf("❌ <b>%s отменён</b>\n\n%s\nЕсли передумали, можете создать новый заказ.", orderTitle(o), reason)}
}

// AdminCancelled tells the operator an order was cancelled.
func AdminCancelled(o domain.Order, byUser bool) View {
	reason := "отказ от оплаты"
	if byUser {
		reason = "отменён пользователем"
	}
	return View{Text: fmt.Sprintf("❌ <b>%s отменён (%s)</b>\n\n👤 Пользователь: ID %d\n🎨 Картина: %s\n💰 Сумма: %s",
		orderTitle(o), reason, o.UserID, format.HTML(o.PaintingTitle), format.Rub(o.Price))}
}

// Expired is the user-facing expiry notice.
func Expired(o domain.Order) View {
	return View{Text: fmt.Sprintf("⏰ <b>%s отменён</b>\n\n"+
		"Ссылка на оплату истекла (15 минут).\n"+
		"Вы можете оформить новый заказ в каталоге.", orderTitle(o))}
}

// AdminExpired tells the operator an order expired.
func AdminExpired(o domain.Order) View {
	return View{Text: fmt.Sprintf("⏰ <b>%s автоматически отменён (истёк срок оплаты)</b>\n\n👤 Пользователь: ID %d\n🎨 Картина: %s\n💰 Сумма: %s",
		orderTitle(o), o.UserID, format.HTML(o.PaintingTitle), format.Rub(o.Price))}
}

// StatusChanged tells the user about operator progress.
func StatusChanged(o domain.Order) View {
	return View{Text: fmt.Sprintf("📦 <b>%s</b>\n\nНовый статус: %s", orderTitle(o), o.Status.Label())}
}

// OrderList renders the user's orders with cancel buttons for unpaid ones.
func OrderList(orders []domain.Order) View {
	if len(orders) == 0 {
		return View{Text: "📋 У вас пока нет заказов."}
	}
	var b strings.Builder
	b.WriteString("📋 <b>Ваши заказы</b>\n")
	var btns []keyboard.InlineBtn
	for _, o := range orders {
		fmt.Fprintf(&b, "\n#%d · %s · %s\n%s · %s\n",
			o.DisplayNumber(), format.HTML(o.PaintingTitle), format.Rub(o.Price),
			o.Status.Label(), o.CreatedAt.Local().Format("02.01.2006 15:04"))
		if o.Status == domain.StatusNew {
			btns = append(btns, keyboard.InlineBtn{
				Text:   fmt.Sprintf("❌ Отменить #%d", o.DisplayNumber()),
				Unique: CbOrderCancel,
				Data:   id(o.ID),
			})
		}
	}
	v := View{Text: b.String()}
	if len(btns) > 0 {
		v.Markup = keyboard.InlineButtons(btns)
	}
	return v
}

// AdminOrderList renders recent orders for the operator.
func AdminOrderList(orders []domain.Order) View {
	if len(orders) == 0 {
		return View{Text: "Заказов пока нет."}
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Последние заказы</b>\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n#%d · %s · %s · %s · %s",
			o.DisplayNumber(), format.HTML(o.PaintingTitle), format.Rub(o.Price), userLabel(o), o.Status.Label())
	}
	return View{Text: b.String()}
}

// DeliveryKindPrompt asks pickup vs courier.
func DeliveryKindPrompt(city string) View {
	return View{
		Text: fmt.Sprintf("🏙 Город: <b>%s</b>\n\nКак доставить картину?", format.HTML(city)),
		Markup: keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "📦 Пункт выдачи", Unique: CbDeliveryPickup},
			{Text: "🚚 Курьер", Unique: CbDeliveryCourier},
			keyboard.CancelButton(CbFlowCancel),
		}),
	}
}

// DeliverySaved confirms the stored address.
func DeliverySaved(addr domain.DeliveryAddress) View {
	return View{Text: "✅ Адрес доставки сохранён:\n" + format.HTML(addr.Summary())}
}

func userLabel(o domain.Order) string {
	if o.UserName != "" {
		return format.HTML(o.UserName)
	}
	return "без имени"
}

// Help lists the commands; operators also see theirs.
func Help(admin bool) View {
	text := "ℹ️ <b>Как заказать картину</b>\n\n" +
		"1. Откройте /catalog и выберите картину.\n" +
		"2. Нажмите «Заказать» и оплатите в течение 15 минут.\n" +
		"3. Укажите адрес доставки: /delivery\n\n" +
		"/orders · ваши заказы\n" +
		"💬 Вопросы: " + SupportContact
	if admin {
		text += "\n\n<b>Оператор</b>\n" +
			"/admin_orders · последние заказы\n" +
			"/progress N · заказ в работе\n" +
			"/complete N · заказ выполнен\n" +
			"/setstatus N статус · принудительная смена статуса\n" +
			"/sweep · запустить обслуживание сейчас"
	}
	return View{Text: text}
}

// PaintingNotFound answers links to paintings missing from the catalog.
func PaintingNotFound() View {
	return View{
		Text: "❌ <b>Картина не найдена!</b>\n\n" +
			"Возможно, она была удалена или ссылка устарела.\n" +
			"Пожалуйста, выберите другую картину.",
		Markup: keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "🖼 Каталог", Unique: CbCategory}}),
	}
}

// OrderInfo shows an existing order, e.g. when a deep link is opened twice.
func OrderInfo(o domain.Order) View {
	if o.Status == domain.StatusNew {
		return OrderCreated(o, "")
	}
	return View{
		Text: fmt.Sprintf("🧾 <b>%s</b>\n\n🎨 Картина: %s\n💰 Сумма: %s\n📊 Статус: %s",
			orderTitle(o), format.HTML(o.PaintingTitle), format.Rub(o.Price), o.Status.Label()),
		Markup: keyboard.InlineButtons([]keyboard.InlineBtn{myOrdersBtn()}),
	}
}

// DeliveryCityPrompt starts the delivery address flow.
func DeliveryCityPrompt() View {
	return View{Text: "🏙 Введите город доставки:", Markup: keyboard.SingleCancelMarkup(CbFlowCancel)}
}

// DeliveryPickupPrompt asks for the pickup point.
func DeliveryPickupPrompt() View {
	return View{Text: "📦 Укажите адрес или код пункта выдачи:", Markup: keyboard.SingleCancelMarkup(CbFlowCancel)}
}

// DeliveryStreetPrompt asks for the courier address.
func DeliveryStreetPrompt() View {
	return View{Text: "🚚 Укажите улицу, дом и квартиру:", Markup: keyboard.SingleCancelMarkup(CbFlowCancel)}
}

// AdminStatusSet confirms an operator status change.
func AdminStatusSet(o domain.Order, changed bool) View {
	if !changed {
		return View{Text: fmt.Sprintf("ℹ️ %s: статус не изменён (%s).", orderTitle(o), o.Status.Label())}
	}
	return View{Text: fmt.Sprintf("✅ %s: %s", orderTitle(o), o.Status.Label())}
}

// InlineArticle is the message an inline catalog result inserts.
func InlineArticle(p catalog.Painting, botUsername string) string {
	text := fmt.Sprintf("🎨 %s · %s", format.HTML(p.Title), format.Rub(p.Price))
	if botUsername != "" {
		text += fmt.Sprintf("\nЗаказать: https://t.me/%s?start=quick_order_%d", strings.TrimPrefix(botUsername, "@"), p.ID)
	}
	return text
}
