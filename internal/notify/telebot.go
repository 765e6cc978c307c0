package notify

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/internal/views"
)

// BotSender adapts a telebot bot to Sender.
type BotSender struct {
	Bot *tele.Bot
}

// Send posts v as an HTML message and returns its id.
func (s BotSender) Send(_ context.Context, chatID int64, v views.View) (int, error) {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
	if v.Markup != nil {
		opts.ReplyMarkup = v.Markup
	}
	msg, err := s.Bot.Send(tele.ChatID(chatID), v.Text, opts)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Delete removes a message from a chat.
func (s BotSender) Delete(_ context.Context, chatID int64, msgID int) error {
	return s.Bot.Delete(&tele.StoredMessage{MessageID: strconv.Itoa(msgID), ChatID: chatID})
}
