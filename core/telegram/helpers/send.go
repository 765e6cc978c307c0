package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

func markupOf(opts *tele.SendOptions) *tele.ReplyMarkup {
	if opts == nil {
		return nil
	}
	return opts.ReplyMarkup
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	RepliesFrom(c).record(markupOf(sendOpts))
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendHTML sends an HTML message with optional reply markup.
func SendHTML(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup})
}

// EditOrSendHTML edits the message behind a callback, or sends a new one
// when there is nothing to edit or the edit fails.
func EditOrSendHTML(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup}
	if c.Callback() == nil || c.Callback().Message == nil {
		return SendText(c, text, opts)
	}
	if err := c.Edit(text, opts); err != nil {
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return SendText(c, text, opts)
	}
	RepliesFrom(c).record(markup)
	return nil
}

// SendPhoto sends a photo whose caption is HTML.
func SendPhoto(c tele.Context, photo *tele.Photo, markup *tele.ReplyMarkup) error {
	RepliesFrom(c).record(markup)
	return sendAsync(c, "send.photo", "sendPhoto", func() error {
		return c.Send(photo, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup})
	})
}
