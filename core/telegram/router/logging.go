package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
)

// outcome overrides the status and outcome the summary derives from the error.
type outcome struct {
	status string
	result string
}

// skipped marks updates no handler claimed.
var skipped = outcome{status: "skip", result: "ok"}

// run executes fn as the named handler and emits one summary line for it.
func run(c tele.Context, name string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := fn(c)
	summarize(ctx, c, name, start, outcome{}, err, extras...)
	return err
}

func summarize(ctx context.Context, c tele.Context, name string, start time.Time, o outcome, err error, extras ...slog.Attr) {
	if o.status == "" {
		o.status = logger.Status(err)
	}
	if o.result == "" {
		o.result = logger.Status(err)
	}
	replies, keyboard := tghelpers.RepliesFrom(c).Counts()

	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("status", o.status),
		slog.String("handler", name),
		slog.String("outcome", o.result),
		slog.Int("replies", replies),
		slog.Bool("keyboard", keyboard),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", append(attrs, extras...)...)
}

func handlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode names err for log filters: the Code() of the first error in the
// chain that has one, otherwise the type of the innermost error.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
