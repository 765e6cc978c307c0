package logger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyRID
	keyUpdateID
	keyUserID
	keyChatID
	keyHandler
	keyOrderID
	keyPaymentID
)

// withValue stores v under key. Zero values are not stored.
func withValue[T comparable](ctx context.Context, key ctxKey, v T) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOf[T any](ctx context.Context, key ctxKey) T {
	var v T
	if ctx == nil {
		return v
	}
	v, _ = ctx.Value(key).(T)
	return v
}

// WithLogger stores the logger later returned by FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return withValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx, or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if l := valueOf[*slog.Logger](ctx, keyLogger); l != nil {
		return l
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withValue(ctx, keyRID, rid)
}

func RIDFrom(ctx context.Context) string { return valueOf[string](ctx, keyRID) }

// WithUpdateMeta attaches the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = withValue(ctx, keyUpdateID, updateID)
	ctx = withValue(ctx, keyUserID, userID)
	return withValue(ctx, keyChatID, chatID)
}

func UpdateIDFrom(ctx context.Context) int { return valueOf[int](ctx, keyUpdateID) }

func UserIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, keyUserID) }

func ChatIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, keyChatID) }

// WithHandler names the bot handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	return withValue(ctx, keyHandler, handler)
}

func HandlerFrom(ctx context.Context) string { return valueOf[string](ctx, keyHandler) }

// WithOrderID attaches the storage id of the order being processed.
func WithOrderID(ctx context.Context, orderID int64) context.Context {
	return withValue(ctx, keyOrderID, orderID)
}

func OrderIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, keyOrderID) }

// WithPaymentID attaches the gateway payment id of the order being processed.
func WithPaymentID(ctx context.Context, paymentID string) context.Context {
	return withValue(ctx, keyPaymentID, paymentID)
}

func PaymentIDFrom(ctx context.Context) string { return valueOf[string](ctx, keyPaymentID) }

// contextFields lists the correlation values carried by ctx.
func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var out []slog.Attr
	add := func(key string, v any, set bool) {
		if set {
			out = append(out, slog.Any(key, v))
		}
	}
	rid := RIDFrom(ctx)
	add("rid", rid, rid != "")
	order := OrderIDFrom(ctx)
	add("order_id", order, order != 0)
	pay := PaymentIDFrom(ctx)
	add("payment_id", pay, pay != "")
	user := UserIDFrom(ctx)
	add("user_id", user, user != 0)
	update := UpdateIDFrom(ctx)
	add("update_id", update, update != 0)
	chat := ChatIDFrom(ctx)
	add("chat_id", chat, chat != 0)
	handler := HandlerFrom(ctx)
	add("handler", handler, handler != "")
	return out
}

// Sanitize trims non-printable runes from s to keep logs clean.
// It removes control characters (Unicode categories Cc, Cf) except for tab and newline.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			// skip
			continue
		}
		// also skip DEL character
		if r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and limits the output length in runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	cleaned := Sanitize(s)
	// fast path
	if len([]rune(cleaned)) <= max {
		return cleaned
	}
	r := []rune(cleaned)
	return string(r[:max])
}

// BuildRID returns a correlation identifier in the format updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID shortens colon-separated RID into base36 segments for readability.
// When the input does not match the expected format it is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return ""
	}
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	compact := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return rid
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return rid
		}
		compact = append(compact, strings.ToLower(strconv.FormatInt(n, 36)))
	}
	return strings.Join(compact, ".")
}

var botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// secretKeys are attribute keys whose values may embed a Bot API URL.
var secretKeys = map[string]bool{"err": true, "error": true, "cause": true, "url": true}

// RedactSecrets masks Telegram bot tokens, e.g. inside transport errors that
// quote the request URL.
func RedactSecrets(s string) string {
	if !strings.Contains(s, "bot") {
		return s
	}
	return botTokenRe.ReplaceAllString(s, "bot<redacted>")
}
