package logger

import "strings"

// Canonical spellings of the enumerated keys. Unknown statuses pass through
// lower-cased; unknown outcomes are dropped.
var (
	levelNames = map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
	}
	statusNames = map[string]string{
		"ok":           "ok",
		"fail":         "fail",
		"failed":       "fail",
		"skip":         "skip",
		"noop":         "noop",
		"retry":        "retry",
		"rate_limited": "rate_limited",
		"rejected":     "rejected",
	}
	outcomeNames = map[string]string{
		"ok":           "ok",
		"fail":         "fail",
		"cancelled":    "cancelled",
		"rate_limited": "rate_limited",
	}
)

// canonical looks v up case-insensitively, returning the lower-cased input
// when it is not listed.
func canonical(names map[string]string, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if c, ok := names[v]; ok {
		return c, true
	}
	return v, false
}

func sanitizeEnumerations(fields map[string]any) {
	if level, _ := stringField(fields, "level"); level != "" {
		if c, ok := canonical(levelNames, level); ok {
			fields["level"] = c
		} else {
			fields["level"] = strings.ToUpper(level)
		}
	}
	if s, _ := stringField(fields, "status"); s != "" {
		fields["status"], _ = canonical(statusNames, s)
	}
	if o, _ := stringField(fields, "outcome"); o != "" {
		if c, ok := canonical(outcomeNames, o); ok {
			fields["outcome"] = c
		} else {
			delete(fields, "outcome")
		}
	}
}

// defaultKeyOrder puts identity and correlation keys first so lines of one
// update line up when read side by side.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "kind", "cb_key", "outcome",
	"order_id", "order_number", "payment_id", "from_status", "to_status",
	"remote_state", "gateway_event", "ticket_id",
	"job", "action", "endpoint", "attempt", "attempts",
	"duration_ms", "elapsed_ms", "delay_ms", "replies", "keyboard",
	"count", "expired", "cancelled", "reconciled", "archived", "sessions_deleted",
	"payload", "lang", "username",
	"method", "path", "remote_ip", "http_code",
	"mode", "listen", "public_url", "db",
	"err", "error", "err_code", "error_kind", "cause",
}
