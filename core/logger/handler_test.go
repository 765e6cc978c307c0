package logger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"
)

func captureLine(t *testing.T, format logFormat, emit func(log *slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	emit(slog.New(handler))
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "test.event",
			slog.String("status", "ok"),
			slog.String("cause", "unit"),
		)
	})
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	line := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "service.orders"), slog.LevelError, "order.transition",
			slog.String("status", "failed"),
			slog.Int64("order_id", 5),
			slog.String("to_status", "paid"),
			slog.String("err", "boom"),
		)
	})
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.orders"`, `"event":"order.transition"`, `"status":"fail"`, `"rid":"rid-json"`, `"order_id":5`, `"to_status":"paid"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"
	ctx := WithRID(context.Background(), rawRID)

	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "rid.test", slog.String("status", "ok"))
	})
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	rawRID := "12:34:56"
	ctx := WithRID(context.Background(), rawRID)

	line := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "rid.test", slog.String("status", "ok"))
	})
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano to be present in JSON output, got %s", line)
	}
}

func TestStructuredHandlerOrderContextAndDuration(t *testing.T) {
	ctx := WithOrderID(context.Background(), 77)

	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "sweeper"), slog.LevelInfo, "sweep.done",
			slog.Duration("duration", 1500*time.Millisecond),
			slog.Duration("gateway_duration", 20*time.Millisecond),
		)
	})
	for _, want := range []string{"order_id=77", "duration_ms=1500", "gateway_duration_ms=20"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
	if strings.Index(line, "order_id=") > strings.Index(line, "duration_ms=") {
		t.Fatalf("order_id should precede duration_ms: %s", line)
	}
}

func TestStructuredHandlerRedactsBotToken(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(context.Background(), log.With("component", "notify"), slog.LevelWarn, "notify.send",
			slog.String("status", "fail"),
			slog.String("err", `Post "https://api.telegram.org/bot123456:AAH-secret_x/sendMessage": timeout`),
		)
	})
	if strings.Contains(line, "AAH-secret_x") {
		t.Fatalf("token leaked: %s", line)
	}
	if !strings.Contains(line, "bot<redacted>/sendMessage") {
		t.Fatalf("expected redacted url, got %s", line)
	}
}

func TestRedactSecretsLeavesPlainText(t *testing.T) {
	if got := RedactSecrets("order 42 paid"); got != "order 42 paid" {
		t.Fatalf("unexpected rewrite: %s", got)
	}
}

func TestStructuredHandlerPaymentContext(t *testing.T) {
	ctx := WithPaymentID(WithOrderID(context.Background(), 12), "2c5d-pay")

	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "payment"), slog.LevelInfo, "webhook.apply",
			slog.String("status", "ok"),
			slog.String("payment_id", "explicit"),
		)
	})
	if !strings.Contains(line, "order_id=12") {
		t.Fatalf("expected order_id in %s", line)
	}
	if !strings.Contains(line, "payment_id=explicit") || strings.Contains(line, "2c5d-pay") {
		t.Fatalf("explicit attribute should win over context: %s", line)
	}
}

func TestContextValuesSkipZero(t *testing.T) {
	ctx := WithOrderID(WithRID(context.Background(), ""), 0)
	if RIDFrom(ctx) != "" || OrderIDFrom(ctx) != 0 {
		t.Fatal("zero values must not be stored")
	}
	if len(contextFields(ctx)) != 0 {
		t.Fatalf("unexpected fields: %v", contextFields(ctx))
	}
	if FromContext(ctx) != L {
		t.Fatal("expected global logger")
	}
}
