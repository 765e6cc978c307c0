package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	coreconfig "github.com/flexyframe/artbot/core/config"
)

func TestAsyncWriterFlushWritesQueuedLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 16)
	for i := 0; i < 100; i++ {
		if err := w.Write([]byte("order.create status=ok\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 100 {
		t.Fatalf("flushed %d lines, want 100", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAsyncWriterRejectsWritesAfterClose(t *testing.T) {
	w := newAsyncWriter([]io.Writer{io.Discard}, 0)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write([]byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterReportsSinkError(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingWriter{}}, 0)
	_ = w.Write([]byte("x\n"))
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("close = %v, want sink error", err)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2, 5)
	passed := 0
	for i := 0; i < 50; i++ {
		if s.Allow() {
			passed++
		}
	}
	if passed != 20 {
		t.Fatalf("passed %d of 50, want 20", passed)
	}

	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio must pass everything")
	}
}

func TestParseRatio(t *testing.T) {
	cases := map[string][2]int{
		"1/50":  {1, 50},
		" 3/4 ": {3, 4},
		"10":    {1, 10},
		"0":     {0, 0},
		"x/2":   {0, 0},
		"":      {0, 0},
	}
	for raw, want := range cases {
		n, d := parseRatio(raw)
		if n != want[0] || d != want[1] {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", raw, n, d, want[0], want[1])
		}
	}
}

func TestSelectLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
	}
	for raw, want := range cases {
		cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{Level: raw}}
		if got := selectLevel(cfg); got != want {
			t.Fatalf("selectLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestBuildOutputsOpensLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{Dir: dir}}
	writers, closers, err := buildOutputs(cfg)
	if err != nil {
		t.Fatalf("buildOutputs: %v", err)
	}
	if len(writers) != 2 || len(closers) != 1 {
		t.Fatalf("got %d writers and %d closers", len(writers), len(closers))
	}
	_ = closers[0].Close()
}
