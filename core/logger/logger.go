package logger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flexyframe/artbot/core/buildinfo"
	coreconfig "github.com/flexyframe/artbot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdown   bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler = newRatioSampler(1, 50)
	trace        atomic.Bool

	// L is the base logger. Until InitLogger runs it points at slog.Default.
	L *slog.Logger

	DB    *slog.Logger
	MIG   *slog.Logger
	SEED  *slog.Logger
	TG    *slog.Logger
	TWire *slog.Logger

	// ORD logs order lifecycle transitions.
	ORD *slog.Logger
	// PAY logs payment gateway calls and webhook handling.
	PAY *slog.Logger
	// SWEEP logs expiry and retention sweeper runs.
	SWEEP *slog.Logger
	// NOTIFY logs notification fan-out.
	NOTIFY *slog.Logger
	// HTTP logs the public HTTP API.
	HTTP *slog.Logger
	// SESS logs session store persistence.
	SESS *slog.Logger
)

func init() {
	L = slog.Default()
	wireComponents()
}

// InitLogger installs the structured handler as the slog default and
// rebinds the component loggers. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) (err error) {
	initOnce.Do(func() {
		var outputs []io.Writer
		if outputs, logClosers, err = buildOutputs(cfg); err != nil {
			return
		}
		logWriter = newAsyncWriter(outputs, 64*1024)
		levelVar.Set(selectLevel(cfg))
		debugSampler.Set(debugRatio(cfg))
		trace.Store(cfg != nil && cfg.Logging.Trace)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   selectFormat(cfg),
			keyOrder: selectKeyOrder(cfg),
		}))
		slog.SetDefault(L)
		wireComponents()
		logStartup(cfg)
	})
	return err
}

var components = []struct {
	dst  **slog.Logger
	name string
}{
	{&DB, "db"},
	{&MIG, "db.migrate"},
	{&SEED, "db.seed"},
	{&TG, "tg"},
	{&TWire, "tg.wire"},
	{&ORD, "service.orders"},
	{&PAY, "payment"},
	{&SWEEP, "sweeper"},
	{&NOTIFY, "notify"},
	{&HTTP, "http"},
	{&SESS, "session"},
}

func wireComponents() {
	for _, c := range components {
		*c.dst = L.With("component", c.name)
	}
}

func logStartup(cfg *coreconfig.Config) {
	LogEvent(context.Background(), L, slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", profile(cfg)),
		slog.String("log_level", levelVar.Level().String()),
	)
}

// Shutdown drains the async writer and closes the log file. Later calls
// are no-ops.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdown {
		return nil
	}
	shutdown = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	for _, c := range logClosers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func profile(cfg *coreconfig.Config) string {
	if cfg == nil {
		return "prod"
	}
	return cmp.Or(strings.ToLower(strings.TrimSpace(cfg.Logging.Profile)), "prod")
}

// selectFormat honours logging.format; without one, debug and dev profiles
// get key=value lines and everything else JSON.
func selectFormat(cfg *coreconfig.Config) logFormat {
	if cfg != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
		case "kv", "text", "pretty":
			return formatKV
		case "json":
			return formatJSON
		}
	}
	switch profile(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

// selectKeyOrder reads logging.keys_order as a comma separated list.
func selectKeyOrder(cfg *coreconfig.Config) []string {
	var order []string
	if cfg != nil && cfg.Logging.KeysOrder != "default" {
		for _, k := range strings.Split(cfg.Logging.KeysOrder, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
	}
	if len(order) == 0 {
		return slices.Clone(defaultKeyOrder)
	}
	return order
}

func selectLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	raw := strings.TrimSpace(cfg.Logging.Level)
	if strings.EqualFold(raw, "warning") {
		raw = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// buildOutputs always writes to stdout, and to logging.dir/logging.file
// when a directory is configured.
func buildOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil || strings.TrimSpace(cfg.Logging.Dir) == "" {
		return writers, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	name := cmp.Or(strings.TrimSpace(cfg.Logging.File), coreconfig.DefaultLogFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return append(writers, f), []io.Closer{f}, nil
}

// LogEvent writes one line with event as its first attribute. A nil logg
// falls back to the logger stored in ctx, then to L.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		logg = L
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L tagged with component=name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" || L == nil {
		return L
	}
	return L.With("component", name)
}

// Event is LogEvent for callers that name their component instead of
// holding a logger; Debug, Info, Warn and Error fix the level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// debugRatio defaults to one debug line in fifty; an unparsable ratio
// disables sampling.
func debugRatio(cfg *coreconfig.Config) (int, int) {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return 1, 50
	}
	return parseRatio(cfg.Logging.DebugSample)
}

// ShouldSampleDebug gates per-update debug lines: always true with
// logging.trace, otherwise the configured sample.
func ShouldSampleDebug() bool {
	return trace.Load() || debugSampler.Allow()
}
