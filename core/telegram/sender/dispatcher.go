package sender

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/core/telegram/netutil"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")
)

// Options sizes the worker pool and its retry policy. Zero values fall back
// to defaults: 256 queued jobs, 4 workers, 2s linear backoff and a 12s
// budget per job. MaxRetries counts calls after the first.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxDuration  time.Duration
}

func (o Options) withDefaults() Options {
	o.QueueSize = cmp.Or(max(o.QueueSize, 0), 256)
	o.Workers = cmp.Or(max(o.Workers, 0), 4)
	o.MaxRetries = max(o.MaxRetries, 0)
	o.RetryBackoff = cmp.Or(max(o.RetryBackoff, 0), 2*time.Second)
	o.MaxDuration = cmp.Or(max(o.MaxDuration, 0), 12*time.Second)
	return o
}

// job is one Bot API call. ctx carries the update's log correlation and
// bounds nothing but the retry wait.
type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs outbound Bot API calls on a fixed pool of workers so a
// slow or flooded chat never blocks update handling.
type Dispatcher struct {
	opts Options
	jobs chan job
	wg   sync.WaitGroup

	// mu guards closed so Enqueue never sends on a closed channel.
	mu     sync.RWMutex
	closed bool
	once   sync.Once

	errs atomic.Uint64
	gone atomic.Uint64
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go d.worker()
	}
	return d
}

// Enqueue hands run to a worker without waiting. run may be called more
// than once, so it must be safe to repeat. A full queue is reported rather
// than waited on.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil job")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// UnreachableCount returns how many of the failed jobs targeted a chat that
// blocked the bot, was deleted or never existed.
func (d *Dispatcher) UnreachableCount() uint64 {
	return d.gone.Load()
}

// Close rejects new jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	parent := j.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	calls, err := d.attempt(ctx, j)
	elapsed := slog.Duration("elapsed", time.Since(start))

	if err == nil {
		if calls > 1 {
			logger.Info(ctx, "tg.sender", "send.retry.success", j.attrs(slog.Int("attempt", calls), elapsed)...)
			return
		}
		logger.Debug(ctx, "tg.sender", "send.success", j.attrs(elapsed)...)
		return
	}

	d.errs.Add(1)
	level := slog.LevelError
	if recipientGone(err) {
		d.gone.Add(1)
		level = slog.LevelWarn
	}
	logger.Event(ctx, "tg.sender", level, "send.fail", j.attrs(
		slog.String("error", logger.RedactSecrets(err.Error())),
		slog.String("error_kind", classifyError(err)),
		slog.Int("attempts", calls),
		elapsed,
	)...)
}

// attempt calls j.run until it succeeds, fails permanently, runs out of
// retries or hits the job deadline. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil {
			return n, nil
		}
		if n == limit || !retryable(err) {
			return n, err
		}

		delay := d.backoff(n, err)
		logger.Debug(ctx, "tg.sender", "send.retry.backoff", j.attrs(slog.Int("attempt", n), slog.Duration("delay", delay))...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// backoff grows linearly with the attempt number unless Telegram asked for
// a specific pause.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return d.opts.RetryBackoff * time.Duration(attempt)
}

// attrs describes the job; correlation ids come from the job context.
func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, 2+len(extra))
	out = append(out, slog.String("action", j.action))
	if j.endpoint != "" {
		out = append(out, slog.String("endpoint", j.endpoint))
	}
	return append(out, extra...)
}

// classifyError buckets a failed call for dashboards.
func classifyError(err error) string {
	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		alert  tls.AlertError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alert):
		return "tls"
	case recipientGone(err):
		return "recipient_gone"
	}
	switch status := httpStatus(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// httpStatus extracts the Bot API status code, falling back to the
// "(code)" suffix Telegram errors carry in their text.
func httpStatus(err error) int {
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
		groupErr tele.GroupError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &floodErr):
		return http.StatusTooManyRequests
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	}
	msg := err.Error()
	open, end := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}

// recipientGone reports errors that no retry can fix: the user blocked the
// bot, deleted the account, or the chat does not exist.
func recipientGone(err error) bool {
	return errors.Is(err, tele.ErrBlockedByUser) ||
		errors.Is(err, tele.ErrUserIsDeactivated) ||
		errors.Is(err, tele.ErrChatNotFound)
}

// retryable extends the transport check with Telegram flood control.
func retryable(err error) bool {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	return netutil.ShouldRetry(err)
}
