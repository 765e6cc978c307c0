package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
)

type manager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	locks    *keyedMutex
	store    Persister
	now      func() time.Time

	hmu      sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// Option customises a Manager.
type Option func(*manager)

// WithPersister mirrors every change to p.
func WithPersister(p Persister) Option {
	return func(m *manager) { m.store = p }
}

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a memory-first Manager. Without a persister it is purely in-memory.
func NewManager(opts ...Option) Manager {
	m := &manager{
		sessions: make(map[int64]Session),
		locks:    newKeyedMutex(),
		now:      time.Now,
		handlers: make(map[State]tele.HandlerFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemoryManager constructs an in-memory Manager for tests and development.
func NewMemoryManager() Manager {
	return NewManager()
}

func (m *manager) Get(ctx context.Context, userID int64) Session {
	m.mu.RLock()
	sess, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return Session{State: StateIdle, Data: map[string]string{}}
	}
	return sess.clone()
}

func (m *manager) Set(ctx context.Context, userID int64, st State, data map[string]string) {
	unlock := m.locks.Lock(userID)
	defer unlock()
	m.set(ctx, userID, st, data)
}

func (m *manager) Update(ctx context.Context, userID int64, fn func(Session) (State, map[string]string)) {
	unlock := m.locks.Lock(userID)
	defer unlock()
	st, data := fn(m.Get(ctx, userID))
	if st == "" || st == StateIdle {
		m.clear(ctx, userID)
		return
	}
	m.set(ctx, userID, st, data)
}

func (m *manager) set(ctx context.Context, userID int64, st State, data map[string]string) {
	sess := Session{State: st, UpdatedAt: m.now(), Data: make(map[string]string, len(data))}
	for k, v := range data {
		sess.Data[k] = v
	}
	m.mu.Lock()
	m.sessions[userID] = sess
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	raw, err := json.Marshal(sess.Data)
	if err != nil {
		m.logPersistError(ctx, "session.save", userID, err)
		return
	}
	rec := Record{UserID: userID, State: string(st), Data: string(raw), UpdatedAt: sess.UpdatedAt}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		m.logPersistError(ctx, "session.save", userID, err)
	}
}

func (m *manager) Clear(ctx context.Context, userID int64) {
	unlock := m.locks.Lock(userID)
	defer unlock()
	m.clear(ctx, userID)
}

func (m *manager) clear(ctx context.Context, userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if err := m.store.DeleteSession(ctx, userID); err != nil {
		m.logPersistError(ctx, "session.delete", userID, err)
	}
}

// Rehydrate loads persisted sessions updated at or after since into memory.
// Sessions already in memory are kept.
func (m *manager) Rehydrate(ctx context.Context, since time.Time) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	recs, err := m.store.LoadSessions(ctx, since)
	if err != nil {
		return 0, err
	}
	loaded := 0
	m.mu.Lock()
	for _, rec := range recs {
		if _, ok := m.sessions[rec.UserID]; ok {
			continue
		}
		data := map[string]string{}
		if rec.Data != "" {
			if err := json.Unmarshal([]byte(rec.Data), &data); err != nil {
				logger.SESS.Warn("session decode failed",
					slog.String("event", "session.rehydrate"),
					slog.Int64("user_id", rec.UserID),
					slog.String("err", err.Error()),
				)
				continue
			}
		}
		m.sessions[rec.UserID] = Session{State: State(rec.State), Data: data, UpdatedAt: rec.UpdatedAt}
		loaded++
	}
	m.mu.Unlock()
	logger.SESS.Info("sessions rehydrated",
		slog.String("event", "session.rehydrate"),
		slog.Int("count", loaded),
	)
	return loaded, nil
}

// Prune drops sessions idle since before cutoff from memory and storage.
func (m *manager) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var stale []int64
	m.mu.RLock()
	for id, sess := range m.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	var dropped int64
	for _, id := range stale {
		unlock := m.locks.Lock(id)
		m.mu.Lock()
		if sess, ok := m.sessions[id]; ok && sess.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
		m.mu.Unlock()
		unlock()
	}

	if m.store == nil {
		return dropped, nil
	}
	n, err := m.store.PruneSessions(ctx, cutoff)
	if err != nil {
		return dropped, err
	}
	if n > dropped {
		dropped = n
	}
	return dropped, nil
}

// Handle registers the handler for messages received while a user is in st.
func (m *manager) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.hmu.Lock()
	m.handlers[st] = h
	m.hmu.Unlock()
}

// Dispatch runs the handler registered for the sender's current state.
// It reports false when the user has no active state with a handler.
func (m *manager) Dispatch(c tele.Context) (bool, error) {
	if c.Sender() == nil {
		return false, nil
	}
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)
	current := m.Get(ctx, userID).State

	m.hmu.RLock()
	handler, ok := m.handlers[current]
	m.hmu.RUnlock()

	logger.Debug(ctx, "tg", "fsm.dispatch",
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
		slog.Bool("handled", ok),
	)
	if !ok {
		return false, nil
	}
	return true, handler(c)
}

func (m *manager) logPersistError(ctx context.Context, event string, userID int64, err error) {
	logger.LogEvent(ctx, logger.SESS, slog.LevelWarn, event,
		slog.String("status", "failed"),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
}
