package state

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores the conversation state and its small data payload for a user.
type Session struct {
	State     State
	Data      map[string]string
	UpdatedAt time.Time
}

// Value returns a data entry, or "" when absent.
func (s Session) Value(key string) string {
	return s.Data[key]
}

// Active reports whether the session is in a non-idle state.
func (s Session) Active() bool {
	return s.State != "" && s.State != StateIdle
}

func (s Session) clone() Session {
	out := Session{State: s.State, UpdatedAt: s.UpdatedAt, Data: make(map[string]string, len(s.Data))}
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}

// Record is the persisted form of a session.
type Record struct {
	UserID    int64
	State     string
	Data      string
	UpdatedAt time.Time
}

// Persister mirrors sessions to durable storage.
type Persister interface {
	SaveSession(ctx context.Context, rec Record) error
	DeleteSession(ctx context.Context, userID int64) error
	LoadSessions(ctx context.Context, since time.Time) ([]Record, error)
	PruneSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Manager orchestrates user sessions and FSM dispatch.
type Manager interface {
	// Get returns the user's session, or an idle one.
	Get(ctx context.Context, userID int64) Session
	// Set replaces the user's session with state and data.
	Set(ctx context.Context, userID int64, st State, data map[string]string)
	// Clear removes the user's session from memory and storage.
	Clear(ctx context.Context, userID int64)
	// Update runs fn on the current session under the user's lock and stores the result.
	Update(ctx context.Context, userID int64, fn func(Session) (State, map[string]string))

	Rehydrate(ctx context.Context, since time.Time) (int, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	Handle(st State, h tele.HandlerFunc)
	Dispatch(c tele.Context) (bool, error)
}
