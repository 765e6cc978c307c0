package state

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

const sessionKey = "fsm_session"

// WithSession injects the sender's session into the handler context.
func WithSession(mgr Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() != nil {
				c.Set(sessionKey, mgr.Get(context.Background(), c.Sender().ID))
			}
			return next(c)
		}
	}
}

// FromContext returns the session stored by WithSession.
func FromContext(c tele.Context) (Session, bool) {
	sess, ok := c.Get(sessionKey).(Session)
	return sess, ok
}
