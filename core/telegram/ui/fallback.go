package ui

import tele "gopkg.in/telebot.v4"

// Fallbacks answers updates no route claims, and those the middleware
// chain turns away.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	// RejectAdmin answers a non-operator who tried an operator command.
	RejectAdmin(c tele.Context) error
	// RateLimited answers an update dropped by the per-user throttle.
	RateLimited(c tele.Context) error
}
