package helpers

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "replies"

// Replies tallies the messages a handler queued for its update. Sends run
// on dispatcher workers, so the tally is taken when a reply is queued.
type Replies struct {
	mu       sync.Mutex
	count    int
	keyboard bool
}

func (r *Replies) record(markup *tele.ReplyMarkup) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.count++
	if markup != nil {
		r.keyboard = true
	}
	r.mu.Unlock()
}

// Counts returns the number of queued replies and whether any carried a keyboard.
func (r *Replies) Counts() (int, bool) {
	if r == nil {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, r.keyboard
}

// TrackReplies attaches a fresh tally to the update.
func TrackReplies(c tele.Context) *Replies {
	r := &Replies{}
	c.Set(repliesKey, r)
	return r
}

// RepliesFrom returns the tally attached by TrackReplies, or nil.
func RepliesFrom(c tele.Context) *Replies {
	r, _ := c.Get(repliesKey).(*Replies)
	return r
}
