package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "inline_query", UpdateKind(tele.Update{Query: &tele.Query{}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

func TestRateLimitPerUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	anna := &senderCtx{user: &tele.User{ID: 1}, store: map[string]any{}}
	boris := &senderCtx{user: &tele.User{ID: 2}, store: map[string]any{}}

	require.NoError(t, h(anna))
	require.NoError(t, h(anna))
	require.NoError(t, h(boris))
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, limited)

	now = now.Add(time.Second)
	require.NoError(t, h(anna))
	assert.Equal(t, 3, passed)
}

func TestRateLimitRejectedTapsDoNotExtendWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mw := RateLimitMiddleware(RateLimitOptions{Interval: time.Second, Now: func() time.Time { return now }})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })
	c := &senderCtx{user: &tele.User{ID: 1}, store: map[string]any{}}

	require.NoError(t, h(c))
	now = now.Add(600 * time.Millisecond)
	require.NoError(t, h(c))
	now = now.Add(400 * time.Millisecond)
	require.NoError(t, h(c))
	assert.Equal(t, 2, passed)
}

func TestThrottlePrunesIdleUsers(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th := &throttle{interval: time.Second, last: map[int64]time.Time{}, prunedAt: start}

	assert.True(t, th.allow(1, start))
	assert.True(t, th.allow(2, start.Add(pruneEvery)))
	assert.NotContains(t, th.last, int64(1))
	assert.Contains(t, th.last, int64(2))
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("nil order") })
	err := h(&senderCtx{user: &tele.User{ID: 1}, store: map[string]any{}})
	assert.ErrorIs(t, err, ErrPanic)
}
