package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type senderCtx struct {
	tele.Context
	user  *tele.User
	store map[string]any
}

func (c *senderCtx) Update() tele.Update   { return tele.Update{} }
func (c *senderCtx) Sender() *tele.User    { return c.user }
func (c *senderCtx) Chat() *tele.Chat      { return nil }
func (c *senderCtx) Get(key string) any    { return c.store[key] }
func (c *senderCtx) Set(key string, v any) { c.store[key] = v }

func runAdminOnly(adminID int64, user *tele.User) (passed, rejected bool) {
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID: adminID,
		OnReject: func(tele.Context) error {
			rejected = true
			return nil
		},
	})
	h := mw(func(tele.Context) error {
		passed = true
		return nil
	})
	_ = h(&senderCtx{user: user, store: map[string]any{}})
	return passed, rejected
}

func TestAdminOnlyLetsOperatorThrough(t *testing.T) {
	passed, rejected := runAdminOnly(42, &tele.User{ID: 42})
	assert.True(t, passed)
	assert.False(t, rejected)
}

func TestAdminOnlyRejectsOthers(t *testing.T) {
	passed, rejected := runAdminOnly(42, &tele.User{ID: 7})
	assert.False(t, passed)
	assert.True(t, rejected)
}

func TestAdminOnlyRejectsEveryoneWithoutOperator(t *testing.T) {
	passed, rejected := runAdminOnly(0, &tele.User{ID: 7})
	assert.False(t, passed)
	assert.True(t, rejected)

	passed, _ = runAdminOnly(42, nil)
	assert.False(t, passed)
}
