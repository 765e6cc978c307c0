package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/flexyframe/artbot/core/telegram"
	"github.com/flexyframe/artbot/core/telegram/commands"
)

type fakeCtx struct {
	tele.Context

	user  *tele.User
	text  string
	store map[string]any
}

func newCtx(userID int64, text string) *fakeCtx {
	return &fakeCtx{user: &tele.User{ID: userID}, text: text, store: map[string]any{}}
}

func (c *fakeCtx) Update() tele.Update                     { return tele.Update{ID: 7} }
func (c *fakeCtx) Sender() *tele.User                      { return c.user }
func (c *fakeCtx) Chat() *tele.Chat                        { return &tele.Chat{ID: c.user.ID} }
func (c *fakeCtx) Text() string                            { return c.text }
func (c *fakeCtx) Callback() *tele.Callback                { return nil }
func (c *fakeCtx) Get(key string) any                      { return c.store[key] }
func (c *fakeCtx) Set(key string, v any)                   { c.store[key] = v }
func (c *fakeCtx) Message() *tele.Message                  { return &tele.Message{Text: c.text} }
func (c *fakeCtx) Args() []string                          { return nil }
func (c *fakeCtx) Respond(...*tele.CallbackResponse) error { return nil }

type fakeSessions struct {
	handled bool
	err     error
	calls   int
}

func (s *fakeSessions) Dispatch(tele.Context) (bool, error) {
	s.calls++
	return s.handled, s.err
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "gateway timeout" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "GATEWAY_TIMEOUT", errorCode(fmt.Errorf("create: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", errorCode(fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", &plainErr{}))))
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "admin_orders", handlerName("/Admin_Orders"))
	assert.Equal(t, "order_paid", handlerName("order paid"))
	assert.Equal(t, "unknown", handlerName("  "))
}

func textRoute(t *testing.T, sessions SessionDispatcher, reg *tg.Registry, opts TextOptions) tele.HandlerFunc {
	t.Helper()
	routes := TextRoutes(sessions, reg, opts)
	require.Len(t, routes, 2)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)
	return routes[0].Handler
}

func TestTextRoutesPreferSession(t *testing.T) {
	sessions := &fakeSessions{handled: true}
	unknown := 0
	h := textRoute(t, sessions, nil, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})

	require.NoError(t, h(newCtx(1, "Казань")))
	assert.Equal(t, 1, sessions.calls)
	assert.Zero(t, unknown)
}

func TestTextRoutesSessionErrorStops(t *testing.T) {
	boom := errors.New("boom")
	sessions := &fakeSessions{err: boom}
	h := textRoute(t, sessions, nil, TextOptions{UnknownText: func(tele.Context) error {
		t.Fatal("fallback must not run after a session error")
		return nil
	}})

	assert.ErrorIs(t, h(newCtx(1, "Казань")), boom)
}

func TestTextRoutesTypedCommandSkipsOperatorOnly(t *testing.T) {
	reg := tg.NewRegistry()
	var ran []string
	reg.RegisterCommand("/orders", commands.Command{Description: "Мои заказы", Handler: func(tele.Context) error {
		ran = append(ran, "orders")
		return nil
	}})
	reg.RegisterCommand("/sweep", commands.Command{Description: "Обслуживание", AdminOnly: true, Handler: func(tele.Context) error {
		ran = append(ran, "sweep")
		return nil
	}})
	h := textRoute(t, &fakeSessions{}, reg, TextOptions{UnknownText: func(tele.Context) error {
		ran = append(ran, "unknown")
		return nil
	}})

	require.NoError(t, h(newCtx(1, "orders")))
	require.NoError(t, h(newCtx(1, "sweep")))
	assert.Equal(t, []string{"orders", "unknown"}, ran)
}

func TestCommandRoutesGuardOperatorCommands(t *testing.T) {
	reg := tg.NewRegistry()
	swept := 0
	reg.RegisterCommand("/sweep", commands.Command{Description: "Обслуживание", AdminOnly: true, Handler: func(tele.Context) error {
		swept++
		return nil
	}})
	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       900,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	require.Len(t, routes, 1)
	assert.Equal(t, "/sweep", routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(newCtx(100, "/sweep")))
	require.NoError(t, routes[0].Handler(newCtx(900, "/sweep")))
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, swept)
}
