package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/orders", commands.Command{Handler: noop, Description: "Мои заказы"}))
	require.NoError(t, reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Hidden: true}))
	require.NoError(t, reg.RegisterCommand("/sweep", commands.Command{Handler: noop, Description: "Обслуживание", AdminOnly: true}))
	return reg
}

func TestRegisterCommandValidation(t *testing.T) {
	reg := testRegistry(t)
	assert.ErrorIs(t, reg.RegisterCommand("/help", commands.Command{Handler: noop}), ErrInvalidRoute)
	assert.ErrorIs(t, reg.RegisterCommand("help", commands.Command{Handler: noop, Description: "x"}), ErrInvalidRoute)
	assert.ErrorIs(t, reg.RegisterCommand("/orders", commands.Command{Handler: noop, Description: "дубль"}), ErrDuplicateRoute)

	cmds := reg.Commands()
	assert.Len(t, cmds, 3)
	assert.Contains(t, cmds, "/cancel", "hidden commands need no description")
	assert.Equal(t, "Мои заказы", cmds["/orders"].Description)
}

func TestMenuCommandsPerAudience(t *testing.T) {
	reg := testRegistry(t)

	assert.Equal(t, []tele.Command{{Text: "orders", Description: "Мои заказы"}}, reg.MenuCommands(false))
	assert.Equal(t, []tele.Command{
		{Text: "orders", Description: "Мои заказы"},
		{Text: "sweep", Description: "Обслуживание"},
	}, reg.MenuCommands(true))
}

func TestLookupCommandStripsMentionAndArgs(t *testing.T) {
	reg := testRegistry(t)

	key, cmd, ok := reg.LookupCommand("/orders@flexyframe_bot 5")
	require.True(t, ok)
	assert.Equal(t, "/orders", key)
	assert.NotNil(t, cmd.Handler)

	_, _, ok = reg.LookupCommand("cancel")
	assert.True(t, ok)

	_, _, ok = reg.LookupCommand("   ")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("/unknown")
	assert.False(t, ok)
}

func TestRegisterCallbackRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("order_paid", noop))
	assert.ErrorIs(t, reg.RegisterCallback("order_paid", noop), ErrDuplicateRoute)
	assert.ErrorIs(t, reg.RegisterCallback("", noop), ErrInvalidRoute)

	h, ok := reg.GetCallback("order_paid")
	assert.True(t, ok)
	assert.NotNil(t, h)
	assert.Equal(t, []string{"order_paid"}, reg.ListCallbacks())
}

func TestCommandsReturnsSnapshot(t *testing.T) {
	reg := testRegistry(t)
	cmds := reg.Commands()
	delete(cmds, "/orders")

	_, _, ok := reg.LookupCommand("/orders")
	assert.True(t, ok)
}
