package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{
		{Text: "a", Unique: "cat", Data: "a"},
		{Text: "b", Unique: "cat", Data: "b"},
		{Text: "c", Unique: "cat", Data: "c"},
	}

	m := InlineButtonsNPerRow(btns, 2)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Len(t, m.InlineKeyboard[1], 1)
	assert.Equal(t, "cat", m.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "c", m.InlineKeyboard[1][0].Data)

	assert.Len(t, InlineButtonsNPerRow(btns, 1).InlineKeyboard, 3)
}

func TestSingleCancelMarkup(t *testing.T) {
	m := SingleCancelMarkup("flow_cancel")
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 1)
	assert.Equal(t, cancelButtonText, m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "flow_cancel", m.InlineKeyboard[0][0].Unique)
}
