package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

const cancelButtonText = "✖️ Отмена"

// InlineBtn is a callback button: Unique routes the tap, Data is its payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

func (b InlineBtn) inline(m *tele.ReplyMarkup) tele.InlineButton {
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineButtons stacks the buttons one per row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	return InlineButtonsNPerRow(buttons, 1)
}

// InlineButtonsNPerRow lays buttons out left to right, n per row; the last
// row may be shorter.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(slices.Collect(slices.Chunk(buttons, max(n, 1)))...)
}

func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		out := make([]tele.InlineButton, len(row))
		for i, b := range row {
			out[i] = b.inline(m)
		}
		m.InlineKeyboard = append(m.InlineKeyboard, out)
	}
	return m
}

// CancelButton leaves a multi-step flow.
func CancelButton(unique string) InlineBtn {
	return InlineBtn{Text: cancelButtonText, Unique: unique}
}

func SingleCancelMarkup(unique string) *tele.ReplyMarkup {
	return InlineButtons([]InlineBtn{CancelButton(unique)})
}
