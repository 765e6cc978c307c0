package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type cbCtx struct {
	tele.Context
	cb        *tele.Callback
	store     map[string]any
	responded int
}

func (c *cbCtx) Callback() *tele.Callback                { return c.cb }
func (c *cbCtx) Get(key string) any                      { return c.store[key] }
func (c *cbCtx) Set(key string, v any)                   { c.store[key] = v }
func (c *cbCtx) Respond(...*tele.CallbackResponse) error { c.responded++; return nil }

func TestParseCallbackData(t *testing.T) {
	u, p := ParseCallbackData(&tele.Callback{Unique: "order_paid", Data: "17"})
	assert.Equal(t, "order_paid", u)
	assert.Equal(t, "17", p)

	u, p = ParseCallbackData(&tele.Callback{Data: "\fpainting|42"})
	assert.Equal(t, "painting", u)
	assert.Equal(t, "42", p)

	u, p = ParseCallbackData(&tele.Callback{Data: "my_orders"})
	assert.Equal(t, "my_orders", u)
	assert.Empty(t, p)

	u, p = ParseCallbackData(nil)
	assert.Empty(t, u+p)
}

func TestPayloadInt64(t *testing.T) {
	id, err := PayloadInt64(&cbCtx{cb: &tele.Callback{Unique: "painting", Data: "42"}})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = PayloadInt64(&cbCtx{cb: &tele.Callback{Unique: "painting", Data: "x"}})
	assert.ErrorContains(t, err, `"x"`)
}

func TestAnswerMarksCallback(t *testing.T) {
	c := &cbCtx{cb: &tele.Callback{Unique: "order_cancel"}, store: map[string]any{}}
	assert.False(t, Answered(c))
	require.NoError(t, Answer(c, "Заказ отменён"))
	assert.True(t, Answered(c))
	assert.Equal(t, 1, c.responded)

	none := &cbCtx{store: map[string]any{}}
	require.NoError(t, Answer(none, "x"))
	assert.False(t, Answered(none))
}
