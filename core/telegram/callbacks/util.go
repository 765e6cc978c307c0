package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits a callback into unique and payload. Telebot fills
// Unique for data of the form "\f<unique>|<payload>"; anything else is
// split here the same way.
func ParseCallbackData(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// CallbackPayload is the payload of the current callback, if any.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}

const answeredKey = "cb_answered"

// Answer shows text as a toast (or just stops the spinner when empty) and
// marks the callback answered so the router does not answer it again.
func Answer(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	c.Set(answeredKey, true)
	if text == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

func Answered(c tele.Context) bool {
	answered, _ := c.Get(answeredKey).(bool)
	return answered
}
