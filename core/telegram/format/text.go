// Package format renders user-visible text for HTML parse mode.
package format

import (
	"fmt"
	"html"
)

// HTML escapes user-supplied text for ParseMode HTML.
func HTML(text string) string {
	return html.EscapeString(text)
}

// Rub renders a whole-rouble amount, e.g. "4 200 ₽".
func Rub(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[i])
	}
	s := string(out) + " ₽"
	if neg {
		s = "-" + s
	}
	return s
}
