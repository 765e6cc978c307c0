package callbacks

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt64 reads the callback payload as an id.
func PayloadInt64(c tele.Context) (int64, error) {
	p := CallbackPayload(c)
	id, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback payload %q: %w", p, err)
	}
	return id, nil
}
