package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler and menu metadata.
type Command struct {
	Handler tele.HandlerFunc
	// Description is the menu text; required unless Hidden.
	Description string
	// AdminOnly commands run for the operator only and appear in the operator's menu.
	AdminOnly bool
	// Hidden commands work but are left out of every menu.
	Hidden bool
}
