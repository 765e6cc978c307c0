package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/core/telegram/commands"
)

var (
	ErrInvalidRoute   = errors.New("telegram: invalid registration")
	ErrDuplicateRoute = errors.New("telegram: already registered")
)

// Registry maps slash commands and callback uniques to handlers. It is
// filled while wiring and read by the routers afterwards.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Действие недоступно"})
		},
	}
}

// RegisterCommand adds a command under its slash name. Visible commands
// need a description because they end up in the menu.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil, cmd.Description == "" && !cmd.Hidden:
		return rejected("command", name, "invalid", ErrInvalidRoute)
	case !strings.HasPrefix(name, "/"):
		return rejected("command", name, "no_slash_prefix", ErrInvalidRoute)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.commands[name]; taken {
		return rejected("command", name, "duplicate", ErrDuplicateRoute)
	}
	r.commands[name] = cmd
	return nil
}

// RegisterCallback binds a callback unique to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return rejected("callback", key, "invalid", ErrInvalidRoute)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.callbacks[key]; taken {
		return rejected("callback", key, "duplicate", ErrDuplicateRoute)
	}
	r.callbacks[key] = handler
	return nil
}

func rejected(kind, name, reason string, err error) error {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, "register."+kind+".skip",
		slog.String("name", name),
		slog.String("reason", reason),
	)
	return fmt.Errorf("%w: %s %q (%s)", err, kind, name, reason)
}

// Commands returns a snapshot of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// LookupCommand resolves text such as "/orders" or "/orders@shop_bot 5" to a
// registered command. The leading slash is optional.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	first, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ := strings.Cut(first, "@")
	if name == "" {
		return "", commands.Command{}, false
	}
	if name[0] != '/' {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// MenuCommands lists the commands shown in the Telegram menu, sorted. The
// operator menu adds admin-only commands to the public ones.
func (r *Registry) MenuCommands(operator bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if cmd.Hidden || cmd.AdminOnly && !operator {
			continue
		}
		list = append(list, tele.Command{Text: name[1:], Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback uniques, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound answers buttons whose unique is not registered, such as
// keyboards left over from an older release.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the command menus: the public one by default
// and, when operatorID is set, the extended one in the operator's chat.
// Failures are logged; the bot works without a menu.
func InitBotCommands(bot *tele.Bot, reg *Registry, operatorID int64) {
	publish := func(scope string, cmds []tele.Command, opts ...any) {
		if err := bot.SetCommands(append([]any{cmds}, opts...)...); err != nil {
			logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "register.commands.set",
				slog.String("status", "failed"),
				slog.String("scope", scope),
				slog.String("err", err.Error()),
			)
		}
	}
	publish("default", reg.MenuCommands(false))
	if operatorID != 0 {
		publish("operator", reg.MenuCommands(true), tele.CommandScope{Type: tele.CommandScopeChat, ChatID: operatorID})
	}
}
