package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/flexyframe/artbot/core/logger"
)

// BotStatus is the body of GET /api/bot-status.
type BotStatus struct {
	Online            bool   `json:"online"`
	BotUsername       string `json:"bot_username,omitempty"`
	MiniAppURL        string `json:"miniapp_url,omitempty"`
	Version           string `json:"version,omitempty"`
	PaymentGateway    bool   `json:"payment_gateway"`
	NotifyFailed      uint64 `json:"notify_failed"`
	NotifyUnreachable uint64 `json:"notify_unreachable"`
}

// GET /api/paintings
func (s *Server) listPaintings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, s.catalog.All())
}

// GET /api/bot-status
func (s *Server) botStatus(w http.ResponseWriter, r *http.Request) {
	st := BotStatus{
		Online:         s.opts.BotOnline(),
		Version:        s.opts.Version,
		PaymentGateway: s.orders.GatewayConfigured(),
	}
	st.NotifyFailed, st.NotifyUnreachable = s.opts.Notifications()
	if name := strings.TrimPrefix(s.opts.BotUsername, "@"); name != "" {
		st.BotUsername = "@" + name
	}
	if site := strings.TrimRight(s.opts.SiteURL, "/"); site != "" {
		st.MiniAppURL = site + "/index.html"
	}
	respondJSON(w, r, http.StatusOK, st)
}

// GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, "health.db",
				slog.String("status", "failed"),
				slog.String("err", err.Error()),
			)
			respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
