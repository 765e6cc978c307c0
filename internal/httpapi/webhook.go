package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/internal/payment"
)

// POST /api/webhook/yookassa
//
// The caller address is checked before the body is read, so an untrusted
// origin can never mutate an order.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip, ok := s.allow.Allowed(r)
	if !ok {
		logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "webhook.origin",
			slog.String("status", "rejected"),
			slog.String("remote_ip", ip),
		)
		respondJSON(w, r, http.StatusForbidden, ErrorResponse{
			Error:   "Access denied",
			Code:    "forbidden",
			Message: "IP address not trusted",
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request_body", "invalid request body")
		return
	}
	ev, err := payment.ParseEvent(body)
	if err != nil {
		logger.LogEvent(ctx, logger.PAY, slog.LevelWarn, "webhook.parse",
			slog.String("status", "rejected"),
			slog.String("remote_ip", ip),
			slog.String("err", err.Error()),
		)
		respondError(w, r, http.StatusBadRequest, "malformed_event", "malformed event")
		return
	}

	out, err := s.orders.ApplyGatewayEvent(ctx, ev)
	if err != nil {
		if errors.Is(err, payment.ErrMalformedEvent) {
			respondError(w, r, http.StatusBadRequest, "malformed_event", "malformed event")
			return
		}
		respondInternal(w, r, "webhook.apply", err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "changed": out.Changed})
}
