package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/flexyframe/artbot/core/logger"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.LogEvent(r.Context(), logger.HTTP, slog.LevelWarn, "http.encode",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{Error: message, Code: code})
}

// respondInternal logs err and answers with a generic 500; storage errors never reach clients.
func respondInternal(w http.ResponseWriter, r *http.Request, event string, err error) {
	logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, event,
		slog.String("status", "failed"),
		slog.String("err", err.Error()),
	)
	respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
}

func respondValidation(w http.ResponseWriter, r *http.Request, err error) {
	fields := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
	}
	respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
		Error:  "Missing required fields",
		Code:   "validation_failed",
		Fields: fields,
	})
}

func orderIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
