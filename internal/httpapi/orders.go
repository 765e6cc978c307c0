package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/service"
)

// OrderDTO is the public view of an order.
type OrderDTO struct {
	ID            int64  `json:"id"`
	OrderNumber   int64  `json:"order_number"`
	UserID        int64  `json:"user_id"`
	PaintingID    int64  `json:"painting_id"`
	PaintingTitle string `json:"painting_title"`
	Price         int64  `json:"price"`
	Status        string `json:"status"`
	PaymentID     string `json:"payment_id,omitempty"`
	Token         string `json:"token"`
	CreatedAt     string `json:"created_at"`
}

func toOrderDTO(o domain.Order) OrderDTO {
	return OrderDTO{
		ID:            o.ID,
		OrderNumber:   o.DisplayNumber(),
		UserID:        o.UserID,
		PaintingID:    o.PaintingID,
		PaintingTitle: o.PaintingTitle,
		Price:         o.Price,
		Status:        string(o.Status),
		PaymentID:     o.PaymentID,
		Token:         o.Token,
		CreatedAt:     o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateOrderRequest is the body of POST /api/order/create. The price is
// required for compatibility with the storefront, but the catalog price wins.
type CreateOrderRequest struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	UserName      string `json:"user_name"`
	PaintingID    int64  `json:"painting_id" validate:"required,gt=0"`
	PaintingTitle string `json:"painting_title" validate:"required"`
	Price         int64  `json:"price" validate:"required,gt=0"`
}

// CreateOrderResponse answers a successful create.
type CreateOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     int64  `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	Token       string `json:"token"`
	PaymentURL  string `json:"payment_url,omitempty"`
	Manual      bool   `json:"manual_payment"`
}

// GET /api/order/{id}
func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderDTO(o))
}

// GET /api/order/{id}/status
func (s *Server) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": string(o.Status)})
}

func (s *Server) loadOrder(w http.ResponseWriter, r *http.Request) (domain.Order, bool) {
	id, ok := orderIDParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_order_id", "invalid order id")
		return domain.Order{}, false
	}
	o, err := s.orders.Get(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		respondError(w, r, http.StatusNotFound, "not_found", "Order not found")
		return domain.Order{}, false
	}
	if err != nil {
		respondInternal(w, r, "order.get", err)
		return domain.Order{}, false
	}
	return o, true
}

// POST /api/order/create
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request_body", "invalid request body")
		return
	}
	req.PaintingTitle = strings.TrimSpace(req.PaintingTitle)
	if err := s.validate.Struct(req); err != nil {
		respondValidation(w, r, err)
		return
	}

	co, err := s.orders.Place(r.Context(), service.PlaceRequest{
		UserID:     req.UserID,
		UserName:   req.UserName,
		PaintingID: req.PaintingID,
	})
	if errors.Is(err, service.ErrUnknownPainting) {
		respondError(w, r, http.StatusNotFound, "painting_not_found", "Painting not found")
		return
	}
	if err != nil {
		respondInternal(w, r, "order.create", err)
		return
	}
	if req.Price != co.Order.Price {
		logger.LogEvent(logger.WithOrderID(r.Context(), co.Order.ID), logger.HTTP, slog.LevelInfo, "order.price_override",
			slog.String("status", "ok"),
			slog.Int64("price", co.Order.Price),
			slog.Int64("client_price", req.Price),
		)
	}
	respondJSON(w, r, http.StatusOK, CreateOrderResponse{
		Success:     true,
		OrderID:     co.Order.ID,
		OrderNumber: co.Order.DisplayNumber(),
		Token:       co.Order.Token,
		PaymentURL:  co.RedirectURL,
		Manual:      co.Manual,
	})
}

// POST /api/order/{id}/paid
func (s *Server) markPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_order_id", "invalid order id")
		return
	}
	changed, err := s.orders.ConfirmPaid(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		respondError(w, r, http.StatusNotFound, "not_found", "Order not found")
		return
	}
	if err != nil {
		respondInternal(w, r, "order.paid", err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "changed": changed})
}
