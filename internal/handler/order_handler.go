package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order HTTP requests for customers and admins.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// List handles GET /api/orders requests.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	orders, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	id, err := uuidParam(r, "id", model.ErrOrderNotFound)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	order, err := h.service.GetByID(r.Context(), id, userID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PUT /api/admin/orders/{id}/status requests.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", model.ErrOrderNotFound)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	var req model.OrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// RegenerateInvoice handles POST /api/admin/orders/{id}/invoice requests.
func (h *OrderHandler) RegenerateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", model.ErrOrderNotFound)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	order, err := h.service.RegenerateInvoice(r.Context(), id)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// SalesSummary handles GET /api/admin/reports/sales requests.
func (h *OrderHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.SalesSummary(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
