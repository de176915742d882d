package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout session HTTP requests. All routes require a signed-in user.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Create handles POST /api/checkout requests.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	session, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// Get handles GET /api/checkout/{id} requests.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetByID(r.Context(), id, userID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Pay handles PUT /api/checkout/{id}/pay requests.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req model.PaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	session, err := h.service.RecordPayment(r.Context(), id, userID, &req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Finalize handles POST /api/checkout/{id}/finalize requests.
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	order, err := h.service.Finalize(r.Context(), id, userID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *CheckoutHandler) target(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return "", uuid.Nil, false
	}
	id, err := uuidParam(r, "id", model.ErrSessionNotFound)
	if err != nil {
		respondError(w, r, err, h.logger)
		return "", uuid.Nil, false
	}
	return userID, id, true
}
