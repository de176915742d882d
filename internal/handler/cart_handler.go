package handler

import (
	"net/http"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// CartHandler handles cart HTTP requests for guests and users.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// owner resolves the cart owner: the signed-in user, then the X-Guest-ID header, then a guestId
// supplied in the body or query string.
func owner(r *http.Request, fallbackGuestID string) (model.Owner, error) {
	id := middleware.IdentityFrom(r.Context())
	if id.GuestID == "" {
		id.GuestID = strings.TrimSpace(fallbackGuestID)
	}
	return id.CartOwner()
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r, r.URL.Query().Get("guestId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.GetCart(r.Context(), o)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddLine handles POST /api/cart requests.
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(o model.Owner, req *model.CartLineRequest) (*model.Cart, error) {
		return h.service.AddLine(r.Context(), o, req)
	})
}

// SetQuantity handles PUT /api/cart requests.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(o model.Owner, req *model.CartLineRequest) (*model.Cart, error) {
		return h.service.SetLineQuantity(r.Context(), o, req)
	})
}

// RemoveLine handles DELETE /api/cart requests.
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(o model.Owner, req *model.CartLineRequest) (*model.Cart, error) {
		return h.service.RemoveLine(r.Context(), o, req.Key())
	})
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, apply func(model.Owner, *model.CartLineRequest) (*model.Cart, error)) {
	var req model.CartLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "productId is required", h.logger)
		return
	}

	o, err := owner(r, req.GuestID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	cart, err := apply(o, &req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// Merge handles POST /api/cart/merge requests. The caller must be signed in.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	var req model.MergeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	guestID := strings.TrimSpace(req.GuestID)
	if guestID == "" {
		guestID = middleware.IdentityFrom(r.Context()).GuestID
	}

	cart, err := h.service.Merge(r.Context(), guestID, userID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
