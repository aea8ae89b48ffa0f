package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SajivJess/Wally/internal/service"
	"github.com/SajivJess/Wally/pkg/httputil"
	"github.com/SajivJess/Wally/pkg/validator"
)

const itemRemovedMessage = "Item removed from cart"

// CartHandler handles HTTP requests for cart and checkout endpoints.
type CartHandler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(carts *service.CartService, checkout *service.CheckoutService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		checkout: checkout,
		logger:   logger,
	}
}

// GetCart handles GET /api/cart/{user_id}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/{user_id}/items. The user in the path owns
// the item; a user_id in the body is ignored.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	input := service.AddItemInput{Quantity: 1}
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item, err := h.carts.AddItem(r.Context(), chi.URLParam(r, "user_id"), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

// UpdateItemQuantity handles PUT /api/cart/{user_id}/items/{item_id}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateQuantityInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item, err := h.carts.UpdateItemQuantity(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "item_id"), *input.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if item == nil {
		httputil.WriteMessage(w, itemRemovedMessage)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/cart/{user_id}/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveItem(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "item_id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, itemRemovedMessage)
}

// ClearCart handles DELETE /api/cart/{user_id}/clear
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	removed, err := h.carts.ClearCart(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, fmt.Sprintf("Removed %d items from cart", removed))
}

// Checkout handles POST /api/cart/{user_id}/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Checkout(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}
