package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/offers"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	VariantID string `json:"variantId" validate:"omitempty,uuid4"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

type updateItemPayload struct {
	Qty int `json:"qty"`
}

// Create creates or returns a guest cart identifier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	cart, err := h.Svc.EnsureCart(r.Context(), anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"cartId": store.UUIDString(cart.ID),
		"anonId": anonID,
	}})
}

// Get returns cart contents priced against the live offers.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	quote, err := h.Svc.BuildQuote(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"cartId": cartID.String(),
		"items":  itemViews(quote),
		"totals": quote.Totals,
	}})
}

// AddItem appends units of a SKU to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid item payload", nil)
			return
		}
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	params := AddItemParams{ProductID: productID, Qty: payload.Qty}
	if payload.VariantID != "" {
		variantID, err := uuid.Parse(payload.VariantID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
			return
		}
		params.VariantID = &variantID
	}
	if err := h.Svc.AddItem(r.Context(), cartID, params); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithQuote(w, r, cartID, http.StatusCreated)
}

// UpdateItem sets a line's quantity; zero removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload updateItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cartID, itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithQuote(w, r, cartID, http.StatusOK)
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithQuote(w, r, cartID, http.StatusOK)
}

func (h *Handler) respondWithQuote(w http.ResponseWriter, r *http.Request, cartID uuid.UUID, status int) {
	quote, err := h.Svc.BuildQuote(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": map[string]any{
		"cartId": cartID.String(),
		"items":  itemViews(quote),
		"totals": quote.Totals,
	}})
}

type itemView struct {
	ProductID string   `json:"productId"`
	VariantID *string  `json:"variantId,omitempty"`
	Name      string   `json:"name"`
	Flavour   string   `json:"flavour,omitempty"`
	Qty       int      `json:"qty"`
	UnitPrice int64    `json:"unitPrice"`
	Effective *float64 `json:"effectiveUnitPrice,omitempty"`
	OfferID   *string  `json:"offerId,omitempty"`
}

func itemViews(quote Quote) []itemView {
	out := make([]itemView, 0, len(quote.Items))
	for _, item := range quote.Items {
		view := itemView{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Flavour:   item.Flavour,
			Qty:       item.Qty,
			UnitPrice: int64(item.UnitPrice),
		}
		if item.VariantID != nil {
			id := item.VariantID.String()
			view.VariantID = &id
		}
		if pq, ok := quote.Prices[item.Key()]; ok {
			price := pq.UnitPrice
			view.Effective = &price
			if pq.OfferID != nil {
				id := pq.OfferID.String()
				view.OfferID = &id
			}
		}
		out = append(out, view)
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, ErrCartExpired):
		common.JSONError(w, http.StatusGone, "CART_EXPIRED", "cart has expired", nil)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart or item not found", nil)
	case errors.Is(err, offers.ErrInvalidLineItem):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
