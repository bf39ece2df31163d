package offers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// Handler wires the offers service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	PerPage  int
}

type offerPayload struct {
	Name       string     `json:"name" validate:"required,max=120"`
	Qty        int        `json:"qty" validate:"required,gte=2"`
	Price      int64      `json:"price" validate:"gte=0"`
	Active     bool       `json:"active"`
	StartsAt   *time.Time `json:"startsAt"`
	EndsAt     *time.Time `json:"endsAt"`
	ProductIDs []string   `json:"productIds" validate:"dive,uuid4"`
}

type previewPayload struct {
	At    *time.Time `json:"at"`
	Items []struct {
		ProductID string `json:"productId" validate:"required,uuid4"`
		VariantID string `json:"variantId" validate:"omitempty,uuid4"`
		Name      string `json:"name"`
		Flavour   string `json:"flavour"`
		UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
		Qty       int    `json:"qty" validate:"required,gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

// ListActive returns the offers currently available to shoppers.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offers service not configured", nil)
		return
	}
	active, err := h.Svc.Active(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toViews(active)})
}

// List returns the full catalogue including inactive offers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offers service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, h.perPage(), 100)
	all, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": toViews(all),
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(all)},
	})
}

// Get returns a single offer by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	offer, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(offer)})
}

// Create adds a new bundle offer.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	params, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}
	offer, err := h.Svc.Create(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toView(offer)})
}

// Update replaces an existing offer.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	params, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}
	offer, err := h.Svc.Update(r.Context(), id, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(offer)})
}

// Preview prices an ad-hoc basket against the active catalogue without
// touching any cart. Useful for checking an offer configuration.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid preview payload", validationDetails(err))
			return
		}
	}
	items := make([]LineItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
			return
		}
		line := LineItem{
			ProductID: productID,
			Name:      it.Name,
			Flavour:   it.Flavour,
			UnitPrice: Money(it.UnitPrice),
			Qty:       it.Qty,
		}
		if it.VariantID != "" {
			variantID, err := uuid.Parse(it.VariantID)
			if err != nil {
				common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
				return
			}
			line.VariantID = &variantID
		}
		items = append(items, line)
	}
	var (
		total  BasketTotal
		quotes map[SKU]PriceQuote
		err    error
	)
	if payload.At != nil {
		total, quotes, err = h.Svc.QuoteAt(r.Context(), items, *payload.At)
	} else {
		total, quotes, err = h.Svc.Quote(r.Context(), items)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"totals": total,
		"prices": quotesView(quotes),
	}})
}

func (h *Handler) decodeUpsert(w http.ResponseWriter, r *http.Request) (UpsertParams, bool) {
	var payload offerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return UpsertParams{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid offer payload", validationDetails(err))
			return UpsertParams{}, false
		}
	}
	params := UpsertParams{
		Name:     payload.Name,
		Qty:      payload.Qty,
		Price:    Money(payload.Price),
		Active:   payload.Active,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
	}
	for _, raw := range payload.ProductIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
			return UpsertParams{}, false
		}
		params.ProductIDs = append(params.ProductIDs, id)
	}
	return params, true
}

func (h *Handler) perPage() int {
	if h.PerPage > 0 {
		return h.PerPage
	}
	return 20
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
	case errors.Is(err, ErrInvalidOffer), errors.Is(err, ErrInvalidLineItem):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}

type offerView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Qty        int        `json:"qty"`
	Price      int64      `json:"price"`
	Active     bool       `json:"active"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
	EndsAt     *time.Time `json:"endsAt,omitempty"`
	ProductIDs []string   `json:"productIds,omitempty"`
}

func toView(o Offer) offerView {
	view := offerView{
		ID:       o.ID.String(),
		Name:     o.Name,
		Qty:      o.Qty,
		Price:    int64(o.Price),
		Active:   o.Active,
		StartsAt: o.StartsAt,
		EndsAt:   o.EndsAt,
	}
	for _, id := range o.ProductIDs {
		view.ProductIDs = append(view.ProductIDs, id.String())
	}
	return view
}

func toViews(offers []Offer) []offerView {
	out := make([]offerView, 0, len(offers))
	for _, o := range offers {
		out = append(out, toView(o))
	}
	return out
}

func quotesView(quotes map[SKU]PriceQuote) map[string]PriceQuote {
	out := make(map[string]PriceQuote, len(quotes))
	for sku, quote := range quotes {
		out[sku.String()] = quote
	}
	return out
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
