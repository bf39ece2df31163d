package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// Handler wires the catalog service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate

	DefaultLimit int
	MaxLimit     int
}

type productPayload struct {
	Title       string `json:"title" validate:"required,max=160"`
	Slug        string `json:"slug" validate:"required,max=160"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"gte=0"`
	Stock       int32  `json:"stock" validate:"gte=0"`
}

type variantPayload struct {
	Flavour    string `json:"flavour" validate:"required,max=120"`
	NicotineMg int32  `json:"nicotineMg" validate:"gte=0"`
	Price      int64  `json:"price" validate:"gte=0"`
	Stock      int32  `json:"stock" validate:"gte=0"`
}

// List returns a page of the storefront catalogue.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, h.defaultLimit(), h.maxLimit())
	result, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Products,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(result.Total)},
	})
}

// GetBySlug returns a product detail with variants.
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing product slug", nil)
		return
	}
	product, err := h.Svc.GetBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Create adds a product to the catalogue.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid product payload", nil)
		return
	}
	product, err := h.Svc.Create(r.Context(), store.CreateProductParams{
		Title:       payload.Title,
		Slug:        payload.Slug,
		Description: payload.Description,
		Price:       payload.Price,
		Stock:       payload.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": product})
}

// Update replaces mutable product fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid product payload", nil)
		return
	}
	product, err := h.Svc.Update(r.Context(), store.UpdateProductParams{
		ID:          store.FromUUID(id),
		Title:       payload.Title,
		Description: payload.Description,
		Price:       payload.Price,
		Stock:       payload.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Archive hides a product from the storefront.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Svc.Archive(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddVariant attaches a flavour variant to a product.
func (h *Handler) AddVariant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload variantPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid variant payload", nil)
		return
	}
	variant, err := h.Svc.AddVariant(r.Context(), store.CreateVariantParams{
		ProductID:  store.FromUUID(id),
		Flavour:    payload.Flavour,
		NicotineMg: payload.NicotineMg,
		Price:      payload.Price,
		Stock:      payload.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": variant})
}

func (h *Handler) defaultLimit() int {
	if h.DefaultLimit > 0 {
		return h.DefaultLimit
	}
	return 20
}

func (h *Handler) maxLimit() int {
	if h.MaxLimit > 0 {
		return h.MaxLimit
	}
	return 100
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, store.ErrConflict):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "slug already in use", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
