package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/offers"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// Order lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDispatched = "dispatched"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// transitions lists the permitted next states per current state.
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusCompleted},
}

// Querier captures the database methods required by the order service.
type Querier interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]store.OrderItem, error)
	ListOrders(ctx context.Context, status string, limit, offset int32) ([]store.Order, error)
	UpdateOrderStatus(ctx context.Context, id pgtype.UUID, status string) (store.Order, error)
}

// Item is a receipt line with its effective unit price at checkout time.
type Item struct {
	ID                 string  `json:"id"`
	ProductID          string  `json:"productId"`
	VariantID          *string `json:"variantId,omitempty"`
	Title              string  `json:"title"`
	Flavour            string  `json:"flavour,omitempty"`
	Qty                int32   `json:"qty"`
	UnitPrice          int64   `json:"unitPrice"`
	EffectiveUnitPrice float64 `json:"effectiveUnitPrice"`
	OfferID            *string `json:"offerId,omitempty"`
}

// View is the customer-facing order representation.
type View struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	Currency      string                `json:"currency"`
	CustomerName  string                `json:"customerName"`
	CustomerEmail string                `json:"customerEmail"`
	Subtotal      int64                 `json:"subtotal"`
	Discount      int64                 `json:"discount"`
	Total         int64                 `json:"total"`
	AppliedOffers []offers.AppliedOffer `json:"appliedOffers,omitempty"`
	Notes         *string               `json:"notes,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	Items         []Item                `json:"items,omitempty"`
}

// Service reads and advances placed orders.
type Service struct {
	Q Querier
}

// Get loads an order with its receipt lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("order service not configured")
	}
	row, err := s.Q.GetOrderByID(ctx, store.FromUUID(id))
	if err != nil {
		return View{}, err
	}
	items, err := s.Q.ListOrderItems(ctx, row.ID)
	if err != nil {
		return View{}, fmt.Errorf("list order lines: %w", err)
	}
	return fromRow(row, items), nil
}

// List returns orders optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, page, perPage int) ([]View, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("order service not configured")
	}
	if status != "" && !knownStatus(status) {
		return nil, common.Invalid("unknown order status", map[string]string{"status": status})
	}
	rows, err := s.Q.ListOrders(ctx, status, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row, nil))
	}
	return out, nil
}

// Advance moves an order to the requested status, enforcing the lifecycle.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, next string) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("order service not configured")
	}
	if !knownStatus(next) {
		return View{}, common.Invalid("unknown order status", map[string]string{"status": next})
	}
	current, err := s.Q.GetOrderByID(ctx, store.FromUUID(id))
	if err != nil {
		return View{}, err
	}
	if !allowed(current.Status, next) {
		return View{}, common.NewAppError("INVALID_TRANSITION",
			fmt.Sprintf("cannot move order from %s to %s", current.Status, next),
			http.StatusConflict, nil)
	}
	updated, err := s.Q.UpdateOrderStatus(ctx, current.ID, next)
	if err != nil {
		return View{}, err
	}
	return fromRow(updated, nil), nil
}

// Cancel aborts an order while it has not been dispatched.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (View, error) {
	return s.Advance(ctx, id, StatusCancelled)
}

func knownStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusDispatched, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func allowed(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func fromRow(row store.Order, items []store.OrderItem) View {
	view := View{
		ID:            store.UUIDString(row.ID),
		Status:        row.Status,
		Currency:      row.Currency,
		CustomerName:  row.CustomerName,
		CustomerEmail: row.CustomerEmail,
		Subtotal:      row.Subtotal,
		Discount:      row.Discount,
		Total:         row.Total,
		Notes:         store.TextPtr(row.Notes),
	}
	if row.CreatedAt.Valid {
		view.CreatedAt = row.CreatedAt.Time
	}
	if len(row.AppliedOffers) > 0 {
		_ = json.Unmarshal(row.AppliedOffers, &view.AppliedOffers)
	}
	for _, item := range items {
		line := Item{
			ID:                 store.UUIDString(item.ID),
			ProductID:          store.UUIDString(item.ProductID),
			Title:              item.Title,
			Flavour:            item.Flavour,
			Qty:                item.Qty,
			UnitPrice:          item.UnitPrice,
			EffectiveUnitPrice: item.EffectiveUnitPrice,
		}
		if item.VariantID.Valid {
			id := store.UUIDString(item.VariantID)
			line.VariantID = &id
		}
		if item.OfferID.Valid {
			id := store.UUIDString(item.OfferID)
			line.OfferID = &id
		}
		view.Items = append(view.Items, line)
	}
	return view
}
