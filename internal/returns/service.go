package returns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/obs"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// Return request kinds and lifecycle states.
const (
	KindReplacement = "replacement"
	KindRefund      = "refund"

	StatusOpen     = "open"
	StatusReplaced = "replaced"
	StatusRefunded = "refunded"
	StatusRejected = "rejected"
)

// Querier captures the database methods required by the returns service.
type Querier interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	GetOrderItemByID(ctx context.Context, id pgtype.UUID) (store.OrderItem, error)
	CreateReturn(ctx context.Context, arg store.CreateReturnParams) (store.ReturnRow, error)
	GetReturnByID(ctx context.Context, id pgtype.UUID) (store.ReturnRow, error)
	ListReturns(ctx context.Context, status string, limit, offset int32) ([]store.ReturnRow, error)
	ResolveReturn(ctx context.Context, id pgtype.UUID, status string, note pgtype.Text) (store.ReturnRow, error)
}

// View is the API representation of a return request.
type View struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"orderId"`
	OrderItemID    string     `json:"orderItemId"`
	Kind           string     `json:"kind"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	ResolutionNote *string    `json:"resolutionNote,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// Service handles faulty-item return requests.
type Service struct {
	Q Querier
}

// CreateParams describes a new return request.
type CreateParams struct {
	OrderID     uuid.UUID
	OrderItemID uuid.UUID
	Kind        string
	Reason      string
}

// Create opens a return for an order line.
func (s *Service) Create(ctx context.Context, params CreateParams) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("returns service not configured")
	}
	if params.Kind != KindReplacement && params.Kind != KindRefund {
		return View{}, common.Invalid("kind must be replacement or refund", map[string]string{"kind": params.Kind})
	}
	if params.Reason == "" {
		return View{}, common.Invalid("reason is required", nil)
	}
	order, err := s.Q.GetOrderByID(ctx, store.FromUUID(params.OrderID))
	if err != nil {
		return View{}, err
	}
	if order.Status == "cancelled" {
		return View{}, common.NewAppError("ORDER_CANCELLED", "cannot return items from a cancelled order", http.StatusConflict, nil)
	}
	item, err := s.Q.GetOrderItemByID(ctx, store.FromUUID(params.OrderItemID))
	if err != nil {
		return View{}, err
	}
	if item.OrderID != order.ID {
		return View{}, common.NotFound("order item does not belong to order", nil)
	}
	row, err := s.Q.CreateReturn(ctx, store.CreateReturnParams{
		OrderID:     order.ID,
		OrderItemID: item.ID,
		Kind:        params.Kind,
		Reason:      params.Reason,
	})
	if err != nil {
		return View{}, fmt.Errorf("create return: %w", err)
	}
	if obs.ReturnsTotal != nil {
		obs.ReturnsTotal.WithLabelValues(params.Kind).Inc()
	}
	return fromRow(row), nil
}

// Get loads a return request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("returns service not configured")
	}
	row, err := s.Q.GetReturnByID(ctx, store.FromUUID(id))
	if err != nil {
		return View{}, err
	}
	return fromRow(row), nil
}

// List returns requests optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, page, perPage int) ([]View, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("returns service not configured")
	}
	rows, err := s.Q.ListReturns(ctx, status, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Resolve closes an open return as replaced, refunded, or rejected.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, status, note string) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("returns service not configured")
	}
	if status != StatusReplaced && status != StatusRefunded && status != StatusRejected {
		return View{}, common.Invalid("resolution must be replaced, refunded, or rejected", map[string]string{"status": status})
	}
	current, err := s.Q.GetReturnByID(ctx, store.FromUUID(id))
	if err != nil {
		return View{}, err
	}
	if current.Status != StatusOpen {
		return View{}, common.NewAppError("ALREADY_RESOLVED", "return has already been resolved", http.StatusConflict, nil)
	}
	row, err := s.Q.ResolveReturn(ctx, current.ID, status, store.NullableText(optional(note)))
	if err != nil {
		return View{}, err
	}
	return fromRow(row), nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func fromRow(row store.ReturnRow) View {
	view := View{
		ID:             store.UUIDString(row.ID),
		OrderID:        store.UUIDString(row.OrderID),
		OrderItemID:    store.UUIDString(row.OrderItemID),
		Kind:           row.Kind,
		Reason:         row.Reason,
		Status:         row.Status,
		ResolutionNote: store.TextPtr(row.ResolutionNote),
	}
	if row.CreatedAt.Valid {
		view.CreatedAt = row.CreatedAt.Time
	}
	if row.ResolvedAt.Valid {
		t := row.ResolvedAt.Time
		view.ResolvedAt = &t
	}
	return view
}
