package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

type stubQueries struct {
	orders map[string]store.Order
	items  map[string][]store.OrderItem
}

func newStub() *stubQueries {
	return &stubQueries{orders: map[string]store.Order{}, items: map[string][]store.OrderItem{}}
}

func (s *stubQueries) GetOrderByID(_ context.Context, id pgtype.UUID) (store.Order, error) {
	row, ok := s.orders[store.UUIDString(id)]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return row, nil
}

func (s *stubQueries) ListOrderItems(_ context.Context, orderID pgtype.UUID) ([]store.OrderItem, error) {
	return s.items[store.UUIDString(orderID)], nil
}

func (s *stubQueries) ListOrders(_ context.Context, status string, _, _ int32) ([]store.Order, error) {
	var out []store.Order
	for _, row := range s.orders {
		if status == "" || row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubQueries) UpdateOrderStatus(_ context.Context, id pgtype.UUID, status string) (store.Order, error) {
	row, ok := s.orders[store.UUIDString(id)]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	row.Status = status
	s.orders[store.UUIDString(id)] = row
	return row, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	var out pgtype.UUID
	copy(out.Bytes[:], id[:])
	out.Valid = true
	return out
}

func seedOrder(q *stubQueries, status string) uuid.UUID {
	id := uuid.New()
	q.orders[id.String()] = store.Order{ID: pgUUID(id), Status: status, Currency: "GBP", Total: 1500}
	return id
}

func TestAdvanceFollowsLifecycle(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	id := seedOrder(q, StatusPending)
	ctx := context.Background()

	view, err := svc.Advance(ctx, id, StatusProcessing)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, view.Status)

	view, err = svc.Advance(ctx, id, StatusDispatched)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, view.Status)

	view, err = svc.Advance(ctx, id, StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, view.Status)
}

func TestAdvanceRejectsSkippedStates(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	id := seedOrder(q, StatusPending)

	_, err := svc.Advance(context.Background(), id, StatusCompleted)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_TRANSITION", appErr.Code)
}

func TestCancelOnlyBeforeDispatch(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	ctx := context.Background()

	pending := seedOrder(q, StatusPending)
	view, err := svc.Cancel(ctx, pending)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, view.Status)

	dispatched := seedOrder(q, StatusDispatched)
	_, err = svc.Cancel(ctx, dispatched)
	require.Error(t, err)
}

func TestAdvanceUnknownStatus(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	id := seedOrder(q, StatusPending)

	_, err := svc.Advance(context.Background(), id, "shipped")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "invalid", appErr.Code)
}

func TestListFiltersByStatus(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	seedOrder(q, StatusPending)
	seedOrder(q, StatusCompleted)

	pending, err := svc.List(context.Background(), StatusPending, 1, 20)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	all, err := svc.List(context.Background(), "", 1, 20)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
