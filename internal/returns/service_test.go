package returns

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
	orders  map[string]store.Order
	items   map[string]store.OrderItem
	returns map[string]store.ReturnRow
}

func newStub() *stubQueries {
	return &stubQueries{
		orders:  map[string]store.Order{},
		items:   map[string]store.OrderItem{},
		returns: map[string]store.ReturnRow{},
	}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	var out pgtype.UUID
	copy(out.Bytes[:], id[:])
	out.Valid = true
	return out
}

func (s *stubQueries) GetOrderByID(_ context.Context, id pgtype.UUID) (store.Order, error) {
	row, ok := s.orders[store.UUIDString(id)]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return row, nil
}

func (s *stubQueries) GetOrderItemByID(_ context.Context, id pgtype.UUID) (store.OrderItem, error) {
	row, ok := s.items[store.UUIDString(id)]
	if !ok {
		return store.OrderItem{}, store.ErrNotFound
	}
	return row, nil
}

func (s *stubQueries) CreateReturn(_ context.Context, arg store.CreateReturnParams) (store.ReturnRow, error) {
	row := store.ReturnRow{
		ID:          pgUUID(uuid.New()),
		OrderID:     arg.OrderID,
		OrderItemID: arg.OrderItemID,
		Kind:        arg.Kind,
		Reason:      arg.Reason,
		Status:      StatusOpen,
	}
	s.returns[store.UUIDString(row.ID)] = row
	return row, nil
}

func (s *stubQueries) GetReturnByID(_ context.Context, id pgtype.UUID) (store.ReturnRow, error) {
	row, ok := s.returns[store.UUIDString(id)]
	if !ok {
		return store.ReturnRow{}, store.ErrNotFound
	}
	return row, nil
}

func (s *stubQueries) ListReturns(_ context.Context, status string, _, _ int32) ([]store.ReturnRow, error) {
	var out []store.ReturnRow
	for _, row := range s.returns {
		if status == "" || row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubQueries) ResolveReturn(_ context.Context, id pgtype.UUID, status string, note pgtype.Text) (store.ReturnRow, error) {
	row, ok := s.returns[store.UUIDString(id)]
	if !ok {
		return store.ReturnRow{}, store.ErrNotFound
	}
	row.Status = status
	row.ResolutionNote = note
	s.returns[store.UUIDString(id)] = row
	return row, nil
}

func seed(q *stubQueries, orderStatus string) (uuid.UUID, uuid.UUID) {
	orderID := uuid.New()
	itemID := uuid.New()
	q.orders[orderID.String()] = store.Order{ID: pgUUID(orderID), Status: orderStatus}
	q.items[itemID.String()] = store.OrderItem{ID: pgUUID(itemID), OrderID: pgUUID(orderID)}
	return orderID, itemID
}

func TestCreateOpensReturn(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	orderID, itemID := seed(q, "completed")

	view, err := svc.Create(context.Background(), CreateParams{
		OrderID:     orderID,
		OrderItemID: itemID,
		Kind:        KindReplacement,
		Reason:      "leaking pod",
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, view.Status)
	require.Equal(t, KindReplacement, view.Kind)
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	orderID, itemID := seed(q, "completed")

	_, err := svc.Create(context.Background(), CreateParams{OrderID: orderID, OrderItemID: itemID, Kind: "store-credit", Reason: "x"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "invalid", appErr.Code)
}

func TestCreateRejectsForeignOrderItem(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	orderID, _ := seed(q, "completed")
	_, otherItem := seed(q, "completed")

	_, err := svc.Create(context.Background(), CreateParams{OrderID: orderID, OrderItemID: otherItem, Kind: KindRefund, Reason: "dead coil"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "not_found", appErr.Code)
}

func TestCreateRejectsCancelledOrder(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	orderID, itemID := seed(q, "cancelled")

	_, err := svc.Create(context.Background(), CreateParams{OrderID: orderID, OrderItemID: itemID, Kind: KindRefund, Reason: "x"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ORDER_CANCELLED", appErr.Code)
}

func TestResolveClosesOnce(t *testing.T) {
	q := newStub()
	svc := &Service{Q: q}
	orderID, itemID := seed(q, "completed")
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{OrderID: orderID, OrderItemID: itemID, Kind: KindRefund, Reason: "dead coil"})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	resolved, err := svc.Resolve(ctx, id, StatusRefunded, "refund issued")
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, resolved.Status)
	require.NotNil(t, resolved.ResolutionNote)

	_, err = svc.Resolve(ctx, id, StatusRejected, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ALREADY_RESOLVED", appErr.Code)
}
