package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is a placed order with its pricing snapshot. AppliedOffers holds the
// engine's applied-offer entries as JSON.
type Order struct {
	ID            pgtype.UUID
	CartID        pgtype.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Status        string
	Currency      string
	Subtotal      int64
	Discount      int64
	Total         int64
	AppliedOffers []byte
	Notes         pgtype.Text
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// OrderItem is a line of a placed order. EffectiveUnitPrice is the per-unit
// discounted price at checkout time, used on receipts.
type OrderItem struct {
	ID                 pgtype.UUID
	OrderID            pgtype.UUID
	ProductID          pgtype.UUID
	VariantID          pgtype.UUID
	Title              string
	Flavour            string
	Qty                int32
	UnitPrice          int64
	EffectiveUnitPrice float64
	OfferID            pgtype.UUID
}

const orderColumns = `id, cart_id, customer_name, customer_email, customer_phone, status, currency,
	subtotal, discount, total, applied_offers, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CartID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Status,
		&o.Currency, &o.Subtotal, &o.Discount, &o.Total, &o.AppliedOffers, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, mapError(err)
}

// CreateOrderParams carries fields for order creation.
type CreateOrderParams struct {
	CartID        pgtype.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Status        string
	Currency      string
	Subtotal      int64
	Discount      int64
	Total         int64
	AppliedOffers []byte
	Notes         pgtype.Text
}

// CreateOrder inserts an order inside the supplied transaction.
func (s *Store) CreateOrder(ctx context.Context, tx pgx.Tx, arg CreateOrderParams) (Order, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (cart_id, customer_name, customer_email, customer_phone, status, currency,
			subtotal, discount, total, applied_offers, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		arg.CartID, arg.CustomerName, arg.CustomerEmail, arg.CustomerPhone, arg.Status, arg.Currency,
		arg.Subtotal, arg.Discount, arg.Total, arg.AppliedOffers, arg.Notes)
	return scanOrder(row)
}

// CreateOrderItemParams carries fields for order line creation.
type CreateOrderItemParams struct {
	OrderID            pgtype.UUID
	ProductID          pgtype.UUID
	VariantID          pgtype.UUID
	Title              string
	Flavour            string
	Qty                int32
	UnitPrice          int64
	EffectiveUnitPrice float64
	OfferID            pgtype.UUID
}

// CreateOrderItem inserts an order line inside the supplied transaction.
func (s *Store) CreateOrderItem(ctx context.Context, tx pgx.Tx, arg CreateOrderItemParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, variant_id, title, flavour, qty, unit_price,
			effective_unit_price, offer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		arg.OrderID, arg.ProductID, arg.VariantID, arg.Title, arg.Flavour, arg.Qty, arg.UnitPrice,
		arg.EffectiveUnitPrice, arg.OfferID)
	return mapError(err)
}

// GetOrderByID loads an order.
func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrderItems returns the lines of an order.
func (s *Store) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, title, flavour, qty, unit_price, effective_unit_price, offer_id
		FROM order_items WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Title, &it.Flavour,
			&it.Qty, &it.UnitPrice, &it.EffectiveUnitPrice, &it.OfferID); err != nil {
			return nil, mapError(err)
		}
		out = append(out, it)
	}
	return out, mapError(rows.Err())
}

// GetOrderItemByID loads a single order line.
func (s *Store) GetOrderItemByID(ctx context.Context, id pgtype.UUID) (OrderItem, error) {
	var it OrderItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, product_id, variant_id, title, flavour, qty, unit_price, effective_unit_price, offer_id
		FROM order_items WHERE id = $1`, id).
		Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Title, &it.Flavour,
			&it.Qty, &it.UnitPrice, &it.EffectiveUnitPrice, &it.OfferID)
	return it, mapError(err)
}

// ListOrders returns orders newest first, optionally filtered by status.
func (s *Store) ListOrders(ctx context.Context, status string, limit, offset int32) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, mapError(rows.Err())
}

// UpdateOrderStatus transitions an order's status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id pgtype.UUID, status string) (Order, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, status)
	return scanOrder(row)
}

// SalesDay is a daily aggregate of completed sales.
type SalesDay struct {
	Day      time.Time
	Orders   int64
	Revenue  int64
	Discount int64
}

// SalesDailyRange aggregates non-cancelled orders per day over [from, to].
func (s *Store) SalesDailyRange(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day,
		       count(*) AS orders,
		       coalesce(sum(total), 0) AS revenue,
		       coalesce(sum(discount), 0) AS discount
		FROM orders
		WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2
		GROUP BY 1
		ORDER BY 1`, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []SalesDay
	for rows.Next() {
		var d SalesDay
		if err := rows.Scan(&d.Day, &d.Orders, &d.Revenue, &d.Discount); err != nil {
			return nil, mapError(err)
		}
		out = append(out, d)
	}
	return out, mapError(rows.Err())
}

// TopProduct is a sales-volume aggregate per product.
type TopProduct struct {
	ProductID pgtype.UUID
	Title     string
	Units     int64
	Revenue   int64
}

// TopProducts ranks products by units sold in non-cancelled orders.
func (s *Store) TopProducts(ctx context.Context, limit int32) ([]TopProduct, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT oi.product_id, min(oi.title), sum(oi.qty) AS units,
		       sum(round(oi.effective_unit_price * oi.qty)) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status <> 'cancelled'
		GROUP BY oi.product_id
		ORDER BY units DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.Title, &p.Units, &p.Revenue); err != nil {
			return nil, mapError(err)
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}
