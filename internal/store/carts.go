package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Cart is a guest basket keyed by an anonymous client identifier.
type Cart struct {
	ID        pgtype.UUID
	AnonID    string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
	ExpiresAt pgtype.Timestamptz
}

// CartItem is a basket line. One row per SKU; the service merges on insert.
type CartItem struct {
	ID        pgtype.UUID
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	VariantID pgtype.UUID
	Title     string
	Flavour   string
	Qty       int32
	UnitPrice int64
}

const cartColumns = `id, anon_id, created_at, updated_at, expires_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.AnonID, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, mapError(err)
}

// CreateCart inserts a cart for the anon identifier.
func (s *Store) CreateCart(ctx context.Context, anonID string, expiresAt pgtype.Timestamptz) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO carts (anon_id, expires_at) VALUES ($1, $2)
		RETURNING `+cartColumns, anonID, expiresAt)
	return scanCart(row)
}

// GetCartByID loads a cart.
func (s *Store) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetActiveCartByAnon returns the newest unexpired cart for the anon id.
func (s *Store) GetActiveCartByAnon(ctx context.Context, anonID string) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE anon_id = $1 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1`, anonID)
	return scanCart(row)
}

// TouchCart extends the cart's expiry.
func (s *Store) TouchCart(ctx context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error {
	_, err := s.pool.Exec(ctx, `UPDATE carts SET updated_at = now(), expires_at = $2 WHERE id = $1`, id, expiresAt)
	return mapError(err)
}

// CreateCartItemParams carries fields for cart line creation.
type CreateCartItemParams struct {
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	VariantID pgtype.UUID
	Title     string
	Flavour   string
	Qty       int32
	UnitPrice int64
}

// CreateCartItem inserts a basket line.
func (s *Store) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	var it CartItem
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, variant_id, title, flavour, qty, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, cart_id, product_id, variant_id, title, flavour, qty, unit_price`,
		arg.CartID, arg.ProductID, arg.VariantID, arg.Title, arg.Flavour, arg.Qty, arg.UnitPrice).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Title, &it.Flavour, &it.Qty, &it.UnitPrice)
	return it, mapError(err)
}

// FindCartItemBySKU locates the basket line for a product/variant pair.
func (s *Store) FindCartItemBySKU(ctx context.Context, cartID, productID, variantID pgtype.UUID) (CartItem, error) {
	var it CartItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, cart_id, product_id, variant_id, title, flavour, qty, unit_price
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3`,
		cartID, productID, variantID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Title, &it.Flavour, &it.Qty, &it.UnitPrice)
	return it, mapError(err)
}

// UpdateCartItemQty sets the quantity of a basket line scoped to its cart.
func (s *Store) UpdateCartItemQty(ctx context.Context, cartID, itemID pgtype.UUID, qty int32) error {
	tag, err := s.pool.Exec(ctx, `UPDATE cart_items SET qty = $3 WHERE id = $1 AND cart_id = $2`, itemID, cartID, qty)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartItem removes a basket line scoped to its cart.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID pgtype.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCartItems returns basket lines in insertion order.
func (s *Store) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, cart_id, product_id, variant_id, title, flavour, qty, unit_price
		FROM cart_items WHERE cart_id = $1
		ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Title, &it.Flavour, &it.Qty, &it.UnitPrice); err != nil {
			return nil, mapError(err)
		}
		out = append(out, it)
	}
	return out, mapError(rows.Err())
}

// ClearCart removes all lines from a cart (after checkout).
func (s *Store) ClearCart(ctx context.Context, tx pgx.Tx, cartID pgtype.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return mapError(err)
}
