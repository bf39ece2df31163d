package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OfferRow is a bundle offer as persisted. ProductIDs holds the eligible
// product set; variant distinctions are intentionally not stored.
type OfferRow struct {
	ID         pgtype.UUID
	Name       string
	Qty        int32
	Price      int64
	Active     bool
	StartsAt   pgtype.Timestamptz
	EndsAt     pgtype.Timestamptz
	ProductIDs []pgtype.UUID
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

const offerColumns = `id, name, qty, price, active, starts_at, ends_at, product_ids, created_at, updated_at`

func scanOffer(row pgx.Row) (OfferRow, error) {
	var o OfferRow
	err := row.Scan(&o.ID, &o.Name, &o.Qty, &o.Price, &o.Active, &o.StartsAt, &o.EndsAt, &o.ProductIDs, &o.CreatedAt, &o.UpdatedAt)
	return o, mapError(err)
}

// CreateOfferParams carries fields for offer creation.
type CreateOfferParams struct {
	Name       string
	Qty        int32
	Price      int64
	Active     bool
	StartsAt   pgtype.Timestamptz
	EndsAt     pgtype.Timestamptz
	ProductIDs []pgtype.UUID
}

// CreateOffer inserts a bundle offer.
func (s *Store) CreateOffer(ctx context.Context, arg CreateOfferParams) (OfferRow, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO offers (name, qty, price, active, starts_at, ends_at, product_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+offerColumns,
		arg.Name, arg.Qty, arg.Price, arg.Active, arg.StartsAt, arg.EndsAt, arg.ProductIDs)
	return scanOffer(row)
}

// UpdateOfferParams carries fields for offer update.
type UpdateOfferParams struct {
	ID         pgtype.UUID
	Name       string
	Qty        int32
	Price      int64
	Active     bool
	StartsAt   pgtype.Timestamptz
	EndsAt     pgtype.Timestamptz
	ProductIDs []pgtype.UUID
}

// UpdateOffer replaces all mutable fields of an offer.
func (s *Store) UpdateOffer(ctx context.Context, arg UpdateOfferParams) (OfferRow, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE offers
		SET name = $2, qty = $3, price = $4, active = $5, starts_at = $6, ends_at = $7,
		    product_ids = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+offerColumns,
		arg.ID, arg.Name, arg.Qty, arg.Price, arg.Active, arg.StartsAt, arg.EndsAt, arg.ProductIDs)
	return scanOffer(row)
}

// GetOfferByID loads a single offer.
func (s *Store) GetOfferByID(ctx context.Context, id pgtype.UUID) (OfferRow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	return scanOffer(row)
}

// ListOffers returns every offer, newest first, for the back office.
func (s *Store) ListOffers(ctx context.Context, limit, offset int32) ([]OfferRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+offerColumns+` FROM offers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectOffers(rows)
}

// ListActiveOffers returns offers redeemable at the given instant. The same
// window predicate is enforced again by the engine; filtering here keeps the
// payload and cache small.
func (s *Store) ListActiveOffers(ctx context.Context, now time.Time) ([]OfferRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE active
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (ends_at IS NULL OR ends_at >= $1)
		ORDER BY created_at`, now)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectOffers(rows)
}

func collectOffers(rows pgx.Rows) ([]OfferRow, error) {
	var out []OfferRow
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, mapError(rows.Err())
}
