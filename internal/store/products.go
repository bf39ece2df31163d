package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Product is a catalog product row. Price is in minor units.
type Product struct {
	ID          pgtype.UUID
	Title       string
	Slug        string
	Description string
	Price       int64
	Stock       int32
	Archived    bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// Variant is a flavour/strength variant of a product.
type Variant struct {
	ID         pgtype.UUID
	ProductID  pgtype.UUID
	Flavour    string
	NicotineMg int32
	Price      int64
	Stock      int32
}

// CreateProductParams carries fields for product creation.
type CreateProductParams struct {
	Title       string
	Slug        string
	Description string
	Price       int64
	Stock       int32
}

const productColumns = `id, title, slug, description, price, stock, archived, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Price, &p.Stock, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	return p, mapError(err)
}

// CreateProduct inserts a product and returns the stored row.
func (s *Store) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (title, slug, description, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		arg.Title, arg.Slug, arg.Description, arg.Price, arg.Stock)
	return scanProduct(row)
}

// UpdateProductParams carries fields for product update.
type UpdateProductParams struct {
	ID          pgtype.UUID
	Title       string
	Description string
	Price       int64
	Stock       int32
}

// UpdateProduct updates mutable product fields.
func (s *Store) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE products
		SET title = $2, description = $3, price = $4, stock = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		arg.ID, arg.Title, arg.Description, arg.Price, arg.Stock)
	return scanProduct(row)
}

// ArchiveProduct hides a product from the storefront.
func (s *Store) ArchiveProduct(ctx context.Context, id pgtype.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET archived = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProductByID loads a product regardless of archived state.
func (s *Store) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// GetProductBySlug loads a visible product by slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1 AND NOT archived`, slug)
	return scanProduct(row)
}

// ListProducts returns visible products ordered by title.
func (s *Store) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE NOT archived
		ORDER BY title
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}

// CountProducts counts visible products.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE NOT archived`).Scan(&total)
	return total, mapError(err)
}

// ListVariants returns the variants of a product.
func (s *Store) ListVariants(ctx context.Context, productID pgtype.UUID) ([]Variant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, flavour, nicotine_mg, price, stock
		FROM product_variants WHERE product_id = $1
		ORDER BY flavour, nicotine_mg`, productID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Flavour, &v.NicotineMg, &v.Price, &v.Stock); err != nil {
			return nil, mapError(err)
		}
		out = append(out, v)
	}
	return out, mapError(rows.Err())
}

// GetVariantByID loads a single variant.
func (s *Store) GetVariantByID(ctx context.Context, id pgtype.UUID) (Variant, error) {
	var v Variant
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, flavour, nicotine_mg, price, stock
		FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Flavour, &v.NicotineMg, &v.Price, &v.Stock)
	return v, mapError(err)
}

// CreateVariantParams carries fields for variant creation.
type CreateVariantParams struct {
	ProductID  pgtype.UUID
	Flavour    string
	NicotineMg int32
	Price      int64
	Stock      int32
}

// CreateVariant inserts a product variant.
func (s *Store) CreateVariant(ctx context.Context, arg CreateVariantParams) (Variant, error) {
	var v Variant
	err := s.pool.QueryRow(ctx, `
		INSERT INTO product_variants (product_id, flavour, nicotine_mg, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, product_id, flavour, nicotine_mg, price, stock`,
		arg.ProductID, arg.Flavour, arg.NicotineMg, arg.Price, arg.Stock).
		Scan(&v.ID, &v.ProductID, &v.Flavour, &v.NicotineMg, &v.Price, &v.Stock)
	return v, mapError(err)
}
