package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tahmidhoque/vstop-backend/internal/cache"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// Querier captures the database methods required by the catalog service.
type Querier interface {
	CreateProduct(ctx context.Context, arg store.CreateProductParams) (store.Product, error)
	UpdateProduct(ctx context.Context, arg store.UpdateProductParams) (store.Product, error)
	ArchiveProduct(ctx context.Context, id pgtype.UUID) error
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	ListProducts(ctx context.Context, limit, offset int32) ([]store.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	ListVariants(ctx context.Context, productID pgtype.UUID) ([]store.Variant, error)
	GetVariantByID(ctx context.Context, id pgtype.UUID) (store.Variant, error)
	CreateVariant(ctx context.Context, arg store.CreateVariantParams) (store.Variant, error)
}

// Product is the storefront view of a product with its flavour variants.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int32     `json:"stock"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant is a flavour and strength option within a product.
type Variant struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"productId"`
	Flavour    string    `json:"flavour"`
	NicotineMg int32     `json:"nicotineMg"`
	Price      int64     `json:"price"`
	Stock      int32     `json:"stock"`
}

// ProductPage is a paginated slice of the catalogue.
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
}

// Service serves the product catalogue with a read-through cache on lists.
type Service struct {
	Q     Querier
	Cache *cache.Cache
}

// List returns a page of non-archived products.
func (s *Service) List(ctx context.Context, page, perPage int) (ProductPage, error) {
	if s == nil || s.Q == nil {
		return ProductPage{}, errors.New("catalog service not configured")
	}
	key := "list:" + strconv.Itoa(page) + ":" + strconv.Itoa(perPage)
	var cached ProductPage
	if found, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}
	rows, err := s.Q.ListProducts(ctx, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	total, err := s.Q.CountProducts(ctx)
	if err != nil {
		return ProductPage{}, fmt.Errorf("count products: %w", err)
	}
	out := ProductPage{Total: total, Products: make([]Product, 0, len(rows))}
	for _, row := range rows {
		out.Products = append(out.Products, fromProductRow(row, nil))
	}
	_ = s.Cache.SetJSON(ctx, key, out)
	return out, nil
}

// GetBySlug loads a product and its variants for the detail page.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Product, error) {
	if s == nil || s.Q == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	row, err := s.Q.GetProductBySlug(ctx, slug)
	if err != nil {
		return Product{}, err
	}
	variants, err := s.Q.ListVariants(ctx, row.ID)
	if err != nil {
		return Product{}, fmt.Errorf("list variants: %w", err)
	}
	return fromProductRow(row, variants), nil
}

// Get loads a product by id with its variants.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	if s == nil || s.Q == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	row, err := s.Q.GetProductByID(ctx, store.FromUUID(id))
	if err != nil {
		return Product{}, err
	}
	variants, err := s.Q.ListVariants(ctx, row.ID)
	if err != nil {
		return Product{}, fmt.Errorf("list variants: %w", err)
	}
	return fromProductRow(row, variants), nil
}

// Create adds a product to the catalogue.
func (s *Service) Create(ctx context.Context, arg store.CreateProductParams) (Product, error) {
	if s == nil || s.Q == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	row, err := s.Q.CreateProduct(ctx, arg)
	if err != nil {
		return Product{}, err
	}
	s.invalidateLists(ctx)
	return fromProductRow(row, nil), nil
}

// Update replaces mutable product fields.
func (s *Service) Update(ctx context.Context, arg store.UpdateProductParams) (Product, error) {
	if s == nil || s.Q == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	row, err := s.Q.UpdateProduct(ctx, arg)
	if err != nil {
		return Product{}, err
	}
	s.invalidateLists(ctx)
	return fromProductRow(row, nil), nil
}

// Archive hides a product from the storefront.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("catalog service not configured")
	}
	if err := s.Q.ArchiveProduct(ctx, store.FromUUID(id)); err != nil {
		return err
	}
	s.invalidateLists(ctx)
	return nil
}

// AddVariant attaches a flavour variant to a product.
func (s *Service) AddVariant(ctx context.Context, arg store.CreateVariantParams) (Variant, error) {
	if s == nil || s.Q == nil {
		return Variant{}, errors.New("catalog service not configured")
	}
	if _, err := s.Q.GetProductByID(ctx, arg.ProductID); err != nil {
		return Variant{}, err
	}
	row, err := s.Q.CreateVariant(ctx, arg)
	if err != nil {
		return Variant{}, err
	}
	return fromVariantRow(row), nil
}

// The list cache holds a handful of page keys. Dropping the first few pages
// covers the storefront's reachable surface without a key scan.
func (s *Service) invalidateLists(ctx context.Context) {
	keys := make([]string, 0, 10)
	for page := 1; page <= 5; page++ {
		for _, perPage := range []int{20, 50} {
			keys = append(keys, "list:"+strconv.Itoa(page)+":"+strconv.Itoa(perPage))
		}
	}
	_ = s.Cache.Invalidate(ctx, keys...)
}

func fromProductRow(row store.Product, variants []store.Variant) Product {
	p := Product{
		ID:          store.AsUUID(row.ID),
		Title:       row.Title,
		Slug:        row.Slug,
		Description: row.Description,
		Price:       row.Price,
		Stock:       row.Stock,
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, fromVariantRow(v))
	}
	return p
}

func fromVariantRow(row store.Variant) Variant {
	return Variant{
		ID:         store.AsUUID(row.ID),
		ProductID:  store.AsUUID(row.ProductID),
		Flavour:    row.Flavour,
		NicotineMg: row.NicotineMg,
		Price:      row.Price,
		Stock:      row.Stock,
	}
}
