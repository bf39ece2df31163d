package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tahmidhoque/vstop-backend/internal/cache"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

type stubQueries struct {
	products  []store.Product
	variants  map[string][]store.Variant
	listCalls int
}

func (s *stubQueries) CreateProduct(_ context.Context, arg store.CreateProductParams) (store.Product, error) {
	row := store.Product{ID: pgUUID(uuid.New()), Title: arg.Title, Slug: arg.Slug, Description: arg.Description, Price: arg.Price, Stock: arg.Stock}
	s.products = append(s.products, row)
	return row, nil
}

func (s *stubQueries) UpdateProduct(_ context.Context, arg store.UpdateProductParams) (store.Product, error) {
	for i, p := range s.products {
		if p.ID == arg.ID {
			s.products[i].Title = arg.Title
			s.products[i].Price = arg.Price
			return s.products[i], nil
		}
	}
	return store.Product{}, store.ErrNotFound
}

func (s *stubQueries) ArchiveProduct(_ context.Context, id pgtype.UUID) error {
	for i, p := range s.products {
		if p.ID == id {
			s.products[i].Archived = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubQueries) GetProductByID(_ context.Context, id pgtype.UUID) (store.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return store.Product{}, store.ErrNotFound
}

func (s *stubQueries) GetProductBySlug(_ context.Context, slug string) (store.Product, error) {
	for _, p := range s.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return store.Product{}, store.ErrNotFound
}

func (s *stubQueries) ListProducts(_ context.Context, _, _ int32) ([]store.Product, error) {
	s.listCalls++
	return s.products, nil
}

func (s *stubQueries) CountProducts(_ context.Context) (int64, error) {
	return int64(len(s.products)), nil
}

func (s *stubQueries) ListVariants(_ context.Context, productID pgtype.UUID) ([]store.Variant, error) {
	return s.variants[store.UUIDString(productID)], nil
}

func (s *stubQueries) GetVariantByID(_ context.Context, id pgtype.UUID) (store.Variant, error) {
	for _, list := range s.variants {
		for _, v := range list {
			if v.ID == id {
				return v, nil
			}
		}
	}
	return store.Variant{}, store.ErrNotFound
}

func (s *stubQueries) CreateVariant(_ context.Context, arg store.CreateVariantParams) (store.Variant, error) {
	row := store.Variant{ID: pgUUID(uuid.New()), ProductID: arg.ProductID, Flavour: arg.Flavour, NicotineMg: arg.NicotineMg, Price: arg.Price, Stock: arg.Stock}
	if s.variants == nil {
		s.variants = map[string][]store.Variant{}
	}
	key := store.UUIDString(arg.ProductID)
	s.variants[key] = append(s.variants[key], row)
	return row, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	var out pgtype.UUID
	copy(out.Bytes[:], id[:])
	out.Valid = true
	return out
}

func newService(t *testing.T, q *stubQueries) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{Q: q, Cache: cache.New(client, "catalog", time.Minute)}
}

func TestListCachesPages(t *testing.T) {
	q := &stubQueries{products: []store.Product{{ID: pgUUID(uuid.New()), Title: "Ice Mint", Slug: "ice-mint", Price: 599}}}
	svc := newService(t, q)
	ctx := context.Background()

	first, err := svc.List(ctx, 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Total)
	require.Equal(t, 1, q.listCalls)

	second, err := svc.List(ctx, 1, 20)
	require.NoError(t, err)
	require.Equal(t, first.Products[0].Title, second.Products[0].Title)
	require.Equal(t, 1, q.listCalls, "second page read should hit the cache")
}

func TestCreateBustsListCache(t *testing.T) {
	q := &stubQueries{}
	svc := newService(t, q)
	ctx := context.Background()

	_, err := svc.List(ctx, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, q.listCalls)

	_, err = svc.Create(ctx, store.CreateProductParams{Title: "Blue Razz", Slug: "blue-razz", Price: 599})
	require.NoError(t, err)

	page, err := svc.List(ctx, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 2, q.listCalls)
	require.Len(t, page.Products, 1)
}

func TestGetBySlugIncludesVariants(t *testing.T) {
	q := &stubQueries{}
	svc := newService(t, q)
	ctx := context.Background()

	product, err := svc.Create(ctx, store.CreateProductParams{Title: "Blue Razz", Slug: "blue-razz", Price: 599})
	require.NoError(t, err)

	_, err = svc.AddVariant(ctx, store.CreateVariantParams{
		ProductID: store.FromUUID(product.ID),
		Flavour:   "Blue Razz Ice",
		Price:     649,
	})
	require.NoError(t, err)

	got, err := svc.GetBySlug(ctx, "blue-razz")
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	require.Equal(t, "Blue Razz Ice", got.Variants[0].Flavour)
}

func TestGetBySlugMissing(t *testing.T) {
	svc := newService(t, &stubQueries{})
	_, err := svc.GetBySlug(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}
