package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tahmidhoque/vstop-backend/internal/offers"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

type stubQueries struct {
	carts    map[string]store.Cart
	items    map[string][]store.CartItem
	products map[string]store.Product
	variants map[string]store.Variant
}

func newStub() *stubQueries {
	return &stubQueries{
		carts:    map[string]store.Cart{},
		items:    map[string][]store.CartItem{},
		products: map[string]store.Product{},
		variants: map[string]store.Variant{},
	}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	var out pgtype.UUID
	copy(out.Bytes[:], id[:])
	out.Valid = true
	return out
}

func (s *stubQueries) CreateCart(_ context.Context, anonID string, expiresAt pgtype.Timestamptz) (store.Cart, error) {
	cart := store.Cart{ID: pgUUID(uuid.New()), AnonID: anonID, ExpiresAt: expiresAt}
	s.carts[store.UUIDString(cart.ID)] = cart
	return cart, nil
}

func (s *stubQueries) GetCartByID(_ context.Context, id pgtype.UUID) (store.Cart, error) {
	cart, ok := s.carts[store.UUIDString(id)]
	if !ok {
		return store.Cart{}, store.ErrNotFound
	}
	return cart, nil
}

func (s *stubQueries) GetActiveCartByAnon(_ context.Context, anonID string) (store.Cart, error) {
	for _, cart := range s.carts {
		if cart.AnonID == anonID {
			return cart, nil
		}
	}
	return store.Cart{}, store.ErrNotFound
}

func (s *stubQueries) TouchCart(_ context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error {
	cart, ok := s.carts[store.UUIDString(id)]
	if !ok {
		return store.ErrNotFound
	}
	cart.ExpiresAt = expiresAt
	s.carts[store.UUIDString(id)] = cart
	return nil
}

func (s *stubQueries) CreateCartItem(_ context.Context, arg store.CreateCartItemParams) (store.CartItem, error) {
	item := store.CartItem{
		ID:        pgUUID(uuid.New()),
		CartID:    arg.CartID,
		ProductID: arg.ProductID,
		VariantID: arg.VariantID,
		Title:     arg.Title,
		Flavour:   arg.Flavour,
		Qty:       arg.Qty,
		UnitPrice: arg.UnitPrice,
	}
	key := store.UUIDString(arg.CartID)
	s.items[key] = append(s.items[key], item)
	return item, nil
}

func (s *stubQueries) FindCartItemBySKU(_ context.Context, cartID, productID, variantID pgtype.UUID) (store.CartItem, error) {
	for _, item := range s.items[store.UUIDString(cartID)] {
		if item.ProductID == productID && item.VariantID == variantID {
			return item, nil
		}
	}
	return store.CartItem{}, store.ErrNotFound
}

func (s *stubQueries) UpdateCartItemQty(_ context.Context, cartID, itemID pgtype.UUID, qty int32) error {
	key := store.UUIDString(cartID)
	for i, item := range s.items[key] {
		if item.ID == itemID {
			s.items[key][i].Qty = qty
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubQueries) DeleteCartItem(_ context.Context, cartID, itemID pgtype.UUID) error {
	key := store.UUIDString(cartID)
	for i, item := range s.items[key] {
		if item.ID == itemID {
			s.items[key] = append(s.items[key][:i], s.items[key][i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubQueries) ListCartItems(_ context.Context, cartID pgtype.UUID) ([]store.CartItem, error) {
	return s.items[store.UUIDString(cartID)], nil
}

func (s *stubQueries) GetProductByID(_ context.Context, id pgtype.UUID) (store.Product, error) {
	product, ok := s.products[store.UUIDString(id)]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return product, nil
}

func (s *stubQueries) GetVariantByID(_ context.Context, id pgtype.UUID) (store.Variant, error) {
	variant, ok := s.variants[store.UUIDString(id)]
	if !ok {
		return store.Variant{}, store.ErrNotFound
	}
	return variant, nil
}

type staticQuoter struct {
	catalog []offers.Offer
	now     time.Time
}

func (q staticQuoter) Quote(_ context.Context, items []offers.LineItem) (offers.BasketTotal, map[offers.SKU]offers.PriceQuote, error) {
	total, err := offers.Calculate(items, q.catalog, q.now)
	if err != nil {
		return offers.BasketTotal{}, nil, err
	}
	prices, err := offers.DiscountedPrices(items, q.catalog, q.now)
	if err != nil {
		return offers.BasketTotal{}, nil, err
	}
	return total, prices, nil
}

func newService(q *stubQueries, quoter Quoter) *Service {
	return &Service{
		Q:      q,
		Quoter: quoter,
		TTL:    time.Hour,
		Now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func seedProduct(q *stubQueries, price int64, title string) store.Product {
	product := store.Product{ID: pgUUID(uuid.New()), Title: title, Slug: title, Price: price}
	q.products[store.UUIDString(product.ID)] = product
	return product
}

func TestEnsureCartReusesActive(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	ctx := context.Background()

	first, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	second, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestAddItemMergesSameSKU(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	ctx := context.Background()

	product := seedProduct(q, 1000, "blue-razz")
	cart, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	cartID := store.AsUUID(cart.ID)

	require.NoError(t, svc.AddItem(ctx, cartID, AddItemParams{ProductID: store.AsUUID(product.ID), Qty: 1}))
	require.NoError(t, svc.AddItem(ctx, cartID, AddItemParams{ProductID: store.AsUUID(product.ID), Qty: 2}))

	items := q.items[store.UUIDString(cart.ID)]
	require.Len(t, items, 1)
	require.Equal(t, int32(3), items[0].Qty)
}

func TestAddItemVariantKeepsSeparateLine(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	ctx := context.Background()

	product := seedProduct(q, 1000, "blue-razz")
	variant := store.Variant{ID: pgUUID(uuid.New()), ProductID: product.ID, Flavour: "Ice", Price: 1100}
	q.variants[store.UUIDString(variant.ID)] = variant

	cart, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	cartID := store.AsUUID(cart.ID)
	variantID := store.AsUUID(variant.ID)

	require.NoError(t, svc.AddItem(ctx, cartID, AddItemParams{ProductID: store.AsUUID(product.ID), Qty: 1}))
	require.NoError(t, svc.AddItem(ctx, cartID, AddItemParams{ProductID: store.AsUUID(product.ID), VariantID: &variantID, Qty: 1}))

	items := q.items[store.UUIDString(cart.ID)]
	require.Len(t, items, 2)
}

func TestAddItemRejectsNonPositiveQty(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	cart, err := svc.EnsureCart(context.Background(), "anon-1")
	require.NoError(t, err)

	err = svc.AddItem(context.Background(), store.AsUUID(cart.ID), AddItemParams{ProductID: uuid.New(), Qty: 0})
	require.ErrorIs(t, err, offers.ErrInvalidLineItem)
}

func TestGetRejectsExpiredCart(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	ctx := context.Background()

	cart, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	stale := cart
	stale.ExpiresAt = pgtype.Timestamptz{Time: svc.now().Add(-time.Minute), Valid: true}
	q.carts[store.UUIDString(cart.ID)] = stale

	_, err = svc.Get(ctx, store.AsUUID(cart.ID))
	require.ErrorIs(t, err, ErrCartExpired)
}

func TestUpdateQtyZeroRemovesLine(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	ctx := context.Background()

	product := seedProduct(q, 1000, "blue-razz")
	cart, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	cartID := store.AsUUID(cart.ID)

	require.NoError(t, svc.AddItem(ctx, cartID, AddItemParams{ProductID: store.AsUUID(product.ID), Qty: 2}))
	itemID := store.AsUUID(q.items[store.UUIDString(cart.ID)][0].ID)

	require.NoError(t, svc.UpdateQty(ctx, cartID, itemID, 0))
	require.Empty(t, q.items[store.UUIDString(cart.ID)])
}

func TestUpdateQtyScopedToOwningCart(t *testing.T) {
	q := newStub()
	svc := newService(q, staticQuoter{})
	ctx := context.Background()

	product := seedProduct(q, 1000, "blue-razz")
	mine, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	other, err := svc.EnsureCart(ctx, "anon-2")
	require.NoError(t, err)

	require.NoError(t, svc.AddItem(ctx, store.AsUUID(other.ID), AddItemParams{ProductID: store.AsUUID(product.ID), Qty: 2}))
	foreignItem := store.AsUUID(q.items[store.UUIDString(other.ID)][0].ID)

	err = svc.UpdateQty(ctx, store.AsUUID(mine.ID), foreignItem, 5)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, int32(2), q.items[store.UUIDString(other.ID)][0].Qty, "line in the other cart must be untouched")
}

func TestBuildQuoteAppliesOffers(t *testing.T) {
	q := newStub()
	product := seedProduct(q, 1000, "blue-razz")
	offer := offers.Offer{
		ID:         uuid.New(),
		Name:       "2 for £15",
		Qty:        2,
		Price:      1500,
		Active:     true,
		ProductIDs: []uuid.UUID{store.AsUUID(product.ID)},
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(q, staticQuoter{catalog: []offers.Offer{offer}, now: now})
	ctx := context.Background()

	cart, err := svc.EnsureCart(ctx, "anon-1")
	require.NoError(t, err)
	cartID := store.AsUUID(cart.ID)
	require.NoError(t, svc.AddItem(ctx, cartID, AddItemParams{ProductID: store.AsUUID(product.ID), Qty: 2}))

	quote, err := svc.BuildQuote(ctx, cartID)
	require.NoError(t, err)
	require.Equal(t, offers.Money(2000), quote.Totals.Subtotal)
	require.Equal(t, offers.Money(1500), quote.Totals.Total)
	require.Len(t, quote.Totals.Applied, 1)

	pq, ok := quote.Prices[offers.SKU{ProductID: store.AsUUID(product.ID)}]
	require.True(t, ok)
	require.InDelta(t, 750, pq.UnitPrice, 0.001)
}
