package offers

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
	activeRows  []store.OfferRow
	activeCalls int
	created     []store.CreateOfferParams
}

func (s *stubQueries) CreateOffer(_ context.Context, arg store.CreateOfferParams) (store.OfferRow, error) {
	s.created = append(s.created, arg)
	return store.OfferRow{
		ID:         pgUUID(uuid.New()),
		Name:       arg.Name,
		Qty:        arg.Qty,
		Price:      arg.Price,
		Active:     arg.Active,
		StartsAt:   arg.StartsAt,
		EndsAt:     arg.EndsAt,
		ProductIDs: arg.ProductIDs,
	}, nil
}

func (s *stubQueries) UpdateOffer(_ context.Context, arg store.UpdateOfferParams) (store.OfferRow, error) {
	return store.OfferRow{ID: arg.ID, Name: arg.Name, Qty: arg.Qty, Price: arg.Price, Active: arg.Active}, nil
}

func (s *stubQueries) GetOfferByID(_ context.Context, id pgtype.UUID) (store.OfferRow, error) {
	for _, row := range s.activeRows {
		if row.ID == id {
			return row, nil
		}
	}
	return store.OfferRow{}, store.ErrNotFound
}

func (s *stubQueries) ListOffers(_ context.Context, _, _ int32) ([]store.OfferRow, error) {
	return s.activeRows, nil
}

func (s *stubQueries) ListActiveOffers(_ context.Context, now time.Time) ([]store.OfferRow, error) {
	s.activeCalls++
	out := make([]store.OfferRow, 0, len(s.activeRows))
	for _, row := range s.activeRows {
		if !row.Active {
			continue
		}
		if row.StartsAt.Valid && row.StartsAt.Time.After(now) {
			continue
		}
		if row.EndsAt.Valid && row.EndsAt.Time.Before(now) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	var out pgtype.UUID
	copy(out.Bytes[:], id[:])
	out.Valid = true
	return out
}

func newServiceWithCache(t *testing.T, q *stubQueries) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		Q:     q,
		Cache: cache.New(client, "offers", time.Minute),
		Now:   func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestActiveServesFromCacheOnSecondCall(t *testing.T) {
	q := &stubQueries{activeRows: []store.OfferRow{{
		ID:     pgUUID(uuid.New()),
		Name:   "2 for £15",
		Qty:    2,
		Price:  1500,
		Active: true,
	}}}
	svc := newServiceWithCache(t, q)
	ctx := context.Background()

	first, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, q.activeCalls)

	second, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, q.activeCalls, "second read should hit the cache")
	require.Equal(t, first[0].Name, second[0].Name)
}

func TestCreateRejectsSingleUnitBundle(t *testing.T) {
	svc := newServiceWithCache(t, &stubQueries{})

	_, err := svc.Create(context.Background(), UpsertParams{Name: "solo", Qty: 1, Price: 500})
	require.ErrorIs(t, err, ErrInvalidOffer)
}

func TestCreateInvalidatesActiveCache(t *testing.T) {
	q := &stubQueries{}
	svc := newServiceWithCache(t, q)
	ctx := context.Background()

	_, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, q.activeCalls)

	productID := uuid.New()
	_, err = svc.Create(ctx, UpsertParams{Name: "2 for £15", Qty: 2, Price: 1500, Active: true, ProductIDs: []uuid.UUID{productID}})
	require.NoError(t, err)
	require.Len(t, q.created, 1)

	_, err = svc.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, q.activeCalls, "mutation should bust the cache")
}

func TestQuoteAppliesActiveOffers(t *testing.T) {
	productID := uuid.New()
	offerID := uuid.New()
	q := &stubQueries{activeRows: []store.OfferRow{{
		ID:         pgUUID(offerID),
		Name:       "2 for £15",
		Qty:        2,
		Price:      1500,
		Active:     true,
		ProductIDs: []pgtype.UUID{pgUUID(productID)},
	}}}
	svc := newServiceWithCache(t, q)

	items := []LineItem{{ProductID: productID, Name: "Blue Razz", UnitPrice: 1000, Qty: 2}}
	total, quotes, err := svc.Quote(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, Money(2000), total.Subtotal)
	require.Equal(t, Money(500), total.Discount)
	require.Equal(t, Money(1500), total.Total)
	require.Len(t, total.Applied, 1)
	require.Equal(t, offerID, total.Applied[0].OfferID)

	quote, ok := quotes[SKU{ProductID: productID}]
	require.True(t, ok)
	require.InDelta(t, 750, quote.UnitPrice, 0.001)
}

func TestQuoteAtBypassesCachedCatalogue(t *testing.T) {
	productID := uuid.New()
	tomorrow := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	q := &stubQueries{activeRows: []store.OfferRow{{
		ID:         pgUUID(uuid.New()),
		Name:       "2 for £15",
		Qty:        2,
		Price:      1500,
		Active:     true,
		StartsAt:   pgtype.Timestamptz{Time: tomorrow, Valid: true},
		ProductIDs: []pgtype.UUID{pgUUID(productID)},
	}}}
	svc := newServiceWithCache(t, q)
	ctx := context.Background()

	// Warm the shared cache with today's view, where the offer is not live yet.
	warm, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Empty(t, warm)

	items := []LineItem{{ProductID: productID, Name: "Blue Razz", UnitPrice: 1000, Qty: 2}}
	future, _, err := svc.QuoteAt(ctx, items, tomorrow)
	require.NoError(t, err)
	require.Equal(t, Money(500), future.Discount, "offer live at the requested instant must apply")

	today, _, err := svc.Quote(ctx, items)
	require.NoError(t, err)
	require.Equal(t, Money(0), today.Discount, "today's quote keeps the cached view")
}

func TestFromRowCarriesWindow(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	row := store.OfferRow{
		ID:       pgUUID(uuid.New()),
		Name:     "summer",
		Qty:      3,
		Price:    2000,
		Active:   true,
		StartsAt: pgtype.Timestamptz{Time: start, Valid: true},
		EndsAt:   pgtype.Timestamptz{Time: end, Valid: true},
	}
	offer := FromRow(row)
	require.NotNil(t, offer.StartsAt)
	require.NotNil(t, offer.EndsAt)
	require.True(t, offer.ActiveAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.False(t, offer.ActiveAt(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
}
