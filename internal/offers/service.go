package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tahmidhoque/vstop-backend/internal/cache"
	"github.com/tahmidhoque/vstop-backend/internal/obs"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

const activeCacheKey = "active"

// Querier captures the database methods required by the offers service.
type Querier interface {
	CreateOffer(ctx context.Context, arg store.CreateOfferParams) (store.OfferRow, error)
	UpdateOffer(ctx context.Context, arg store.UpdateOfferParams) (store.OfferRow, error)
	GetOfferByID(ctx context.Context, id pgtype.UUID) (store.OfferRow, error)
	ListOffers(ctx context.Context, limit, offset int32) ([]store.OfferRow, error)
	ListActiveOffers(ctx context.Context, now time.Time) ([]store.OfferRow, error)
}

// Service manages the bundle offer catalogue and prices baskets against it.
type Service struct {
	Q     Querier
	Cache *cache.Cache
	Now   func() time.Time
}

// UpsertParams carries validated fields for offer creation and update.
type UpsertParams struct {
	Name       string
	Qty        int
	Price      Money
	Active     bool
	StartsAt   *time.Time
	EndsAt     *time.Time
	ProductIDs []uuid.UUID
}

// Active returns the offers currently in their activation window, cache first.
func (s *Service) Active(ctx context.Context) ([]Offer, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("offers service not configured")
	}
	var cached []Offer
	if found, err := s.Cache.GetJSON(ctx, activeCacheKey, &cached); err == nil && found {
		return cached, nil
	}
	rows, err := s.Q.ListActiveOffers(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	out := make([]Offer, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	_ = s.Cache.SetJSON(ctx, activeCacheKey, out)
	return out, nil
}

// List returns the full offer catalogue for administration.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Offer, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("offers service not configured")
	}
	rows, err := s.Q.ListOffers(ctx, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	out := make([]Offer, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	return out, nil
}

// Get loads a single offer.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Offer, error) {
	if s == nil || s.Q == nil {
		return Offer{}, errors.New("offers service not configured")
	}
	row, err := s.Q.GetOfferByID(ctx, store.FromUUID(id))
	if err != nil {
		return Offer{}, err
	}
	return FromRow(row), nil
}

// Create stores a new offer and invalidates the active cache.
func (s *Service) Create(ctx context.Context, params UpsertParams) (Offer, error) {
	if s == nil || s.Q == nil {
		return Offer{}, errors.New("offers service not configured")
	}
	if params.Qty < 2 {
		return Offer{}, fmt.Errorf("bundle size must be at least 2: %w", ErrInvalidOffer)
	}
	if params.Price < 0 {
		return Offer{}, fmt.Errorf("bundle price must not be negative: %w", ErrInvalidOffer)
	}
	row, err := s.Q.CreateOffer(ctx, store.CreateOfferParams{
		Name:       params.Name,
		Qty:        int32(params.Qty),
		Price:      int64(params.Price),
		Active:     params.Active,
		StartsAt:   nullableTime(params.StartsAt),
		EndsAt:     nullableTime(params.EndsAt),
		ProductIDs: toPgUUIDs(params.ProductIDs),
	})
	if err != nil {
		return Offer{}, fmt.Errorf("create offer: %w", err)
	}
	_ = s.Cache.Invalidate(ctx, activeCacheKey)
	return FromRow(row), nil
}

// Update replaces an offer's fields and invalidates the active cache.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpsertParams) (Offer, error) {
	if s == nil || s.Q == nil {
		return Offer{}, errors.New("offers service not configured")
	}
	if params.Qty < 2 {
		return Offer{}, fmt.Errorf("bundle size must be at least 2: %w", ErrInvalidOffer)
	}
	if params.Price < 0 {
		return Offer{}, fmt.Errorf("bundle price must not be negative: %w", ErrInvalidOffer)
	}
	row, err := s.Q.UpdateOffer(ctx, store.UpdateOfferParams{
		ID:         store.FromUUID(id),
		Name:       params.Name,
		Qty:        int32(params.Qty),
		Price:      int64(params.Price),
		Active:     params.Active,
		StartsAt:   nullableTime(params.StartsAt),
		EndsAt:     nullableTime(params.EndsAt),
		ProductIDs: toPgUUIDs(params.ProductIDs),
	})
	if err != nil {
		return Offer{}, err
	}
	_ = s.Cache.Invalidate(ctx, activeCacheKey)
	return FromRow(row), nil
}

// Quote prices a basket against the active catalogue. It returns the basket
// total alongside per-unit display prices for each distinct line.
func (s *Service) Quote(ctx context.Context, items []LineItem) (BasketTotal, map[SKU]PriceQuote, error) {
	if s == nil || s.Q == nil {
		return BasketTotal{}, nil, errors.New("offers service not configured")
	}
	catalog, err := s.Active(ctx)
	if err != nil {
		return BasketTotal{}, nil, err
	}
	return s.price(items, catalog, s.now())
}

// QuoteAt prices a basket as if evaluated at the given instant. The catalogue
// is read straight from the database: the shared cache holds the list filtered
// at wall-clock time, so it cannot answer for any other instant.
func (s *Service) QuoteAt(ctx context.Context, items []LineItem, at time.Time) (BasketTotal, map[SKU]PriceQuote, error) {
	if s == nil || s.Q == nil {
		return BasketTotal{}, nil, errors.New("offers service not configured")
	}
	rows, err := s.Q.ListActiveOffers(ctx, at)
	if err != nil {
		return BasketTotal{}, nil, fmt.Errorf("list active offers: %w", err)
	}
	catalog := make([]Offer, 0, len(rows))
	for _, row := range rows {
		catalog = append(catalog, FromRow(row))
	}
	return s.price(items, catalog, at)
}

func (s *Service) price(items []LineItem, catalog []Offer, now time.Time) (BasketTotal, map[SKU]PriceQuote, error) {
	start := time.Now()
	total, err := Calculate(items, catalog, now)
	if err != nil {
		return BasketTotal{}, nil, err
	}
	quotes, err := DiscountedPrices(items, catalog, now)
	if err != nil {
		return BasketTotal{}, nil, err
	}
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	if obs.OffersAppliedTotal != nil {
		for _, applied := range total.Applied {
			obs.OffersAppliedTotal.WithLabelValues(applied.Name).Inc()
		}
	}
	return total, quotes, nil
}

// InvalidateCache drops the cached active offer list.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.Cache.Invalidate(ctx, activeCacheKey)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// FromRow converts a stored offer into its pricing representation.
func FromRow(row store.OfferRow) Offer {
	o := Offer{
		ID:     store.AsUUID(row.ID),
		Name:   row.Name,
		Qty:    int(row.Qty),
		Price:  Money(row.Price),
		Active: row.Active,
	}
	if row.StartsAt.Valid {
		t := row.StartsAt.Time
		o.StartsAt = &t
	}
	if row.EndsAt.Valid {
		t := row.EndsAt.Time
		o.EndsAt = &t
	}
	for _, id := range row.ProductIDs {
		o.ProductIDs = append(o.ProductIDs, store.AsUUID(id))
	}
	return o
}

func nullableTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func toPgUUIDs(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.FromUUID(id))
	}
	return out
}
