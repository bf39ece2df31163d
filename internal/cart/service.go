package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tahmidhoque/vstop-backend/internal/offers"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

// ErrCartExpired marks a basket past its retention window.
var ErrCartExpired = errors.New("cart expired")

// Querier captures the database methods required by the cart service.
type Querier interface {
	CreateCart(ctx context.Context, anonID string, expiresAt pgtype.Timestamptz) (store.Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	GetActiveCartByAnon(ctx context.Context, anonID string) (store.Cart, error)
	TouchCart(ctx context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error
	CreateCartItem(ctx context.Context, arg store.CreateCartItemParams) (store.CartItem, error)
	FindCartItemBySKU(ctx context.Context, cartID, productID, variantID pgtype.UUID) (store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, cartID, itemID pgtype.UUID, qty int32) error
	DeleteCartItem(ctx context.Context, cartID, itemID pgtype.UUID) error
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.Product, error)
	GetVariantByID(ctx context.Context, id pgtype.UUID) (store.Variant, error)
}

// Quoter prices a basket against the active offer catalogue.
type Quoter interface {
	Quote(ctx context.Context, items []offers.LineItem) (offers.BasketTotal, map[offers.SKU]offers.PriceQuote, error)
}

// Service manages guest baskets and their pricing.
type Service struct {
	Q      Querier
	Quoter Quoter
	TTL    time.Duration
	Now    func() time.Time
}

// AddItemParams identifies what to add to a basket.
type AddItemParams struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// Quote is the priced view of a basket.
type Quote struct {
	Items  []offers.LineItem                `json:"items"`
	Totals offers.BasketTotal               `json:"totals"`
	Prices map[offers.SKU]offers.PriceQuote `json:"-"`
}

// EnsureCart returns the active cart for the anon id, creating one if needed.
func (s *Service) EnsureCart(ctx context.Context, anonID string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetActiveCartByAnon(ctx, anonID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Cart{}, fmt.Errorf("find cart: %w", err)
	}
	return s.Q.CreateCart(ctx, anonID, s.expiry())
}

// Get loads a cart, rejecting expired ones.
func (s *Service) Get(ctx context.Context, cartID uuid.UUID) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetCartByID(ctx, store.FromUUID(cartID))
	if err != nil {
		return store.Cart{}, err
	}
	if cart.ExpiresAt.Valid && cart.ExpiresAt.Time.Before(s.now()) {
		return store.Cart{}, ErrCartExpired
	}
	return cart, nil
}

// AddItem appends units of a SKU to the basket, merging into an existing line
// when the same product/variant pair is already present.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, params AddItemParams) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if params.Qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", offers.ErrInvalidLineItem)
	}
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}

	product, err := s.Q.GetProductByID(ctx, store.FromUUID(params.ProductID))
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	title := product.Title
	flavour := ""
	unitPrice := product.Price
	var variantID pgtype.UUID
	if params.VariantID != nil {
		variant, err := s.Q.GetVariantByID(ctx, store.FromUUID(*params.VariantID))
		if err != nil {
			return fmt.Errorf("load variant: %w", err)
		}
		if variant.ProductID != product.ID {
			return fmt.Errorf("variant does not belong to product: %w", store.ErrNotFound)
		}
		flavour = variant.Flavour
		unitPrice = variant.Price
		variantID = variant.ID
	}

	existing, err := s.Q.FindCartItemBySKU(ctx, cart.ID, product.ID, variantID)
	switch {
	case err == nil:
		if err := s.Q.UpdateCartItemQty(ctx, cart.ID, existing.ID, existing.Qty+int32(params.Qty)); err != nil {
			return fmt.Errorf("merge line: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		_, err = s.Q.CreateCartItem(ctx, store.CreateCartItemParams{
			CartID:    cart.ID,
			ProductID: product.ID,
			VariantID: variantID,
			Title:     title,
			Flavour:   flavour,
			Qty:       int32(params.Qty),
			UnitPrice: unitPrice,
		})
		if err != nil {
			return fmt.Errorf("add line: %w", err)
		}
	default:
		return fmt.Errorf("find line: %w", err)
	}
	return s.Q.TouchCart(ctx, cart.ID, s.expiry())
}

// UpdateQty sets the quantity of a basket line. Zero or less removes it.
func (s *Service) UpdateQty(ctx context.Context, cartID, itemID uuid.UUID, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return s.Q.DeleteCartItem(ctx, cart.ID, store.FromUUID(itemID))
	}
	if err := s.Q.UpdateCartItemQty(ctx, cart.ID, store.FromUUID(itemID), int32(qty)); err != nil {
		return err
	}
	return s.Q.TouchCart(ctx, cart.ID, s.expiry())
}

// RemoveItem deletes a basket line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	return s.Q.DeleteCartItem(ctx, cart.ID, store.FromUUID(itemID))
}

// BuildQuote prices the basket contents against the active offers.
func (s *Service) BuildQuote(ctx context.Context, cartID uuid.UUID) (Quote, error) {
	if s == nil || s.Q == nil || s.Quoter == nil {
		return Quote{}, errors.New("cart service not configured")
	}
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}
	rows, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return Quote{}, fmt.Errorf("list lines: %w", err)
	}
	items := LineItemsFromRows(rows)
	totals, prices, err := s.Quoter.Quote(ctx, items)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Items: items, Totals: totals, Prices: prices}, nil
}

func (s *Service) expiry() pgtype.Timestamptz {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return pgtype.Timestamptz{Time: s.now().Add(ttl), Valid: true}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// LineItemsFromRows converts stored basket lines into pricing inputs.
func LineItemsFromRows(rows []store.CartItem) []offers.LineItem {
	items := make([]offers.LineItem, 0, len(rows))
	for _, row := range rows {
		item := offers.LineItem{
			ProductID: store.AsUUID(row.ProductID),
			Name:      row.Title,
			Flavour:   row.Flavour,
			UnitPrice: offers.Money(row.UnitPrice),
			Qty:       int(row.Qty),
		}
		if row.VariantID.Valid {
			id := store.AsUUID(row.VariantID)
			item.VariantID = &id
		}
		items = append(items, item)
	}
	return items
}
