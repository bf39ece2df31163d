package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/tahmidhoque/vstop-backend/internal/cart"
	"github.com/tahmidhoque/vstop-backend/internal/common"
	"github.com/tahmidhoque/vstop-backend/internal/obs"
	"github.com/tahmidhoque/vstop-backend/internal/offers"
	"github.com/tahmidhoque/vstop-backend/internal/store"
	"github.com/tahmidhoque/vstop-backend/internal/tasks"
)

// Querier captures the database methods required by the checkout service.
type Querier interface {
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	CreateOrder(ctx context.Context, tx pgx.Tx, arg store.CreateOrderParams) (store.Order, error)
	CreateOrderItem(ctx context.Context, tx pgx.Tx, arg store.CreateOrderItemParams) error
	ClearCart(ctx context.Context, tx pgx.Tx, cartID pgtype.UUID) error
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// Enqueuer submits follow-up work after an order is placed.
type Enqueuer interface {
	EnqueueReportsRefresh(ctx context.Context, payload tasks.ReportsRefreshPayload) error
}

// Customer identifies who placed the order.
type Customer struct {
	Name  string
	Email string
	Phone string
	Notes string
}

// Result is the placed order with its receipt lines.
type Result struct {
	OrderID  uuid.UUID          `json:"orderId"`
	Status   string             `json:"status"`
	Currency string             `json:"currency"`
	Totals   offers.BasketTotal `json:"totals"`
}

// Service converts a priced basket into a persisted order.
type Service struct {
	Q        Querier
	Tx       TxRunner
	Quoter   cart.Quoter
	Tasks    Enqueuer
	Logger   zerolog.Logger
	Currency string
	Now      func() time.Time
}

// PlaceOrder prices the basket, persists the order with per-line effective
// prices, and empties the cart, all inside one transaction.
func (s *Service) PlaceOrder(ctx context.Context, cartID uuid.UUID, customer Customer) (Result, error) {
	if s == nil || s.Q == nil || s.Tx == nil || s.Quoter == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	basket, err := s.Q.GetCartByID(ctx, store.FromUUID(cartID))
	if err != nil {
		s.observe("cart_missing")
		return Result{}, err
	}
	if basket.ExpiresAt.Valid && basket.ExpiresAt.Time.Before(s.now()) {
		s.observe("cart_expired")
		return Result{}, cart.ErrCartExpired
	}
	rows, err := s.Q.ListCartItems(ctx, basket.ID)
	if err != nil {
		s.observe("error")
		return Result{}, fmt.Errorf("list lines: %w", err)
	}
	if len(rows) == 0 {
		s.observe("empty_cart")
		return Result{}, common.NewAppError("EMPTY_CART", "cart has no items", http.StatusUnprocessableEntity, nil)
	}

	items := cart.LineItemsFromRows(rows)
	totals, prices, err := s.Quoter.Quote(ctx, items)
	if err != nil {
		s.observe("pricing_failed")
		return Result{}, err
	}
	appliedJSON, err := json.Marshal(totals.Applied)
	if err != nil {
		s.observe("error")
		return Result{}, fmt.Errorf("encode applied offers: %w", err)
	}

	var order store.Order
	err = s.Tx.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err = s.Q.CreateOrder(ctx, tx, store.CreateOrderParams{
			CartID:        basket.ID,
			CustomerName:  customer.Name,
			CustomerEmail: customer.Email,
			CustomerPhone: customer.Phone,
			Status:        "pending",
			Currency:      s.currency(),
			Subtotal:      int64(totals.Subtotal),
			Discount:      int64(totals.Discount),
			Total:         int64(totals.Total),
			AppliedOffers: appliedJSON,
			Notes:         store.NullableText(notesPtr(customer.Notes)),
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, row := range rows {
			item := store.CreateOrderItemParams{
				OrderID:            order.ID,
				ProductID:          row.ProductID,
				VariantID:          row.VariantID,
				Title:              row.Title,
				Flavour:            row.Flavour,
				Qty:                row.Qty,
				UnitPrice:          row.UnitPrice,
				EffectiveUnitPrice: float64(row.UnitPrice),
			}
			sku := skuForRow(row)
			if pq, ok := prices[sku]; ok {
				item.EffectiveUnitPrice = pq.UnitPrice
				if pq.OfferID != nil {
					item.OfferID = store.FromUUID(*pq.OfferID)
				}
			}
			if err := s.Q.CreateOrderItem(ctx, tx, item); err != nil {
				return fmt.Errorf("create order line: %w", err)
			}
		}
		return s.Q.ClearCart(ctx, tx, basket.ID)
	})
	if err != nil {
		s.observe("error")
		return Result{}, err
	}

	s.observe("success")
	if s.Tasks != nil {
		payload := tasks.ReportsRefreshPayload{Reason: "checkout", OrderID: store.UUIDString(order.ID)}
		if err := s.Tasks.EnqueueReportsRefresh(ctx, payload); err != nil {
			s.Logger.Warn().Err(err).Msg("enqueue report refresh")
		}
	}
	return Result{
		OrderID:  store.AsUUID(order.ID),
		Status:   order.Status,
		Currency: order.Currency,
		Totals:   totals,
	}, nil
}

func (s *Service) currency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return "GBP"
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) observe(result string) {
	if obs.CheckoutTotal == nil {
		return
	}
	obs.CheckoutTotal.WithLabelValues(result).Inc()
}

func skuForRow(row store.CartItem) offers.SKU {
	sku := offers.SKU{ProductID: store.AsUUID(row.ProductID)}
	if row.VariantID.Valid {
		sku.VariantID = store.AsUUID(row.VariantID)
	}
	return sku
}

func notesPtr(notes string) *string {
	if notes == "" {
		return nil
	}
	return &notes
}
