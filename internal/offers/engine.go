package offers

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Money represents a monetary value stored in minor units (pence).
type Money = int64

var (
	// ErrInvalidOffer is returned when an offer carries a non-positive bundle size.
	ErrInvalidOffer = errors.New("offers: invalid offer")
	// ErrInvalidLineItem is returned when a line item carries a negative quantity or price.
	ErrInvalidLineItem = errors.New("offers: invalid line item")
)

// SKU identifies a distinct purchasable unit. A zero VariantID means the base
// product with no variant selected.
type SKU struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
}

// String renders the key in productID-variantID form for display and JSON maps.
func (k SKU) String() string {
	if k.VariantID == uuid.Nil {
		return k.ProductID.String() + "-base"
	}
	return k.ProductID.String() + "-" + k.VariantID.String()
}

// LineItem is a basket entry used for offer evaluation.
type LineItem struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Name      string     `json:"name"`
	Flavour   string     `json:"flavour,omitempty"`
	UnitPrice Money      `json:"unitPrice"`
	Qty       int        `json:"qty"`
}

// Key returns the composite SKU key for the line item.
func (li LineItem) Key() SKU {
	k := SKU{ProductID: li.ProductID}
	if li.VariantID != nil {
		k.VariantID = *li.VariantID
	}
	return k
}

// Offer is a bundle promotion of the form "any N eligible items for a flat price".
// Eligibility is product-level: every variant of an eligible product qualifies.
type Offer struct {
	ID         uuid.UUID
	Name       string
	Qty        int   // bundle size N
	Price      Money // flat price for N units
	Active     bool
	StartsAt   *time.Time
	EndsAt     *time.Time
	ProductIDs []uuid.UUID
}

// ActiveAt reports whether the offer is redeemable at the given instant.
// Both window bounds are inclusive; an unset bound imposes no constraint.
func (o Offer) ActiveAt(now time.Time) bool {
	if !o.Active {
		return false
	}
	if o.StartsAt != nil && o.StartsAt.After(now) {
		return false
	}
	if o.EndsAt != nil && o.EndsAt.Before(now) {
		return false
	}
	return true
}

func (o Offer) appliesTo(item LineItem) bool {
	for _, id := range o.ProductIDs {
		if id == item.ProductID {
			return true
		}
	}
	return false
}

// AppliedOffer records a single offer that fired during basket evaluation.
// Items lists every eligible merged line that was considered, not only the
// units actually consumed by the bundle.
type AppliedOffer struct {
	OfferID    uuid.UUID  `json:"offerId"`
	Name       string     `json:"offerName"`
	AppliedQty int        `json:"appliedQty"`
	Discount   Money      `json:"discount"`
	Items      []LineItem `json:"items"`
}

// BasketTotal aggregates basket pricing under the active offers.
type BasketTotal struct {
	Subtotal Money          `json:"subtotal"`
	Discount Money          `json:"discount"`
	Total    Money          `json:"total"`
	Applied  []AppliedOffer `json:"appliedOffers"`
}

// PriceQuote is a per-SKU effective unit price used for receipt display.
// UnitPrice is in fractional minor units because blended bundle prices rarely
// divide evenly; callers round at the presentation boundary.
type PriceQuote struct {
	UnitPrice float64    `json:"unitPrice"`
	OfferID   *uuid.UUID `json:"offerId"`
}

// MergeLineItems groups entries by SKU, summing quantities. Display fields of
// the first occurrence are kept as representative. Output preserves first-seen
// insertion order.
func MergeLineItems(items []LineItem) []LineItem {
	merged := make([]LineItem, 0, len(items))
	index := make(map[SKU]int, len(items))
	for _, it := range items {
		key := it.Key()
		if i, ok := index[key]; ok {
			merged[i].Qty += it.Qty
			continue
		}
		index[key] = len(merged)
		merged = append(merged, it)
	}
	return merged
}

// Calculate computes the basket total under every active offer. Offers are not
// mutually exclusive: each consumes its own multiple of N from the original
// per-SKU quantities and realised discounts are summed. The evaluation is pure;
// callers capture now once so all offers are judged against the same instant.
func Calculate(items []LineItem, catalog []Offer, now time.Time) (BasketTotal, error) {
	if err := validate(items, catalog); err != nil {
		return BasketTotal{}, err
	}
	merged := MergeLineItems(items)

	var subtotal Money
	for _, it := range merged {
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	result := BasketTotal{Subtotal: subtotal}

	for _, offer := range catalog {
		if !offer.ActiveAt(now) {
			continue
		}
		eligible, eligibleQty := eligibleLines(merged, offer)
		if eligibleQty == 0 {
			continue
		}
		multiplier := eligibleQty / offer.Qty
		if multiplier == 0 {
			continue
		}
		units := multiplier * offer.Qty
		_, original := consumeCheapest(eligible, units)
		discounted := offer.Price * Money(multiplier)
		discount := original - discounted
		if discount <= 0 {
			// Applying the bundle would not benefit the customer.
			continue
		}
		result.Applied = append(result.Applied, AppliedOffer{
			OfferID:    offer.ID,
			Name:       offer.Name,
			AppliedQty: units,
			Discount:   discount,
			Items:      eligible,
		})
		result.Discount += discount
	}

	result.Total = result.Subtotal - result.Discount
	if result.Total < 0 {
		result.Total = 0
	}
	return result, nil
}

// DiscountedPrices produces a per-SKU effective unit price view. Unlike
// Calculate, overlapping offers are not summed here: a later offer displaces an
// earlier one's effect on a shared SKU only when it is strictly cheaper per
// unit. Unconsumed units blend at the SKU's currently recorded price.
func DiscountedPrices(items []LineItem, catalog []Offer, now time.Time) (map[SKU]PriceQuote, error) {
	if err := validate(items, catalog); err != nil {
		return nil, err
	}
	merged := MergeLineItems(items)

	quotes := make(map[SKU]PriceQuote, len(merged))
	for _, it := range merged {
		quotes[it.Key()] = PriceQuote{UnitPrice: float64(it.UnitPrice)}
	}

	for _, offer := range catalog {
		if !offer.ActiveAt(now) {
			continue
		}
		eligible, eligibleQty := eligibleLines(merged, offer)
		if eligibleQty == 0 {
			continue
		}
		multiplier := eligibleQty / offer.Qty
		if multiplier == 0 {
			continue
		}
		units := multiplier * offer.Qty
		consumed, original := consumeCheapest(eligible, units)
		discounted := offer.Price * Money(multiplier)
		if original-discounted <= 0 {
			continue
		}
		perUnit := float64(discounted) / float64(units)
		offerID := offer.ID
		for _, c := range consumed {
			key := c.item.Key()
			existing := quotes[key]
			candidate := perUnit
			if left := c.item.Qty - c.qty; left > 0 {
				candidate = (perUnit*float64(c.qty) + existing.UnitPrice*float64(left)) / float64(c.item.Qty)
			}
			if candidate < existing.UnitPrice {
				quotes[key] = PriceQuote{UnitPrice: candidate, OfferID: &offerID}
			}
		}
	}
	return quotes, nil
}

// consumption records how many units an offer takes from one merged line.
type consumption struct {
	item LineItem
	qty  int
}

// consumeCheapest selects units from eligible lines preferring the lowest unit
// price so the bundle maximises the customer's saving. The sort is stable to
// keep insertion order among equally priced lines. Returns the selected slices
// and their original (undiscounted) value.
func consumeCheapest(eligible []LineItem, units int) ([]consumption, Money) {
	sorted := make([]LineItem, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UnitPrice < sorted[j].UnitPrice })

	var (
		selected []consumption
		original Money
	)
	remaining := units
	for _, it := range sorted {
		if remaining == 0 {
			break
		}
		take := it.Qty
		if take > remaining {
			take = remaining
		}
		selected = append(selected, consumption{item: it, qty: take})
		original += Money(take) * it.UnitPrice
		remaining -= take
	}
	return selected, original
}

func eligibleLines(merged []LineItem, offer Offer) ([]LineItem, int) {
	var (
		eligible []LineItem
		qty      int
	)
	for _, it := range merged {
		if offer.appliesTo(it) {
			eligible = append(eligible, it)
			qty += it.Qty
		}
	}
	return eligible, qty
}

func validate(items []LineItem, catalog []Offer) error {
	for _, it := range items {
		if it.Qty < 0 {
			return fmt.Errorf("%w: negative quantity %d for %q", ErrInvalidLineItem, it.Qty, it.Name)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: negative price %d for %q", ErrInvalidLineItem, it.UnitPrice, it.Name)
		}
	}
	for _, o := range catalog {
		if o.Qty <= 0 {
			return fmt.Errorf("%w: %q has bundle size %d", ErrInvalidOffer, o.Name, o.Qty)
		}
	}
	return nil
}
