package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tahmidhoque/vstop-backend/internal/cache"
	"github.com/tahmidhoque/vstop-backend/internal/store"
)

const (
	salesCacheKey    = "sales"
	topCacheKey      = "top"
	overviewCacheKey = "overview"
)

// Querier captures the database methods required by the reports service.
type Querier interface {
	SalesDailyRange(ctx context.Context, from, to time.Time) ([]store.SalesDay, error)
	TopProducts(ctx context.Context, limit int32) ([]store.TopProduct, error)
}

// SalesDay is a daily sales aggregate for reporting output.
type SalesDay struct {
	Day      time.Time `json:"day"`
	Orders   int64     `json:"orders"`
	Revenue  int64     `json:"revenue"`
	Discount int64     `json:"discount"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Units     int64  `json:"units"`
	Revenue   int64  `json:"revenue"`
}

// Overview summarises trading over the default reporting window.
type Overview struct {
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Orders      int64        `json:"orders"`
	Revenue     int64        `json:"revenue"`
	Discount    int64        `json:"discount"`
	BestDay     *SalesDay    `json:"bestDay,omitempty"`
	TopProducts []TopProduct `json:"topProducts"`
}

// Service computes trading reports with a read-through cache.
type Service struct {
	Q         Querier
	Cache     *cache.Cache
	Now       func() time.Time
	RangeDays int
	TopLimit  int
}

// SalesDaily returns per-day aggregates for the window [from, to).
func (s *Service) SalesDaily(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("reports service not configured")
	}
	key := fmt.Sprintf("%s:%s:%s", salesCacheKey, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []SalesDay
	if found, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}
	rows, err := s.Q.SalesDailyRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("sales range: %w", err)
	}
	out := make([]SalesDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, SalesDay(row))
	}
	_ = s.Cache.SetJSON(ctx, key, out)
	return out, nil
}

// TopProducts ranks products by units sold across all non-cancelled orders.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("reports service not configured")
	}
	if limit <= 0 {
		limit = s.topLimit()
	}
	key := fmt.Sprintf("%s:%d", topCacheKey, limit)
	var cached []TopProduct
	if found, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}
	rows, err := s.Q.TopProducts(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	out := make([]TopProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, TopProduct{
			ProductID: store.UUIDString(row.ProductID),
			Title:     row.Title,
			Units:     row.Units,
			Revenue:   row.Revenue,
		})
	}
	_ = s.Cache.SetJSON(ctx, key, out)
	return out, nil
}

// Overview summarises the default trading window.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if s == nil || s.Q == nil {
		return Overview{}, errors.New("reports service not configured")
	}
	var cached Overview
	if found, err := s.Cache.GetJSON(ctx, overviewCacheKey, &cached); err == nil && found {
		return cached, nil
	}
	overview, err := s.computeOverview(ctx)
	if err != nil {
		return Overview{}, err
	}
	_ = s.Cache.SetJSON(ctx, overviewCacheKey, overview)
	return overview, nil
}

// Refresh recomputes the overview and replaces the cached copy. Invoked by
// the background worker after each checkout.
func (s *Service) Refresh(ctx context.Context) error {
	if s == nil || s.Q == nil {
		return errors.New("reports service not configured")
	}
	overview, err := s.computeOverview(ctx)
	if err != nil {
		return err
	}
	return s.Cache.SetJSON(ctx, overviewCacheKey, overview)
}

func (s *Service) computeOverview(ctx context.Context) (Overview, error) {
	to := s.now()
	from := to.AddDate(0, 0, -s.rangeDays())
	days, err := s.Q.SalesDailyRange(ctx, from, to)
	if err != nil {
		return Overview{}, fmt.Errorf("sales range: %w", err)
	}
	top, err := s.TopProducts(ctx, s.topLimit())
	if err != nil {
		return Overview{}, err
	}
	overview := Overview{From: from, To: to, TopProducts: top}
	for _, day := range days {
		overview.Orders += day.Orders
		overview.Revenue += day.Revenue
		overview.Discount += day.Discount
		if overview.BestDay == nil || day.Revenue > overview.BestDay.Revenue {
			best := SalesDay(day)
			overview.BestDay = &best
		}
	}
	return overview, nil
}

func (s *Service) rangeDays() int {
	if s.RangeDays > 0 {
		return s.RangeDays
	}
	return 30
}

func (s *Service) topLimit() int {
	if s.TopLimit > 0 {
		return s.TopLimit
	}
	return 5
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
