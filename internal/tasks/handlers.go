package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Refresher recomputes cached reports.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Invalidator drops cached offer data.
type Invalidator interface {
	InvalidateCache(ctx context.Context) error
}

// Handlers processes background tasks on the worker.
type Handlers struct {
	Reports Refresher
	Offers  Invalidator
	Logger  zerolog.Logger
}

// Mux returns the asynq routing table for the worker.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReportsRefresh, h.HandleReportsRefresh)
	mux.HandleFunc(TypeOffersInvalidate, h.HandleOffersInvalidate)
	return mux
}

// HandleReportsRefresh recomputes the cached trading overview.
func (h *Handlers) HandleReportsRefresh(ctx context.Context, t *asynq.Task) error {
	var payload ReportsRefreshPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	if h.Reports == nil {
		return fmt.Errorf("reports refresher not configured")
	}
	if err := h.Reports.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh reports: %w", err)
	}
	h.Logger.Info().
		Str("reason", payload.Reason).
		Str("order_id", payload.OrderID).
		Msg("reports refreshed")
	return nil
}

// HandleOffersInvalidate busts the cached active offer list.
func (h *Handlers) HandleOffersInvalidate(ctx context.Context, _ *asynq.Task) error {
	if h.Offers == nil {
		return fmt.Errorf("offers invalidator not configured")
	}
	if err := h.Offers.InvalidateCache(ctx); err != nil {
		return fmt.Errorf("invalidate offers cache: %w", err)
	}
	h.Logger.Info().Msg("offers cache invalidated")
	return nil
}
