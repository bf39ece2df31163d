package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names routed through the background queue.
const (
	TypeReportsRefresh   = "reports:refresh"
	TypeOffersInvalidate = "offers:invalidate"
)

// ReportsRefreshPayload carries the trigger for a report recomputation.
type ReportsRefreshPayload struct {
	Reason  string `json:"reason"`
	OrderID string `json:"orderId,omitempty"`
}

// Client enqueues background tasks.
type Client struct {
	A *asynq.Client
}

// NewClient wraps an asynq client for task submission.
func NewClient(a *asynq.Client) *Client {
	return &Client{A: a}
}

// EnqueueReportsRefresh schedules a report recomputation.
func (c *Client) EnqueueReportsRefresh(ctx context.Context, payload ReportsRefreshPayload) error {
	if c == nil || c.A == nil {
		return errors.New("task client not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeReportsRefresh, data)
	_, err = c.A.EnqueueContext(ctx, task,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Queue("default"),
	)
	return err
}

// EnqueueOffersInvalidate drops the cached active offer list from every API
// instance after an out-of-band catalogue change.
func (c *Client) EnqueueOffersInvalidate(ctx context.Context) error {
	if c == nil || c.A == nil {
		return errors.New("task client not configured")
	}
	task := asynq.NewTask(TypeOffersInvalidate, nil)
	_, err := c.A.EnqueueContext(ctx, task,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Second),
		asynq.Queue("default"),
	)
	return err
}
