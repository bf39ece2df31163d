package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) Refresh(context.Context) error {
	s.calls++
	return s.err
}

type stubInvalidator struct {
	calls int
}

func (s *stubInvalidator) InvalidateCache(context.Context) error {
	s.calls++
	return nil
}

func TestHandleReportsRefresh(t *testing.T) {
	refresher := &stubRefresher{}
	h := &Handlers{Reports: refresher, Logger: zerolog.Nop()}

	payload, err := json.Marshal(ReportsRefreshPayload{Reason: "checkout", OrderID: "o-1"})
	require.NoError(t, err)

	err = h.HandleReportsRefresh(context.Background(), asynq.NewTask(TypeReportsRefresh, payload))
	require.NoError(t, err)
	require.Equal(t, 1, refresher.calls)
}

func TestHandleReportsRefreshPropagatesError(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("boom")}
	h := &Handlers{Reports: refresher, Logger: zerolog.Nop()}

	err := h.HandleReportsRefresh(context.Background(), asynq.NewTask(TypeReportsRefresh, nil))
	require.Error(t, err)
}

func TestHandleOffersInvalidate(t *testing.T) {
	invalidator := &stubInvalidator{}
	h := &Handlers{Offers: invalidator, Logger: zerolog.Nop()}

	err := h.HandleOffersInvalidate(context.Background(), asynq.NewTask(TypeOffersInvalidate, nil))
	require.NoError(t, err)
	require.Equal(t, 1, invalidator.calls)
}

func TestEnqueueOffersInvalidateQueuesTask(t *testing.T) {
	srv := miniredis.RunT(t)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer asynqClient.Close()

	err := NewClient(asynqClient).EnqueueOffersInvalidate(context.Background())
	require.NoError(t, err)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("default")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, TypeOffersInvalidate, pending[0].Type)
}

func TestEnqueueOffersInvalidateRequiresClient(t *testing.T) {
	var c *Client
	require.Error(t, c.EnqueueOffersInvalidate(context.Background()))
	require.Error(t, NewClient(nil).EnqueueOffersInvalidate(context.Background()))
}
