package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/lokmanguedri/motivex/internal/kafka"
	"github.com/lokmanguedri/motivex/internal/orders"
)

type fakeShipper struct {
	calls []string
	err   error
}

func (f *fakeShipper) Create(_ context.Context, orderID string) (orders.Order, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return orders.Order{}, f.err
	}
	return orders.Order{ID: orderID, Tracking: &orders.Tracking{TrackingID: "yal-1"}}, nil
}

func statusEvent(id string, to orders.Status) kafkago.Message {
	env := orders.Envelope{
		EventID:      id,
		EventType:    orders.EventOrderStatusChanged,
		EventVersion: orders.EventVersion,
		OccurredAt:   time.Now().UTC(),
		Producer:     "storefront-api",
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: "order-1", Code: "MX-2026-ABC123", From: orders.StatusPending, To: to, Actor: orders.ActorAdmin,
		}),
	}
	return kafkago.Message{Key: orders.PartitionKey("order-1"), Value: kafkax.MustMarshal(env)}
}

func newTestService(t *testing.T, sh *fakeShipper, autoShip bool) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Shipments: sh, Redis: rdb, AutoShip: autoShip, Log: zerolog.Nop()}, mr
}

func TestConfirmedShipsOnce(t *testing.T) {
	sh := &fakeShipper{}
	svc, mr := newTestService(t, sh, true)
	ctx := context.Background()

	require.NoError(t, svc.HandleStatusChanged(ctx, statusEvent("ev-1", orders.StatusConfirmed)))
	require.NoError(t, svc.HandleStatusChanged(ctx, statusEvent("ev-1", orders.StatusConfirmed)))
	assert.Equal(t, []string{"order-1"}, sh.calls)
	assert.True(t, mr.Exists("dedup:fulfillment:ev-1"))
}

func TestIgnoredEvents(t *testing.T) {
	ctx := context.Background()

	sh := &fakeShipper{}
	svc, _ := newTestService(t, sh, true)
	require.NoError(t, svc.HandleStatusChanged(ctx, statusEvent("ev-2", orders.StatusShipped)))
	require.NoError(t, svc.HandleStatusChanged(ctx, kafkago.Message{Value: []byte("{not json")}))

	other := orders.Envelope{EventID: "ev-3", EventType: orders.EventOrderCreated, Payload: json.RawMessage(`{}`)}
	require.NoError(t, svc.HandleStatusChanged(ctx, kafkago.Message{Value: kafkax.MustMarshal(other)}))
	assert.Empty(t, sh.calls)

	off, _ := newTestService(t, sh, false)
	require.NoError(t, off.HandleStatusChanged(ctx, statusEvent("ev-4", orders.StatusConfirmed)))
	assert.Empty(t, sh.calls)
}

func TestShipmentFailureIsRetried(t *testing.T) {
	sh := &fakeShipper{err: errors.New("provider down")}
	svc, mr := newTestService(t, sh, true)
	ctx := context.Background()

	err := svc.HandleStatusChanged(ctx, statusEvent("ev-5", orders.StatusConfirmed))
	require.Error(t, err)
	assert.False(t, mr.Exists("dedup:fulfillment:ev-5"))

	sh.err = nil
	require.NoError(t, svc.HandleStatusChanged(ctx, statusEvent("ev-5", orders.StatusConfirmed)))
	assert.Len(t, sh.calls, 2)
}

func TestAlreadyShippedIsDone(t *testing.T) {
	sh := &fakeShipper{err: orders.ErrAlreadyShipped}
	svc, mr := newTestService(t, sh, true)

	require.NoError(t, svc.HandleStatusChanged(context.Background(), statusEvent("ev-6", orders.StatusConfirmed)))
	assert.True(t, mr.Exists("dedup:fulfillment:ev-6"))
}

func TestDedupUnavailable(t *testing.T) {
	sh := &fakeShipper{}
	svc, mr := newTestService(t, sh, true)
	mr.Close()

	err := svc.HandleStatusChanged(context.Background(), statusEvent("ev-7", orders.StatusConfirmed))
	require.Error(t, err)
	assert.Empty(t, sh.calls)
}
