package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/lokmanguedri/motivex/internal/kafka"
	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/redisx"
)

type Shipper interface {
	Create(ctx context.Context, orderID string) (orders.Order, error)
}

// Service reacts to order status events. With AutoShip on, it books the
// parcel of every order that becomes CONFIRMED.
type Service struct {
	Shipments Shipper
	Redis     redis.Cmdable
	AutoShip  bool
	Log       zerolog.Logger
}

// HandleStatusChanged is installed as the consumer handler. A returned error
// leaves the offset uncommitted and the dedup key released.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Error().Err(err).Int64("offset", m.Offset).Msg("drop undecodable message")
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		s.Log.Error().Err(err).Str("event_id", env.EventID).Msg("drop bad payload")
		return nil
	}
	if !s.AutoShip || p.To != orders.StatusConfirmed {
		return nil
	}

	// 2) dedup by event id
	dkey := fmt.Sprintf(redisx.KeyDedup, "fulfillment", env.EventID)
	first, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if !first {
		return nil
	}

	log := s.Log.With().Str("order", p.Code).Str("event_id", env.EventID).Str("trace_id", env.TraceID).Logger()

	// 3) book the parcel
	o, err := s.Shipments.Create(ctx, p.OrderID)
	switch {
	case err == nil:
		log.Info().Str("tracking", o.Tracking.TrackingID).Msg("auto shipment created")
		return nil
	case errors.Is(err, orders.ErrAlreadyShipped), errors.Is(err, orders.ErrNotConfirmed), errors.Is(err, orders.ErrNotFound):
		log.Info().Err(err).Msg("auto shipment skipped")
		return nil
	default:
		_ = s.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("create shipment for %s: %w", p.Code, err)
	}
}
