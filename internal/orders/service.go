package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/lokmanguedri/motivex/internal/kafka"
	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/users"
)

type Store interface {
	Create(ctx context.Context, in NewOrder) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	GetByCode(ctx context.Context, code string) (Order, error)
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f Filter) (Page, error)
	UpdateStatus(ctx context.Context, id string, p Patch) (Order, Change, error)
	SetPaymentReference(ctx context.Context, code, phone, reference string) (Order, error)
	SetTracking(ctx context.Context, id string, t Tracking) (Order, error)
	ApplyTracking(ctx context.Context, trackingID, providerStatus string, raw json.RawMessage, target *Status) (Order, Change, error)
}

// FeeQuoter prices delivery to a commune. Implementations fall back to an
// estimate rather than fail.
type FeeQuoter interface {
	ShippingFee(ctx context.Context, wilayaID int, commune string, stopDesk bool) (decimal.Decimal, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

type Service struct {
	Store         Store
	Fees          FeeQuoter
	Idem          Idempotency
	Created       Publisher
	StatusChanged Publisher
	Metrics       *metrics.Metrics
	Log           zerolog.Logger
	ServiceName   string
}

// Result is the outcome of a checkout. Replayed is set when the
// Idempotency-Key matched an earlier order.
type Result struct {
	Order    Order
	Replayed bool
}

func (s *Service) Create(ctx context.Context, userID *string, idemKey string, in CreateInput) (Result, error) {
	idemKey = strings.TrimSpace(idemKey)
	claimed := false
	if idemKey != "" && s.Idem != nil {
		id, ok, err := s.Idem.Claim(ctx, idemKey)
		switch {
		case err != nil:
			s.Log.Warn().Err(err).Msg("idempotency claim")
		case ok:
			claimed = true
		case id == "":
			return Result{}, ErrRequestInFlight
		default:
			o, err := s.Store.Get(ctx, id)
			if err == nil {
				return Result{Order: o, Replayed: true}, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return Result{}, err
			}
			// the remembered order is gone; this request takes the key over
			claimed = true
		}
	}

	o, err := s.create(ctx, userID, in)
	if err != nil {
		if claimed {
			if rerr := s.Idem.Release(ctx, idemKey); rerr != nil {
				s.Log.Warn().Err(rerr).Msg("idempotency release")
			}
		}
		return Result{}, err
	}
	if claimed {
		if err := s.Idem.Complete(ctx, idemKey, o.ID); err != nil {
			s.Log.Warn().Err(err).Msg("idempotency complete")
		}
	}
	s.publish(ctx, s.Created, EventOrderCreated, o.ID, createdPayload(o))
	return Result{Order: o}, nil
}

func (s *Service) create(ctx context.Context, userID *string, in CreateInput) (Order, error) {
	if err := in.Normalize(); err != nil {
		return Order{}, err
	}
	fee, err := s.Fees.ShippingFee(ctx, in.WilayaID, in.Commune, in.StopDesk)
	if err != nil {
		return Order{}, err
	}
	o, err := s.Store.Create(ctx, NewOrder{CreateInput: in, UserID: userID, ShippingFee: fee})
	if err != nil {
		return Order{}, err
	}
	s.Metrics.OrderCreated(string(o.Payment.Method))
	s.Log.Info().Str("order", o.Code).Str("total", o.Total.String()).
		Str("payment", string(o.Payment.Method)).Int("lines", len(o.Items)).Msg("order placed")
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Order, error) {
	return s.Store.GetByCode(ctx, code)
}

// Track is the guest lookup: the code alone is not enough, the phone the
// order was placed with must match too.
func (s *Service) Track(ctx context.Context, code, phone string) (Order, error) {
	norm, err := users.NormalizePhone(phone)
	if err != nil {
		return Order{}, ErrNotFound
	}
	o, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		return Order{}, err
	}
	if o.Phone != norm {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListForUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	return s.Store.List(ctx, f)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, p Patch) (Order, error) {
	if p.Empty() {
		return Order{}, ErrInvalidInput
	}
	if p.Status != nil {
		st, ok := ParseStatus(string(*p.Status))
		if !ok {
			return Order{}, ErrInvalidInput
		}
		p.Status = &st
	}
	if p.PaymentStatus != nil {
		ps := PaymentStatus(strings.ToUpper(strings.TrimSpace(string(*p.PaymentStatus))))
		p.PaymentStatus = &ps
	}
	o, ch, err := s.Store.UpdateStatus(ctx, id, p)
	if err != nil {
		return Order{}, err
	}
	if ch.StatusChanged {
		s.statusChanged(ctx, o, ch.From, ActorAdmin)
	}
	return o, nil
}

func (s *Service) SubmitPaymentReference(ctx context.Context, code, phone, reference string) (Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" || len(reference) > 64 {
		return Order{}, ErrInvalidInput
	}
	norm, err := users.NormalizePhone(phone)
	if err != nil {
		return Order{}, ErrNotFound
	}
	return s.Store.SetPaymentReference(ctx, code, norm, reference)
}

// ApplyCarrierUpdate records a provider status and moves the order when
// target is reachable from its current status.
func (s *Service) ApplyCarrierUpdate(ctx context.Context, trackingID, providerStatus string, raw json.RawMessage, target *Status) (Order, bool, error) {
	o, ch, err := s.Store.ApplyTracking(ctx, trackingID, providerStatus, raw, target)
	if err != nil {
		return Order{}, false, err
	}
	if ch.StatusChanged {
		s.statusChanged(ctx, o, ch.From, ActorCarrier)
	}
	return o, ch.StatusChanged, nil
}

// AttachShipment stores tracking data for a created parcel.
func (s *Service) AttachShipment(ctx context.Context, id string, t Tracking) (Order, error) {
	return s.Store.SetTracking(ctx, id, t)
}

func (s *Service) statusChanged(ctx context.Context, o Order, from Status, actor Actor) {
	s.Log.Info().Str("order", o.Code).Str("from", string(from)).Str("to", string(o.Status)).
		Str("actor", string(actor)).Msg("order status changed")
	s.publish(ctx, s.StatusChanged, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:       o.ID,
		Code:          o.Code,
		From:          from,
		To:            o.Status,
		PaymentStatus: o.Payment.Status,
		Actor:         actor,
	})
}

// publish never fails the request; the database is the source of truth.
func (s *Service) publish(ctx context.Context, p Publisher, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	err := p.Publish(ctx, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		s.Log.Error().Err(err).Str("event", eventType).Str("order_id", orderID).Msg("publish event")
	}
}
