package shipping

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/redisx"
)

type OrderBook interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	AttachShipment(ctx context.Context, id string, t orders.Tracking) (orders.Order, error)
}

type Carrier interface {
	Provider() string
	WilayaName(ctx context.Context, id int) (string, error)
	CreateParcel(ctx context.Context, p Parcel) (ParcelResult, error)
}

type Shipments struct {
	Orders       OrderBook
	Carrier      Carrier
	FromWilayaID int
	// Redis holds booking claims shared by every process. Without it claims
	// only cover this process.
	Redis redis.Cmdable
	Log   zerolog.Logger

	local sync.Map
}

// Create books a parcel for a confirmed order that has none yet and stores
// its tracking id on the order.
func (s *Shipments) Create(ctx context.Context, orderID string) (orders.Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.Status != orders.StatusConfirmed {
		return orders.Order{}, orders.ErrNotConfirmed
	}
	if o.Tracking != nil {
		return orders.Order{}, orders.ErrAlreadyShipped
	}
	ok, err := s.claim(ctx, o.ID)
	if err != nil {
		return orders.Order{}, err
	}
	if !ok {
		return orders.Order{}, orders.ErrAlreadyShipped
	}

	p, err := s.parcel(ctx, o)
	if err != nil {
		s.release(ctx, o.ID)
		return orders.Order{}, err
	}
	res, err := s.Carrier.CreateParcel(ctx, p)
	if err != nil {
		s.release(ctx, o.ID)
		return orders.Order{}, err
	}

	updated, err := s.Orders.AttachShipment(ctx, o.ID, orders.Tracking{
		TrackingID: res.Tracking,
		Provider:   s.Carrier.Provider(),
		Status:     "En préparation",
		Label:      res.Label,
	})
	if err != nil {
		s.Log.Error().Err(err).Str("order", o.Code).Str("tracking", res.Tracking).Msg("parcel created but not recorded")
		return orders.Order{}, err
	}
	s.Log.Info().Str("order", o.Code).Str("tracking", res.Tracking).Msg("shipment created")
	return updated, nil
}

// claim reserves the booking of orderID. The claim is kept once a parcel
// exists at the carrier, even when recording it on the order fails.
func (s *Shipments) claim(ctx context.Context, orderID string) (bool, error) {
	if s.Redis == nil {
		_, taken := s.local.LoadOrStore(orderID, struct{}{})
		return !taken, nil
	}
	return redisx.MarkOnce(ctx, s.Redis, fmt.Sprintf(redisx.KeyShipmentBooking, orderID), redisx.TTLBooking)
}

func (s *Shipments) release(ctx context.Context, orderID string) {
	if s.Redis == nil {
		s.local.Delete(orderID)
		return
	}
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyShipmentBooking, orderID)).Err(); err != nil {
		s.Log.Warn().Err(err).Str("order", orderID).Msg("release booking claim")
	}
}

func (s *Shipments) parcel(ctx context.Context, o orders.Order) (Parcel, error) {
	from, err := s.Carrier.WilayaName(ctx, s.FromWilayaID)
	if err != nil {
		return Parcel{}, err
	}
	wilaya := o.Wilaya.Name
	if wilaya == "" {
		name, err := s.Carrier.WilayaName(ctx, o.Wilaya.ID)
		if err != nil {
			return Parcel{}, err
		}
		wilaya = name
	}
	first, family := splitName(o.CustomerName)
	return Parcel{
		OrderID:        o.Code,
		FromWilayaName: from,
		FirstName:      first,
		FamilyName:     family,
		ContactPhone:   o.Phone,
		Address:        o.Address,
		ToCommuneName:  o.Commune,
		ToWilayaName:   wilaya,
		ProductList:    productList(o.Items),
		Price:          o.CODAmount(),
		DeclaredValue:  o.Subtotal,
		IsStopDesk:     o.StopDesk,
		StopDeskID:     o.StopDeskID,
	}, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func productList(items []orders.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.SKU, it.Qty))
	}
	return strings.Join(parts, ", ")
}
