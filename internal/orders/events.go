package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID       string          `json:"order_id"`
	Code          string          `json:"code"`
	UserID        string          `json:"user_id,omitempty"`
	WilayaID      int             `json:"wilaya_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Items         []ItemLine      `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

type Actor string

const (
	ActorAdmin    Actor = "admin"
	ActorCustomer Actor = "customer"
	ActorCarrier  Actor = "carrier"
)

type OrderStatusChangedPayload struct {
	OrderID       string        `json:"order_id"`
	Code          string        `json:"code"`
	From          Status        `json:"from"`
	To            Status        `json:"to"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Actor         Actor         `json:"actor"`
}

func createdPayload(o Order) OrderCreatedPayload {
	p := OrderCreatedPayload{
		OrderID:       o.ID,
		Code:          o.Code,
		WilayaID:      o.Wilaya.ID,
		PaymentMethod: o.Payment.Method,
		Items:         make([]ItemLine, 0, len(o.Items)),
		Total:         o.Total,
	}
	if o.UserID != nil {
		p.UserID = *o.UserID
	}
	for _, it := range o.Items {
		line := ItemLine{SKU: it.SKU, Qty: it.Qty, UnitPrice: it.UnitPrice}
		if it.ProductID != nil {
			line.ProductID = *it.ProductID
		}
		p.Items = append(p.Items, line)
	}
	return p
}
