package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxLines   = 50
	MaxLineQty = 99
)

type Order struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	UserID       *string         `json:"user_id,omitempty"`
	Status       Status          `json:"status"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email,omitempty"`
	Wilaya       Wilaya          `json:"wilaya"`
	Commune      string          `json:"commune"`
	Address      string          `json:"address"`
	StopDesk     bool            `json:"stop_desk"`
	StopDeskID   *int            `json:"stop_desk_id,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingFee  decimal.Decimal `json:"shipping_fee"`
	Total        decimal.Decimal `json:"total"`
	Restocked    bool            `json:"-"`
	Items        []Item          `json:"items"`
	Payment      Payment         `json:"payment"`
	Tracking     *Tracking       `json:"tracking,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (o Order) State() State {
	return State{
		Status:           o.Status,
		Method:           o.Payment.Method,
		PaymentStatus:    o.Payment.Status,
		PaymentReference: o.Payment.Reference,
		PaidAt:           o.Payment.PaidAt,
		Restocked:        o.Restocked,
	}
}

// CODAmount is what the courier collects on delivery.
func (o Order) CODAmount() decimal.Decimal {
	if o.Payment.Method == PaymentCOD || o.Payment.Status != PaymentPaid {
		return o.Total
	}
	return decimal.Zero
}

type Wilaya struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

type Item struct {
	ID        string          `json:"id"`
	ProductID *string         `json:"product_id,omitempty"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Payment struct {
	Method    PaymentMethod `json:"method"`
	Status    PaymentStatus `json:"status"`
	Reference string        `json:"reference,omitempty"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

type Tracking struct {
	TrackingID string          `json:"tracking_id"`
	Status     string          `json:"status,omitempty"`
	Provider   string          `json:"provider"`
	Label      string          `json:"label,omitempty"`
	LastSync   *time.Time      `json:"last_sync,omitempty"`
	RawWebhook json.RawMessage `json:"-"`
}

type ItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"min=1,max=99"`
}

type CreateInput struct {
	CustomerName  string        `json:"customer_name" validate:"required,max=120"`
	Phone         string        `json:"phone" validate:"required"`
	Email         string        `json:"email" validate:"omitempty,email,max=254"`
	WilayaID      int           `json:"wilaya_id" validate:"min=1,max=58"`
	WilayaName    string        `json:"wilaya_name" validate:"max=80"`
	Commune       string        `json:"commune" validate:"required,max=120"`
	Address       string        `json:"address" validate:"required_unless=StopDesk true,max=300"`
	StopDesk      bool          `json:"stop_desk"`
	StopDeskID    *int          `json:"stop_desk_id" validate:"required_if=StopDesk true"`
	Notes         string        `json:"notes" validate:"max=500"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=COD BARIDIMOB"`
	Items         []ItemInput   `json:"items" validate:"required,min=1,max=50,dive"`
}

// NewOrder is a validated CreateInput with its server-side quote attached.
type NewOrder struct {
	CreateInput
	UserID      *string
	ShippingFee decimal.Decimal
}

type Filter struct {
	Status   Status
	Method   PaymentMethod
	Query    string
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

type Page struct {
	Items    []Order `json:"items"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
