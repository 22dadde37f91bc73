package shipping

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownProvider = errors.New("unknown shipping provider")
	ErrUnknownWilaya   = errors.New("unknown wilaya")
	ErrUnknownCommune  = errors.New("commune not served")
	ErrProvider        = errors.New("shipping provider error")
	ErrBadSignature    = errors.New("invalid webhook signature")
	ErrBadPayload      = errors.New("invalid webhook payload")
)

type Wilaya struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Zone          int    `json:"zone"`
	IsDeliverable bool   `json:"is_deliverable"`
}

type Commune struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	WilayaID      int    `json:"wilaya_id"`
	HasStopDesk   bool   `json:"has_stop_desk"`
	IsDeliverable bool   `json:"is_deliverable"`
}

// Center is a stop desk where customers collect parcels.
type Center struct {
	ID          int    `json:"center_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	CommuneID   int    `json:"commune_id"`
	CommuneName string `json:"commune_name"`
	WilayaID    int    `json:"wilaya_id"`
	WilayaName  string `json:"wilaya_name"`
}

type CommuneFee struct {
	CommuneID   int             `json:"commune_id"`
	CommuneName string          `json:"commune_name"`
	HomeFee     decimal.Decimal `json:"express_home"`
	DeskFee     decimal.Decimal `json:"express_desk"`
}

type Fees struct {
	FromWilaya string                `json:"from_wilaya_name"`
	ToWilaya   string                `json:"to_wilaya_name"`
	Zone       int                   `json:"zone"`
	PerCommune map[string]CommuneFee `json:"per_commune"`
}

// Quote is a delivery price. Estimated is set when the provider could not
// be reached and the fixed fallback fee was used.
type Quote struct {
	WilayaID  int             `json:"wilaya_id"`
	Commune   string          `json:"commune"`
	StopDesk  bool            `json:"stop_desk"`
	Fee       decimal.Decimal `json:"fee"`
	Estimated bool            `json:"estimated"`
}

type Parcel struct {
	OrderID        string          `json:"order_id"`
	FromWilayaName string          `json:"from_wilaya_name"`
	FirstName      string          `json:"firstname"`
	FamilyName     string          `json:"familyname"`
	ContactPhone   string          `json:"contact_phone"`
	Address        string          `json:"address"`
	ToCommuneName  string          `json:"to_commune_name"`
	ToWilayaName   string          `json:"to_wilaya_name"`
	ProductList    string          `json:"product_list"`
	Price          decimal.Decimal `json:"price"`
	DeclaredValue  decimal.Decimal `json:"declared_value"`
	FreeShipping   bool            `json:"freeshipping"`
	IsStopDesk     bool            `json:"is_stopdesk"`
	StopDeskID     *int            `json:"stopdesk_id,omitempty"`
	HasExchange    bool            `json:"has_exchange"`
	DoInsurance    bool            `json:"do_insurance"`
}

type ParcelResult struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"order_id"`
	Tracking string `json:"tracking"`
	Label    string `json:"label"`
	Message  string `json:"message"`
}

type ParcelStatus struct {
	Tracking       string `json:"tracking"`
	OrderID        string `json:"order_id"`
	LastStatus     string `json:"last_status"`
	DateLastStatus string `json:"date_last_status"`
}
